package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"offersbot/core/telegram/state"
	"offersbot/internal/offers"
	"offersbot/internal/upload"
)

type fakeOps struct {
	created   []offers.Offer
	nextID    int64
	createErr error

	quantityCalls []struct {
		ID  int64
		Qty int
	}
	quantityRes offers.QuantityResult
	quantityErr error

	priceCalls []struct {
		ID    int64
		Price string
	}
	priceErr error

	retireCalls []int64
	retireRes   offers.RetireResult
	retireErr   error

	reannounceCalls []int64
	reannounceErr   error

	known map[int64]offers.Offer

	announceChat int64
	setChatCalls []int64
}

func newFakeOps() *fakeOps {
	return &fakeOps{known: make(map[int64]offers.Offer), announceChat: -100}
}

func (f *fakeOps) Create(ctx context.Context, name string, quantity int, price string, originChat int64) (offers.CreateResult, error) {
	if f.createErr != nil {
		return offers.CreateResult{}, f.createErr
	}
	f.nextID++
	o := offers.Offer{ID: f.nextID, Name: name, Quantity: quantity, Price: price, Active: true}
	f.created = append(f.created, o)
	return offers.CreateResult{Offer: o, ChatID: f.announceChat, Announced: true}, nil
}

func (f *fakeOps) SetQuantity(ctx context.Context, id int64, quantity int) (offers.QuantityResult, error) {
	f.quantityCalls = append(f.quantityCalls, struct {
		ID  int64
		Qty int
	}{id, quantity})
	return f.quantityRes, f.quantityErr
}

func (f *fakeOps) SetPrice(ctx context.Context, id int64, price string) (offers.Offer, error) {
	f.priceCalls = append(f.priceCalls, struct {
		ID    int64
		Price string
	}{id, price})
	return offers.Offer{ID: id, Price: price}, f.priceErr
}

func (f *fakeOps) Retire(ctx context.Context, id int64) (offers.RetireResult, error) {
	f.retireCalls = append(f.retireCalls, id)
	return f.retireRes, f.retireErr
}

func (f *fakeOps) Reannounce(ctx context.Context, id int64, originChat int64) (offers.Offer, error) {
	f.reannounceCalls = append(f.reannounceCalls, id)
	if f.reannounceErr != nil {
		return offers.Offer{}, f.reannounceErr
	}
	return offers.Offer{ID: id, Active: true}, nil
}

func (f *fakeOps) Get(ctx context.Context, id int64) (offers.Offer, error) {
	o, ok := f.known[id]
	if !ok {
		return offers.Offer{}, offers.ErrNotFound
	}
	return o, nil
}

func (f *fakeOps) Stock(ctx context.Context) ([]offers.Offer, error) { return nil, nil }

func (f *fakeOps) AnnounceChat(ctx context.Context, originChat int64) int64 {
	return f.announceChat
}

func (f *fakeOps) SetAnnounceChat(ctx context.Context, chatID int64) error {
	f.setChatCalls = append(f.setChatCalls, chatID)
	return nil
}

type fakeUploads struct {
	calls  []string
	result upload.Result
}

func (f *fakeUploads) Upload(ctx context.Context, path string, sizeBytes int64) upload.Result {
	f.calls = append(f.calls, path)
	return f.result
}

type fakeSender struct {
	sent    []string
	chats   []int64
	sendErr error
}

func (f *fakeSender) Send(ctx context.Context, chatID int64, text string) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.chats = append(f.chats, chatID)
	f.sent = append(f.sent, text)
	return len(f.sent), nil
}

func (f *fakeSender) Delete(ctx context.Context, chatID int64, messageID int) error { return nil }

func allowAll(int64) bool { return true }
func denyAll(int64) bool  { return false }

func commandClassifier(input string) (string, bool) {
	if strings.HasPrefix(input, "/") {
		return strings.Fields(input)[0], true
	}
	return "", false
}

func newTestFlows(ops *fakeOps, isAdmin func(int64) bool) (*Flows, state.Manager) {
	mgr := state.NewMemoryManager()
	f := NewFlows(mgr, ops, &fakeUploads{}, &fakeSender{}, isAdmin, commandClassifier)
	return f, mgr
}

func TestAddFlowHappyPath(t *testing.T) {
	ops := newFakeOps()
	f, mgr := newTestFlows(ops, allowAll)
	ctx := context.Background()

	r := f.Start(7, StateAddName)
	if !r.Prompt || r.Text != "What's the item called?" {
		t.Fatalf("start reply = %+v", r)
	}

	r = f.Advance(ctx, 7, 100, "Blueberry jam")
	if !r.Prompt {
		t.Fatalf("expected quantity prompt, got %+v", r)
	}
	r = f.Advance(ctx, 7, 100, "12")
	if !r.Prompt {
		t.Fatalf("expected price prompt, got %+v", r)
	}
	r = f.Advance(ctx, 7, 100, "9.50")
	if r.Prompt {
		t.Fatalf("flow should be complete, got %+v", r)
	}

	if len(ops.created) != 1 {
		t.Fatalf("created = %d, want 1", len(ops.created))
	}
	got := ops.created[0]
	if got.Name != "Blueberry jam" || got.Quantity != 12 || got.Price != "9.5" {
		t.Fatalf("created offer = %+v", got)
	}
	if mgr.InProgress(7) {
		t.Fatal("session should be cleared after the final step")
	}
	if !strings.Contains(r.Text, "#1") {
		t.Fatalf("reply should name the new offer: %q", r.Text)
	}
}

func TestAddFlowInvalidQuantityKeepsName(t *testing.T) {
	ops := newFakeOps()
	f, mgr := newTestFlows(ops, allowAll)
	ctx := context.Background()

	f.Start(7, StateAddName)
	f.Advance(ctx, 7, 100, "Honey")

	r := f.Advance(ctx, 7, 100, "a few")
	if !r.Prompt {
		t.Fatalf("invalid quantity should re-prompt, got %+v", r)
	}
	if st := mgr.GetState(7); st != StateAddQuantity {
		t.Fatalf("state = %q, want %q", st, StateAddQuantity)
	}

	f.Advance(ctx, 7, 100, "3")
	r = f.Advance(ctx, 7, 100, "4")
	if r.Prompt {
		t.Fatalf("flow should finish, got %+v", r)
	}
	if len(ops.created) != 1 || ops.created[0].Name != "Honey" {
		t.Fatalf("name collected before the bad input was lost: %+v", ops.created)
	}
}

func TestAdvanceRejectsOtherCommandsMidFlow(t *testing.T) {
	ops := newFakeOps()
	f, mgr := newTestFlows(ops, allowAll)
	ctx := context.Background()

	f.Start(7, StateAddName)
	r := f.Advance(ctx, 7, 100, "/stock")
	if r.Text != msgFinishOrCancel {
		t.Fatalf("reply = %q, want %q", r.Text, msgFinishOrCancel)
	}
	if !mgr.InProgress(7) {
		t.Fatal("flow should still be pending")
	}
}

func TestAdvancePassesThroughHelpAndMenu(t *testing.T) {
	ops := newFakeOps()
	f, mgr := newTestFlows(ops, allowAll)
	ctx := context.Background()

	f.Start(7, StateAddName)
	for _, cmd := range []string{"/help", "/menu"} {
		r := f.Advance(ctx, 7, 100, cmd)
		if r.Passthrough != cmd {
			t.Fatalf("passthrough = %q, want %q", r.Passthrough, cmd)
		}
	}
	if !mgr.InProgress(7) {
		t.Fatal("help must not abort the flow")
	}
}

func TestCancelMidFlow(t *testing.T) {
	ops := newFakeOps()
	f, mgr := newTestFlows(ops, allowAll)
	ctx := context.Background()

	f.Start(7, StateAddName)
	r := f.Advance(ctx, 7, 100, "/cancel")
	if r.Text != msgCancelled {
		t.Fatalf("reply = %q, want %q", r.Text, msgCancelled)
	}
	if mgr.InProgress(7) {
		t.Fatal("cancel should clear the session")
	}

	if r := f.Cancel(7); r.Text != msgNothingPending {
		t.Fatalf("second cancel = %q, want %q", r.Text, msgNothingPending)
	}
}

func TestFlowsAreIsolatedPerUser(t *testing.T) {
	ops := newFakeOps()
	ops.known[3] = offers.Offer{ID: 3, Active: true}
	f, _ := newTestFlows(ops, allowAll)
	ctx := context.Background()

	f.Start(1, StateAddName)
	f.Start(2, StateSoldOutID)

	f.Advance(ctx, 1, 100, "Tea")
	r := f.Advance(ctx, 2, 100, "3")
	if len(ops.retireCalls) != 1 || ops.retireCalls[0] != 3 {
		t.Fatalf("retire calls = %v", ops.retireCalls)
	}
	if r.Prompt {
		t.Fatalf("sold-out flow should finish, got %+v", r)
	}

	r = f.Advance(ctx, 1, 100, "5")
	if !r.Prompt {
		t.Fatalf("user 1 should still be in the add flow, got %+v", r)
	}
}

func TestAdvanceDeniesWhenNoLongerAdmin(t *testing.T) {
	ops := newFakeOps()
	admin := true
	f, mgr := newTestFlows(ops, func(int64) bool { return admin })
	ctx := context.Background()

	f.Start(7, StateAddName)
	admin = false

	r := f.Advance(ctx, 7, 100, "Tea")
	if r.Text != msgNotAuthorized {
		t.Fatalf("reply = %q, want %q", r.Text, msgNotAuthorized)
	}
	if mgr.InProgress(7) {
		t.Fatal("session should be cleared on authorization loss")
	}
	if len(ops.created) != 0 {
		t.Fatalf("no offer should be created: %+v", ops.created)
	}
}

func TestTargetIDUnknownOfferReprompts(t *testing.T) {
	ops := newFakeOps()
	ops.known[5] = offers.Offer{ID: 5, Active: true}
	f, mgr := newTestFlows(ops, allowAll)
	ctx := context.Background()

	f.Start(7, StateQuantityID)
	r := f.Advance(ctx, 7, 100, "42")
	if !r.Prompt || !strings.Contains(r.Text, msgNotFound) {
		t.Fatalf("unknown id should re-prompt with %q, got %+v", msgNotFound, r)
	}

	r = f.Advance(ctx, 7, 100, "5")
	if !r.Prompt || !strings.Contains(r.Text, "#5") {
		t.Fatalf("expected quantity prompt for #5, got %+v", r)
	}
	if st := mgr.GetState(7); st != StateQuantityValue {
		t.Fatalf("state = %q, want %q", st, StateQuantityValue)
	}
}

func TestQuantityFlowZeroRetires(t *testing.T) {
	ops := newFakeOps()
	ops.known[5] = offers.Offer{ID: 5, Active: true}
	ops.quantityRes = offers.QuantityResult{Retired: true, AnnouncementRemoved: true}
	f, _ := newTestFlows(ops, allowAll)
	ctx := context.Background()

	f.Start(7, StateQuantityID)
	f.Advance(ctx, 7, 100, "5")
	r := f.Advance(ctx, 7, 100, "0")

	if len(ops.quantityCalls) != 1 || ops.quantityCalls[0].Qty != 0 {
		t.Fatalf("quantity calls = %+v", ops.quantityCalls)
	}
	if !strings.Contains(r.Text, "sold out") || !strings.Contains(r.Text, "removed the announcement") {
		t.Fatalf("reply = %q", r.Text)
	}
}

func TestPriceFlowNormalizesInput(t *testing.T) {
	ops := newFakeOps()
	ops.known[5] = offers.Offer{ID: 5, Active: true}
	f, _ := newTestFlows(ops, allowAll)
	ctx := context.Background()

	f.Start(7, StatePriceID)
	f.Advance(ctx, 7, 100, "5")
	r := f.Advance(ctx, 7, 100, "9.999")

	if len(ops.priceCalls) != 1 || ops.priceCalls[0].Price != "10" {
		t.Fatalf("price calls = %+v", ops.priceCalls)
	}
	if !strings.Contains(r.Text, "$10") {
		t.Fatalf("reply = %q", r.Text)
	}
}

func TestAnnounceFlowInactiveOffer(t *testing.T) {
	ops := newFakeOps()
	ops.reannounceErr = offers.ErrInactiveOffer
	f, _ := newTestFlows(ops, allowAll)
	ctx := context.Background()

	f.Start(7, StateAnnounceID)
	r := f.Advance(ctx, 7, 100, "4")
	if r.Text != "Offer not found or inactive." {
		t.Fatalf("reply = %q", r.Text)
	}
}

func TestStartDeniedForNonAdminAdvance(t *testing.T) {
	ops := newFakeOps()
	f, _ := newTestFlows(ops, denyAll)
	ctx := context.Background()

	f.Start(7, StateAddName)
	r := f.Advance(ctx, 7, 100, "Tea")
	if r.Text != msgNotAuthorized {
		t.Fatalf("reply = %q, want %q", r.Text, msgNotAuthorized)
	}
}

func TestHandleDocumentPostsSummary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.txt")
	data := "user1:pass1\nuser2:pass2\nbroken line\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	ops := newFakeOps()
	mgr := state.NewMemoryManager()
	uploads := &fakeUploads{result: upload.Result{Host: "Catbox", URL: "https://files.catbox.moe/abc.txt", Success: true}}
	sender := &fakeSender{}
	f := NewFlows(mgr, ops, uploads, sender, allowAll, commandClassifier)
	ctx := context.Background()

	f.Start(7, StateUploadFile)
	r := f.HandleDocument(ctx, 7, 100, FileInput{
		Name:  "batch.txt",
		Fetch: func(context.Context) (string, error) { return path, nil },
	})

	if r.Text != "Posted the upload summary." {
		t.Fatalf("reply = %q", r.Text)
	}
	if len(uploads.calls) != 1 || uploads.calls[0] != path {
		t.Fatalf("upload calls = %v", uploads.calls)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	for _, want := range []string{"File: batch.txt", "Catbox: https://files.catbox.moe/abc.txt", "Success: 1/1", "Valid ULP: 2"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("summary missing %q:\n%s", want, msg)
		}
	}
	if sender.chats[0] != ops.announceChat {
		t.Fatalf("summary chat = %d, want %d", sender.chats[0], ops.announceChat)
	}
	if mgr.InProgress(7) {
		t.Fatal("upload should clear the session")
	}
}

func TestHandleDocumentCaptionBecomesHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.txt")
	if err := os.WriteFile(path, []byte("a:b\nc:d\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		caption string
		want    string
	}{
		{"custom text", "Fresh combo drop", "Fresh combo drop"},
		{"numeric display count", "50,000", "Total lines on this are 50,000, but here is 2"},
		{"empty caption", "", "New Sample!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops := newFakeOps()
			mgr := state.NewMemoryManager()
			uploads := &fakeUploads{result: upload.Result{Host: "Catbox", URL: "https://files.catbox.moe/abc.txt", Success: true}}
			sender := &fakeSender{}
			f := NewFlows(mgr, ops, uploads, sender, allowAll, commandClassifier)

			f.Start(7, StateUploadFile)
			f.HandleDocument(context.Background(), 7, 100, FileInput{
				Name:    "batch.txt",
				Caption: tc.caption,
				Fetch:   func(context.Context) (string, error) { return path, nil },
			})

			if len(sender.sent) != 1 {
				t.Fatalf("sent = %d messages, want 1", len(sender.sent))
			}
			header := strings.SplitN(sender.sent[0], "\n", 2)[0]
			if header != tc.want {
				t.Fatalf("header = %q, want %q", header, tc.want)
			}
		})
	}
}

func TestHandleDocumentUploadFailureStillPosts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.txt")
	if err := os.WriteFile(path, []byte("a:b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ops := newFakeOps()
	mgr := state.NewMemoryManager()
	uploads := &fakeUploads{result: upload.Result{Host: "Gofile", URL: "Upload failed: boom", Success: false}}
	sender := &fakeSender{}
	f := NewFlows(mgr, ops, uploads, sender, allowAll, commandClassifier)

	f.Start(7, StateUploadFile)
	r := f.HandleDocument(context.Background(), 7, 100, FileInput{
		Name:  "batch.txt",
		Fetch: func(context.Context) (string, error) { return path, nil },
	})

	if r.Text != "Posted the summary, but the upload itself failed." {
		t.Fatalf("reply = %q", r.Text)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Success: 0/1") {
		t.Fatalf("sent = %v", sender.sent)
	}
}

func TestHandleDocumentDownloadError(t *testing.T) {
	ops := newFakeOps()
	mgr := state.NewMemoryManager()
	sender := &fakeSender{}
	f := NewFlows(mgr, ops, &fakeUploads{}, sender, allowAll, commandClassifier)

	f.Start(7, StateUploadFile)
	r := f.HandleDocument(context.Background(), 7, 100, FileInput{
		Name:  "batch.txt",
		Fetch: func(context.Context) (string, error) { return "", errors.New("network down") },
	})

	if !strings.Contains(r.Text, "Couldn't download the file") {
		t.Fatalf("reply = %q", r.Text)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be posted, sent = %v", sender.sent)
	}
	if mgr.InProgress(7) {
		t.Fatal("session should be cleared even on failure")
	}
}

func TestHandleDocumentIgnoredOutsideUploadFlow(t *testing.T) {
	ops := newFakeOps()
	mgr := state.NewMemoryManager()
	sender := &fakeSender{}
	f := NewFlows(mgr, ops, &fakeUploads{}, sender, allowAll, commandClassifier)

	r := f.HandleDocument(context.Background(), 7, 100, FileInput{
		Name:  "batch.txt",
		Fetch: func(context.Context) (string, error) { return "", errors.New("should not be called") },
	})
	if r.Text != "" {
		t.Fatalf("reply = %q, want empty", r.Text)
	}
}
