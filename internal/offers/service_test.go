package offers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// memRepo is an in-memory Repository used by service tests.
type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	offers   map[int64]Offer
	settings map[string]string
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, offers: make(map[int64]Offer), settings: make(map[string]string)}
}

func (m *memRepo) Add(ctx context.Context, name string, quantity int, price string) (Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := Offer{
		ID:        m.nextID,
		Name:      name,
		Quantity:  quantity,
		Price:     price,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	m.nextID++
	m.offers[o.ID] = o
	return o, nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return Offer{}, ErrNotFound
	}
	return o, nil
}

func (m *memRepo) List(ctx context.Context, activeOnly bool) ([]Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Offer
	for _, o := range m.offers {
		if activeOnly && !o.Active {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRepo) update(id int64, fn func(*Offer)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return false, nil
	}
	fn(&o)
	m.offers[id] = o
	return true, nil
}

func (m *memRepo) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	return m.update(id, func(o *Offer) { o.Active = active })
}

func (m *memRepo) UpdateQuantity(ctx context.Context, id int64, quantity int) (bool, error) {
	return m.update(id, func(o *Offer) { o.Quantity = quantity })
}

func (m *memRepo) UpdatePrice(ctx context.Context, id int64, price string) (bool, error) {
	return m.update(id, func(o *Offer) { o.Price = price })
}

func (m *memRepo) AttachAnnouncement(ctx context.Context, id, chatID int64, messageID int) (bool, error) {
	return m.update(id, func(o *Offer) {
		o.AnnounceChatID = chatID
		o.AnnounceMessageID = messageID
	})
}

func (m *memRepo) GetSetting(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *memRepo) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// fakeTransport records sends and deletes and can be told to fail.
type fakeTransport struct {
	mu        sync.Mutex
	nextMsgID int
	sent      []sentMsg
	deleted   []sentMsg
	sendErr   error
	deleteErr error
}

type sentMsg struct {
	chatID    int64
	messageID int
	text      string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nextMsgID: 100}
}

func (f *fakeTransport) Send(ctx context.Context, chatID int64, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextMsgID++
	f.sent = append(f.sent, sentMsg{chatID: chatID, messageID: f.nextMsgID, text: text})
	return f.nextMsgID, nil
}

func (f *fakeTransport) Delete(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, sentMsg{chatID: chatID, messageID: messageID})
	return nil
}

func newTestService() (*Service, *memRepo, *fakeTransport) {
	repo := newMemRepo()
	tr := newFakeTransport()
	return NewService(repo, tr, "LMK if interested.", 0), repo, tr
}

func TestCreateAnnouncesAndBinds(t *testing.T) {
	svc, repo, tr := newTestService()
	ctx := context.Background()

	res, err := svc.Create(ctx, "Widget", 5, "10", 555)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !res.Announced || res.AnnounceErr != nil {
		t.Fatalf("expected announced result, got %+v", res)
	}
	if len(tr.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(tr.sent))
	}
	if tr.sent[0].chatID != 555 {
		t.Fatalf("announced to chat %d, want 555", tr.sent[0].chatID)
	}
	want := "Hey! I have Widget in right now. 5 available at $10. LMK if interested."
	if tr.sent[0].text != want {
		t.Fatalf("announcement = %q, want %q", tr.sent[0].text, want)
	}

	stored, err := repo.Get(ctx, res.Offer.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !stored.Active || stored.Quantity != 5 {
		t.Fatalf("stored offer = %+v", stored)
	}
	if !stored.Announced() || stored.AnnounceMessageID != tr.sent[0].messageID {
		t.Fatalf("binding not recorded: %+v", stored)
	}
}

func TestCreatePublishFailureKeepsOffer(t *testing.T) {
	svc, repo, tr := newTestService()
	tr.sendErr = errors.New("boom")
	ctx := context.Background()

	res, err := svc.Create(ctx, "Widget", 5, "10", 555)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Announced || res.AnnounceErr == nil {
		t.Fatalf("expected partial failure, got %+v", res)
	}
	stored, err := repo.Get(ctx, res.Offer.ID)
	if err != nil {
		t.Fatalf("offer should exist after publish failure: %v", err)
	}
	if !stored.Active || stored.Announced() {
		t.Fatalf("stored offer = %+v, want active and unannounced", stored)
	}
}

func TestRetireDeletesAnnouncementOnce(t *testing.T) {
	svc, repo, tr := newTestService()
	ctx := context.Background()

	res, err := svc.Create(ctx, "Widget", 5, "10", 555)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ret, err := svc.Retire(ctx, res.Offer.ID)
	if err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if !ret.AnnouncementRemoved {
		t.Fatal("expected announcement removal")
	}
	if len(tr.deleted) != 1 {
		t.Fatalf("expected exactly 1 delete attempt, got %d", len(tr.deleted))
	}
	if tr.deleted[0].messageID != res.Offer.AnnounceMessageID {
		t.Fatalf("deleted message %d, want %d", tr.deleted[0].messageID, res.Offer.AnnounceMessageID)
	}

	stored, _ := repo.Get(ctx, res.Offer.ID)
	if stored.Active || stored.Quantity != 0 {
		t.Fatalf("stored offer after retire = %+v", stored)
	}
}

func TestRetireDeleteFailureStillRetires(t *testing.T) {
	svc, repo, tr := newTestService()
	ctx := context.Background()

	res, err := svc.Create(ctx, "Widget", 5, "10", 555)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tr.deleteErr = errors.New("message to delete not found")

	ret, err := svc.Retire(ctx, res.Offer.ID)
	if err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if ret.AnnouncementRemoved {
		t.Fatal("removal should be reported as failed")
	}
	stored, _ := repo.Get(ctx, res.Offer.ID)
	if stored.Active || stored.Quantity != 0 {
		t.Fatalf("repository must retire regardless of transport: %+v", stored)
	}
}

func TestSetQuantityZeroRetires(t *testing.T) {
	svc, _, tr := newTestService()
	ctx := context.Background()

	res, _ := svc.Create(ctx, "Widget", 5, "10", 555)
	qres, err := svc.SetQuantity(ctx, res.Offer.ID, 0)
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if !qres.Retired || !qres.AnnouncementRemoved {
		t.Fatalf("expected retired with removed announcement, got %+v", qres)
	}
	if len(tr.deleted) != 1 {
		t.Fatalf("expected 1 delete attempt, got %d", len(tr.deleted))
	}
}

func TestRestockReactivatesWithoutNewAnnouncement(t *testing.T) {
	svc, repo, tr := newTestService()
	ctx := context.Background()

	res, _ := svc.Create(ctx, "Widget", 5, "10", 555)
	if _, err := svc.Retire(ctx, res.Offer.ID); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	sendsBefore := len(tr.sent)

	qres, err := svc.SetQuantity(ctx, res.Offer.ID, 3)
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if qres.Retired {
		t.Fatal("restock must not report retirement")
	}
	stored, _ := repo.Get(ctx, res.Offer.ID)
	if !stored.Active || stored.Quantity != 3 {
		t.Fatalf("restocked offer = %+v", stored)
	}
	if len(tr.sent) != sendsBefore {
		t.Fatal("restock must not publish a new announcement")
	}
}

func TestReannounceRequiresActive(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	res, _ := svc.Create(ctx, "Widget", 5, "10", 555)
	if _, err := svc.Retire(ctx, res.Offer.ID); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if _, err := svc.Reannounce(ctx, res.Offer.ID, 555); !errors.Is(err, ErrInactiveOffer) {
		t.Fatalf("Reannounce on retired offer = %v, want ErrInactiveOffer", err)
	}
}

func TestReannounceRebindsAndLeavesOldMessage(t *testing.T) {
	svc, repo, tr := newTestService()
	ctx := context.Background()

	res, _ := svc.Create(ctx, "Widget", 5, "10", 555)
	first := res.Offer.AnnounceMessageID

	updated, err := svc.Reannounce(ctx, res.Offer.ID, 555)
	if err != nil {
		t.Fatalf("Reannounce: %v", err)
	}
	if updated.AnnounceMessageID == first {
		t.Fatal("expected a fresh message binding")
	}
	if len(tr.deleted) != 0 {
		t.Fatal("old announcement must be left in place")
	}
	stored, _ := repo.Get(ctx, res.Offer.ID)
	if stored.AnnounceMessageID != updated.AnnounceMessageID {
		t.Fatalf("binding not overwritten: %+v", stored)
	}
}

func TestSetPriceDoesNotTouchAnnouncement(t *testing.T) {
	svc, repo, tr := newTestService()
	ctx := context.Background()

	res, _ := svc.Create(ctx, "Widget", 5, "10", 555)
	sendsBefore := len(tr.sent)

	offer, err := svc.SetPrice(ctx, res.Offer.ID, "12.5")
	if err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	if offer.Price != "12.5" {
		t.Fatalf("price = %q", offer.Price)
	}
	if len(tr.sent) != sendsBefore || len(tr.deleted) != 0 {
		t.Fatal("price change must not touch the announcement channel")
	}
	stored, _ := repo.Get(ctx, res.Offer.ID)
	if stored.AnnounceMessageID != res.Offer.AnnounceMessageID {
		t.Fatalf("binding changed: %+v", stored)
	}
}

func TestNotFoundPropagation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SetQuantity(ctx, 99, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetQuantity(99) = %v, want ErrNotFound", err)
	}
	if _, err := svc.SetPrice(ctx, 99, "5"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetPrice(99) = %v, want ErrNotFound", err)
	}
	if _, err := svc.Retire(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Retire(99) = %v, want ErrNotFound", err)
	}
	if _, err := svc.Reannounce(ctx, 99, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Reannounce(99) = %v, want ErrNotFound", err)
	}
}

func TestAnnounceChatResolution(t *testing.T) {
	repo := newMemRepo()
	tr := newFakeTransport()
	ctx := context.Background()

	// Configured default wins over origin.
	svc := NewService(repo, tr, "", -100)
	if got := svc.AnnounceChat(ctx, 7); got != -100 {
		t.Fatalf("AnnounceChat = %d, want -100", got)
	}

	// Settings override wins over the configured default.
	if err := svc.SetAnnounceChat(ctx, -200); err != nil {
		t.Fatalf("SetAnnounceChat: %v", err)
	}
	if got := svc.AnnounceChat(ctx, 7); got != -200 {
		t.Fatalf("AnnounceChat = %d, want -200", got)
	}

	// No default, no setting: origin chat.
	svc2 := NewService(newMemRepo(), tr, "", 0)
	if got := svc2.AnnounceChat(ctx, 7); got != 7 {
		t.Fatalf("AnnounceChat = %d, want 7", got)
	}
}

func TestStockNewestFirst(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, fmt.Sprintf("Item%d", i), 1, "1", 1); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	list, err := svc.Stock(ctx)
	if err != nil {
		t.Fatalf("Stock: %v", err)
	}
	if len(list) != 3 || list[0].Name != "Item2" || list[2].Name != "Item0" {
		t.Fatalf("unexpected order: %+v", list)
	}
}
