// Package handlers wires the Telegram surface of the offers bot: direct
// commands, guided multi-step flows on top of the core FSM state manager,
// the admin menu keyboard, and the announcement-channel adapter.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"offersbot/core/logger"
	"offersbot/core/telegram/state"
	"offersbot/internal/offers"
	"offersbot/internal/upload"

	"log/slog"
)

// Flow step states. One flow is active per user at a time; the state tag
// identifies both the flow and the awaited input.
const (
	StateAddName       state.State = "offer_add_name"
	StateAddQuantity   state.State = "offer_add_qty"
	StateAddPrice      state.State = "offer_add_price"
	StateQuantityID    state.State = "offer_setqty_id"
	StateQuantityValue state.State = "offer_setqty_value"
	StatePriceID       state.State = "offer_setprice_id"
	StatePriceValue    state.State = "offer_setprice_value"
	StateSoldOutID     state.State = "offer_soldout_id"
	StateAnnounceID    state.State = "offer_announce_id"
	StateUploadFile    state.State = "upload_file"
)

// Session temp keys for fields collected across steps.
const (
	tempName   = "offer_name"
	tempQty    = "offer_qty"
	tempTarget = "offer_target"
)

// Common reply texts shared between flows and single-shot commands.
const (
	msgNotAuthorized  = "Not authorized. Ask the owner to add you as an admin."
	msgNotFound       = "Offer not found."
	msgFinishOrCancel = "Finish or cancel the current step first (/cancel)."
	msgCancelled      = "Cancelled."
	msgNothingPending = "Nothing to cancel."
)

// OfferOps is the slice of the lifecycle service the Telegram surface drives.
type OfferOps interface {
	Create(ctx context.Context, name string, quantity int, price string, originChat int64) (offers.CreateResult, error)
	SetQuantity(ctx context.Context, id int64, quantity int) (offers.QuantityResult, error)
	SetPrice(ctx context.Context, id int64, price string) (offers.Offer, error)
	Retire(ctx context.Context, id int64) (offers.RetireResult, error)
	Reannounce(ctx context.Context, id int64, originChat int64) (offers.Offer, error)
	Get(ctx context.Context, id int64) (offers.Offer, error)
	Stock(ctx context.Context) ([]offers.Offer, error)
	AnnounceChat(ctx context.Context, originChat int64) int64
	SetAnnounceChat(ctx context.Context, chatID int64) error
}

// UploadOps is the slice of the upload helper the file flow drives.
type UploadOps interface {
	Upload(ctx context.Context, path string, sizeBytes int64) upload.Result
}

// Reply is the outcome of one flow step.
type Reply struct {
	Text string
	// Prompt is true while the flow still expects input; the transport
	// layer attaches a cancel keyboard to such replies.
	Prompt bool
	// Passthrough requests re-dispatch of the input to the named command
	// (help/menu remain usable mid-flow).
	Passthrough string
}

func prompt(text string) Reply { return Reply{Text: text, Prompt: true} }
func done(text string) Reply   { return Reply{Text: text} }

// Flows advances per-user conversation state. It is transport-agnostic: the
// telebot adapters live in fsm.go, so steps are exercised directly in tests.
type Flows struct {
	mgr     state.Manager
	svc     OfferOps
	uploads UploadOps
	tr      offers.Transport
	isAdmin func(int64) bool
	// classify resolves free text to a canonical command name ("/add")
	// when it matches a registered command or menu label.
	classify func(string) (string, bool)
}

// NewFlows builds the flow engine.
func NewFlows(mgr state.Manager, svc OfferOps, uploads UploadOps, tr offers.Transport, isAdmin func(int64) bool, classify func(string) (string, bool)) *Flows {
	if classify == nil {
		classify = func(string) (string, bool) { return "", false }
	}
	return &Flows{mgr: mgr, svc: svc, uploads: uploads, tr: tr, isAdmin: isAdmin, classify: classify}
}

// Start begins a flow at the given step, replacing any previous session.
func (f *Flows) Start(userID int64, st state.State) Reply {
	f.mgr.Clear(userID)
	f.mgr.SetState(userID, st)
	switch st {
	case StateAddName:
		return prompt("What's the item called?")
	case StateQuantityID, StatePriceID, StateSoldOutID, StateAnnounceID:
		return prompt("Which offer id?")
	case StateUploadFile:
		return prompt("Send me the file as a document.")
	default:
		f.mgr.Clear(userID)
		return done("Nothing to do.")
	}
}

// Cancel clears the user's session unconditionally.
func (f *Flows) Cancel(userID int64) Reply {
	if !f.mgr.HasState(userID) {
		return done(msgNothingPending)
	}
	f.mgr.Clear(userID)
	return done(msgCancelled)
}

// Advance consumes one text input for the user's pending step.
// Authorization is re-checked on every step; a validation failure re-prompts
// the same step without dropping fields collected so far.
func (f *Flows) Advance(ctx context.Context, userID, chatID int64, input string) Reply {
	if !f.isAdmin(userID) {
		f.mgr.Clear(userID)
		return done(msgNotAuthorized)
	}

	input = strings.TrimSpace(input)
	if cmd, ok := f.classify(input); ok {
		switch cmd {
		case "/cancel":
			return f.Cancel(userID)
		case "/help", "/menu":
			return Reply{Passthrough: cmd}
		default:
			return prompt(msgFinishOrCancel)
		}
	}

	switch f.mgr.GetState(userID) {
	case StateAddName:
		return f.addName(userID, input)
	case StateAddQuantity:
		return f.addQuantity(userID, input)
	case StateAddPrice:
		return f.addPrice(ctx, userID, chatID, input)
	case StateQuantityID:
		return f.targetID(ctx, userID, input, StateQuantityValue, "New quantity for #%d?")
	case StateQuantityValue:
		return f.quantityValue(ctx, userID, input)
	case StatePriceID:
		return f.targetID(ctx, userID, input, StatePriceValue, "New price for #%d?")
	case StatePriceValue:
		return f.priceValue(ctx, userID, input)
	case StateSoldOutID:
		return f.soldOutID(ctx, userID, input)
	case StateAnnounceID:
		return f.announceID(ctx, userID, chatID, input)
	case StateUploadFile:
		return prompt("Send the file as a document, or /cancel.")
	default:
		return done("")
	}
}

func (f *Flows) addName(userID int64, input string) Reply {
	if input == "" {
		return prompt("Name is required. What's the item called?")
	}
	f.mgr.SetTemp(userID, tempName, input)
	f.mgr.SetState(userID, StateAddQuantity)
	return prompt("How many are available?")
}

func (f *Flows) addQuantity(userID int64, input string) Reply {
	qty, err := offers.ParseQuantity(input)
	if err != nil {
		return prompt("Quantity must be a whole number. How many are available?")
	}
	if qty == 0 {
		return prompt("Quantity must be greater than zero. How many are available?")
	}
	f.mgr.SetTemp(userID, tempQty, qty)
	f.mgr.SetState(userID, StateAddPrice)
	return prompt("What price? (e.g. 9.99)")
}

func (f *Flows) addPrice(ctx context.Context, userID, chatID int64, input string) Reply {
	price, err := offers.NormalizePrice(input)
	if err != nil {
		return prompt("Price must be a number greater than zero. What price?")
	}

	name, _ := f.mgr.GetTemp(userID, tempName)
	qty, _ := f.mgr.GetTemp(userID, tempQty)
	nameText, _ := name.(string)
	quantity, _ := qty.(int)
	f.mgr.Clear(userID)

	res, err := f.svc.Create(ctx, nameText, quantity, price, chatID)
	if err != nil {
		return done("Could not save the offer: " + err.Error())
	}
	return done(createReply(res, chatID))
}

func createReply(res offers.CreateResult, originChat int64) string {
	switch {
	case res.AnnounceErr != nil:
		return fmt.Sprintf("Added offer #%d. Announcement failed: %v", res.Offer.ID, res.AnnounceErr)
	case res.ChatID == originChat:
		return fmt.Sprintf("Added offer #%d.", res.Offer.ID)
	default:
		return fmt.Sprintf("Added offer #%d and announced it.", res.Offer.ID)
	}
}

// targetID collects the offer id for two-step update flows. An unknown id
// re-prompts the same step.
func (f *Flows) targetID(ctx context.Context, userID int64, input string, next state.State, promptFormat string) Reply {
	id, err := offers.ParseID(input)
	if err != nil {
		return prompt("Offer id must be a number. Which offer id?")
	}
	if _, err := f.svc.Get(ctx, id); err != nil {
		if errors.Is(err, offers.ErrNotFound) {
			return prompt(msgNotFound + " Which offer id?")
		}
		return done("Could not look up the offer: " + err.Error())
	}
	f.mgr.SetTemp(userID, tempTarget, id)
	f.mgr.SetState(userID, next)
	return prompt(fmt.Sprintf(promptFormat, id))
}

func (f *Flows) quantityValue(ctx context.Context, userID int64, input string) Reply {
	qty, err := offers.ParseQuantity(input)
	if err != nil {
		return prompt("Quantity must be a whole number, zero or greater. New quantity?")
	}
	id, ok := f.mgr.GetTempInt64(userID, tempTarget)
	f.mgr.Clear(userID)
	if !ok {
		return done(msgNotFound)
	}

	res, err := f.svc.SetQuantity(ctx, id, qty)
	if err != nil {
		if errors.Is(err, offers.ErrNotFound) {
			return done(msgNotFound)
		}
		return done("Could not update the offer: " + err.Error())
	}
	if res.Retired {
		return done(soldOutReply(id, res.AnnouncementRemoved))
	}
	return done(fmt.Sprintf("Updated #%d quantity to %d.", id, qty))
}

func (f *Flows) priceValue(ctx context.Context, userID int64, input string) Reply {
	price, err := offers.NormalizePrice(input)
	if err != nil {
		return prompt("Price must be a number greater than zero. New price?")
	}
	id, ok := f.mgr.GetTempInt64(userID, tempTarget)
	f.mgr.Clear(userID)
	if !ok {
		return done(msgNotFound)
	}

	if _, err := f.svc.SetPrice(ctx, id, price); err != nil {
		if errors.Is(err, offers.ErrNotFound) {
			return done(msgNotFound)
		}
		return done("Could not update the offer: " + err.Error())
	}
	return done(fmt.Sprintf("Updated #%d price to $%s.", id, price))
}

func (f *Flows) soldOutID(ctx context.Context, userID int64, input string) Reply {
	id, err := offers.ParseID(input)
	if err != nil {
		return prompt("Offer id must be a number. Which offer id?")
	}
	f.mgr.Clear(userID)

	res, err := f.svc.Retire(ctx, id)
	if err != nil {
		if errors.Is(err, offers.ErrNotFound) {
			return done(msgNotFound)
		}
		return done("Could not update the offer: " + err.Error())
	}
	return done(soldOutReply(id, res.AnnouncementRemoved))
}

func soldOutReply(id int64, removed bool) string {
	if removed {
		return fmt.Sprintf("Marked #%d as sold out and removed the announcement.", id)
	}
	return fmt.Sprintf("Marked #%d as sold out.", id)
}

func (f *Flows) announceID(ctx context.Context, userID, chatID int64, input string) Reply {
	id, err := offers.ParseID(input)
	if err != nil {
		return prompt("Offer id must be a number. Which offer id?")
	}
	f.mgr.Clear(userID)

	if _, err := f.svc.Reannounce(ctx, id, chatID); err != nil {
		switch {
		case errors.Is(err, offers.ErrNotFound), errors.Is(err, offers.ErrInactiveOffer):
			return done("Offer not found or inactive.")
		default:
			return done("Announcement failed: " + err.Error())
		}
	}
	return done(fmt.Sprintf("Announced #%d.", id))
}

// FileInput carries an incoming document: its name, the caption the admin
// attached, and a fetch callback that downloads it to a local path.
type FileInput struct {
	Name    string
	Caption string
	Fetch   func(ctx context.Context) (string, error)
}

// splitCaption maps the document caption onto the summary header modes: a
// purely numeric caption is a display count, anything else a custom header.
func splitCaption(caption string) (custom, displayCount string) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return "", ""
	}
	digitsOnly := strings.Trim(caption, "0123456789,. ") == ""
	if digitsOnly {
		return "", caption
	}
	return caption, ""
}

// HandleDocument completes the upload flow: download, scan, push to a host,
// and post the summary to the announcement chat. The session is cleared
// whatever the outcome; failures are reported, not retried.
func (f *Flows) HandleDocument(ctx context.Context, userID, chatID int64, file FileInput) Reply {
	if !f.isAdmin(userID) {
		f.mgr.Clear(userID)
		return done(msgNotAuthorized)
	}
	if f.mgr.GetState(userID) != StateUploadFile {
		return done("")
	}
	f.mgr.Clear(userID)

	path, err := file.Fetch(ctx)
	if err != nil {
		logger.Warn(ctx, "service.upload", "download.fail",
			slog.String("file", file.Name),
			slog.String("err", err.Error()),
		)
		return done("Couldn't download the file: " + err.Error())
	}

	metrics, err := upload.ScanFile(path)
	if err != nil {
		return done("Couldn't read the file: " + err.Error())
	}

	result := f.uploads.Upload(ctx, path, metrics.SizeBytes)
	custom, displayCount := splitCaption(file.Caption)
	summary := upload.BuildMessage(upload.ResolveHeader(custom, displayCount, metrics), metrics, result, time.Now())

	target := f.svc.AnnounceChat(ctx, chatID)
	if _, err := f.tr.Send(ctx, target, summary); err != nil {
		logger.Warn(ctx, "service.upload", "summary.send_failed",
			slog.Int64("chat_id", target),
			slog.String("err", err.Error()),
		)
		return done("Upload processed, but posting the summary failed: " + err.Error())
	}
	if !result.Success {
		return done("Posted the summary, but the upload itself failed.")
	}
	return done("Posted the upload summary.")
}
