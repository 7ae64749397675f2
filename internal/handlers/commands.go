package handlers

import (
	"errors"
	"fmt"
	"strings"

	tg "offersbot/core/telegram"
	"offersbot/core/telegram/commands"
	tghelpers "offersbot/core/telegram/helpers"
	"offersbot/internal/offers"

	tele "gopkg.in/telebot.v4"
)

// Commands owns the single-shot command handlers. Commands with a payload
// run immediately through the same validation and service path as the flows;
// commands without one start the corresponding guided flow.
type Commands struct {
	svc     OfferOps
	flows   *Flows
	isAdmin func(int64) bool
}

// NewCommands builds the command handler set.
func NewCommands(svc OfferOps, flows *Flows, isAdmin func(int64) bool) *Commands {
	return &Commands{svc: svc, flows: flows, isAdmin: isAdmin}
}

// Start greets the user.
func (h *Commands) Start(c tele.Context) error {
	return tghelpers.SendText(c, "Hey! Use /stock to see what's available right now.")
}

// Help lists commands; admins get the management section as well.
func (h *Commands) Help(c tele.Context) error {
	lines := []string{
		"Customer commands:",
		"/stock - show current offers",
	}
	if h.isAdmin(c.Sender().ID) {
		lines = append(lines,
			"",
			"Admin commands:",
			"/add Name | qty | price",
			"/setqty <id> <qty>",
			"/setprice <id> <price>",
			"/soldout <id>",
			"/announce <id>",
			"/setannounce - post announcements to this chat",
			"/upload - publish a data file",
			"/menu - show the admin keyboard",
			"/cancel - abort the current step",
			"",
			"Send a command without arguments to be guided step by step.",
		)
	}
	return tghelpers.SendText(c, strings.Join(lines, "\n"))
}

// Stock lists active offers.
func (h *Commands) Stock(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	list, err := h.svc.Stock(ctx)
	if err != nil {
		return tghelpers.SendText(c, "Could not load the stock list: "+err.Error())
	}
	if len(list) == 0 {
		return tghelpers.SendText(c, "All sold out right now.")
	}
	return tghelpers.SendText(c, offers.StockList(list))
}

// Menu shows the admin reply keyboard.
func (h *Commands) Menu(c tele.Context) error {
	return tghelpers.SendText(c, "What would you like to do?", &tele.SendOptions{ReplyMarkup: AdminMenu()})
}

// Cancel aborts the pending flow, if any.
func (h *Commands) Cancel(c tele.Context) error {
	return sendReply(c, h.flows.Cancel(c.Sender().ID))
}

// Add creates an offer from "Name | qty | price", or starts the add flow.
func (h *Commands) Add(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)
	if payload == "" {
		return sendReply(c, h.flows.Start(c.Sender().ID, StateAddName))
	}

	name, qty, price, err := parseAddPayload(payload)
	if err != nil {
		return tghelpers.SendText(c, err.Error()+"\nUsage: /add Name | qty | price")
	}

	ctx := tghelpers.BuildContext(c)
	res, err := h.svc.Create(ctx, name, qty, price, c.Chat().ID)
	if err != nil {
		return tghelpers.SendText(c, "Could not save the offer: "+err.Error())
	}
	return tghelpers.SendText(c, createReply(res, c.Chat().ID))
}

func parseAddPayload(payload string) (string, int, string, error) {
	parts := strings.Split(payload, "|")
	if len(parts) != 3 {
		return "", 0, "", errors.New("expected three values: name | quantity | price")
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return "", 0, "", offers.ErrEmptyName
	}
	qty, err := offers.ParseQuantity(parts[1])
	if err != nil {
		return "", 0, "", err
	}
	if qty == 0 {
		return "", 0, "", errors.New("quantity must be greater than zero")
	}
	price, err := offers.NormalizePrice(parts[2])
	if err != nil {
		return "", 0, "", err
	}
	return name, qty, price, nil
}

// SetQuantity updates quantity from "<id> <qty>", or starts the flow.
func (h *Commands) SetQuantity(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)
	if payload == "" {
		return sendReply(c, h.flows.Start(c.Sender().ID, StateQuantityID))
	}

	fields := strings.Fields(payload)
	if len(fields) != 2 {
		return tghelpers.SendText(c, "Usage: /setqty <id> <qty>")
	}
	id, err := offers.ParseID(fields[0])
	if err != nil {
		return tghelpers.SendText(c, err.Error())
	}
	qty, err := offers.ParseQuantity(fields[1])
	if err != nil {
		return tghelpers.SendText(c, err.Error())
	}

	ctx := tghelpers.BuildContext(c)
	res, err := h.svc.SetQuantity(ctx, id, qty)
	if err != nil {
		if errors.Is(err, offers.ErrNotFound) {
			return tghelpers.SendText(c, msgNotFound)
		}
		return tghelpers.SendText(c, "Could not update the offer: "+err.Error())
	}
	if res.Retired {
		return tghelpers.SendText(c, soldOutReply(id, res.AnnouncementRemoved))
	}
	return tghelpers.SendText(c, fmt.Sprintf("Updated #%d quantity to %d.", id, qty))
}

// SetPrice updates price from "<id> <price>", or starts the flow.
func (h *Commands) SetPrice(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)
	if payload == "" {
		return sendReply(c, h.flows.Start(c.Sender().ID, StatePriceID))
	}

	fields := strings.Fields(payload)
	if len(fields) != 2 {
		return tghelpers.SendText(c, "Usage: /setprice <id> <price>")
	}
	id, err := offers.ParseID(fields[0])
	if err != nil {
		return tghelpers.SendText(c, err.Error())
	}
	price, err := offers.NormalizePrice(fields[1])
	if err != nil {
		return tghelpers.SendText(c, err.Error())
	}

	ctx := tghelpers.BuildContext(c)
	if _, err := h.svc.SetPrice(ctx, id, price); err != nil {
		if errors.Is(err, offers.ErrNotFound) {
			return tghelpers.SendText(c, msgNotFound)
		}
		return tghelpers.SendText(c, "Could not update the offer: "+err.Error())
	}
	return tghelpers.SendText(c, fmt.Sprintf("Updated #%d price to $%s.", id, price))
}

// SoldOut retires an offer from "<id>", or starts the flow.
func (h *Commands) SoldOut(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)
	if payload == "" {
		return sendReply(c, h.flows.Start(c.Sender().ID, StateSoldOutID))
	}

	id, err := offers.ParseID(payload)
	if err != nil {
		return tghelpers.SendText(c, err.Error())
	}
	ctx := tghelpers.BuildContext(c)
	res, err := h.svc.Retire(ctx, id)
	if err != nil {
		if errors.Is(err, offers.ErrNotFound) {
			return tghelpers.SendText(c, msgNotFound)
		}
		return tghelpers.SendText(c, "Could not update the offer: "+err.Error())
	}
	return tghelpers.SendText(c, soldOutReply(id, res.AnnouncementRemoved))
}

// Announce re-publishes an active offer from "<id>", or starts the flow.
func (h *Commands) Announce(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)
	if payload == "" {
		return sendReply(c, h.flows.Start(c.Sender().ID, StateAnnounceID))
	}

	id, err := offers.ParseID(payload)
	if err != nil {
		return tghelpers.SendText(c, err.Error())
	}
	ctx := tghelpers.BuildContext(c)
	if _, err := h.svc.Reannounce(ctx, id, c.Chat().ID); err != nil {
		switch {
		case errors.Is(err, offers.ErrNotFound), errors.Is(err, offers.ErrInactiveOffer):
			return tghelpers.SendText(c, "Offer not found or inactive.")
		default:
			return tghelpers.SendText(c, "Announcement failed: "+err.Error())
		}
	}
	return tghelpers.SendText(c, fmt.Sprintf("Announced #%d.", id))
}

// SetAnnounce records the announcement destination: an explicit chat id from
// the payload, or the current chat.
func (h *Commands) SetAnnounce(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	target := c.Chat().ID
	if payload := strings.TrimSpace(c.Message().Payload); payload != "" {
		id, err := offers.ParseID(payload)
		if err != nil {
			return tghelpers.SendText(c, "Usage: /setannounce [chat id]")
		}
		target = id
	}
	if err := h.svc.SetAnnounceChat(ctx, target); err != nil {
		return tghelpers.SendText(c, "Could not save the announcement chat: "+err.Error())
	}
	if target == c.Chat().ID {
		return tghelpers.SendText(c, "Announcements will be posted to this chat.")
	}
	return tghelpers.SendText(c, fmt.Sprintf("Announcements will be posted to chat %d.", target))
}

// Upload starts the file-upload flow.
func (h *Commands) Upload(c tele.Context) error {
	return sendReply(c, h.flows.Start(c.Sender().ID, StateUploadFile))
}

// NotAuthorized is the shared rejection reply for admin-only commands.
func NotAuthorized(c tele.Context) error {
	return tghelpers.SendText(c, msgNotAuthorized)
}

// adminOnly guards a handler directly. Alias lookups dispatch handlers
// without the command route middleware, so the check must live on the
// handler itself.
func (h *Commands) adminOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !h.isAdmin(c.Sender().ID) {
			return NotAuthorized(c)
		}
		return next(c)
	}
}

// Register binds every command to the registry. Menu labels and free-text
// keywords are aliases, so a button press or a bare word routes to the same
// handler as the slash command.
func Register(reg *tg.Registry, h *Commands) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Greeting and a pointer to /stock",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.Help,
		Description: "List available commands",
		Aliases:     []string{"help"},
	})
	reg.RegisterCommand("/stock", commands.Command{
		Handler:     h.Stock,
		Description: "Show current offers",
		Aliases:     []string{"list", "stock", "offers", LabelStock},
	})
	reg.RegisterCommand("/add", commands.Command{
		Handler:     h.adminOnly(h.Add),
		Description: "Add an offer (Name | qty | price)",
		AdminOnly:   true,
		Aliases:     []string{LabelAdd},
	})
	reg.RegisterCommand("/setqty", commands.Command{
		Handler:     h.adminOnly(h.SetQuantity),
		Description: "Change an offer's quantity",
		AdminOnly:   true,
		Aliases:     []string{"setquantity", LabelQuantity},
	})
	reg.RegisterCommand("/setprice", commands.Command{
		Handler:     h.adminOnly(h.SetPrice),
		Description: "Change an offer's price",
		AdminOnly:   true,
		Aliases:     []string{LabelPrice},
	})
	reg.RegisterCommand("/soldout", commands.Command{
		Handler:     h.adminOnly(h.SoldOut),
		Description: "Mark an offer as sold out",
		AdminOnly:   true,
		Aliases:     []string{"remove", LabelSoldOut},
	})
	reg.RegisterCommand("/announce", commands.Command{
		Handler:     h.adminOnly(h.Announce),
		Description: "Re-post an offer announcement",
		AdminOnly:   true,
		Aliases:     []string{LabelAnnounce},
	})
	reg.RegisterCommand("/setannounce", commands.Command{
		Handler:     h.adminOnly(h.SetAnnounce),
		Description: "Post announcements to this chat",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/upload", commands.Command{
		Handler:     h.adminOnly(h.Upload),
		Description: "Publish a data file",
		AdminOnly:   true,
		Aliases:     []string{LabelUpload},
	})
	reg.RegisterCommand("/menu", commands.Command{
		Handler:     h.adminOnly(h.Menu),
		Description: "Show the admin keyboard",
		AdminOnly:   true,
		Aliases:     []string{"menu"},
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     h.Cancel,
		Description: "Abort the current step",
		Aliases:     []string{"cancel", LabelCancel},
	})
}

// UnknownText is the fallback for unrecognized free text outside a flow.
func (h *Commands) UnknownText(c tele.Context) error {
	// Non-commands from customers are ignored, matching channel etiquette.
	return nil
}

// UnexpectedDocument is the fallback for documents outside the upload flow.
func (h *Commands) UnexpectedDocument(c tele.Context) error {
	if !h.isAdmin(c.Sender().ID) {
		return nil
	}
	return tghelpers.SendText(c, "Send /upload first, then the file.")
}
