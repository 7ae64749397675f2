package handlers

import (
	"offersbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Menu button labels. Each label is an alias of its command, so pressing a
// button behaves exactly like typing the command.
const (
	LabelAdd      = "➕ Add offer"
	LabelStock    = "📦 Stock"
	LabelQuantity = "✏️ Set quantity"
	LabelPrice    = "💲 Set price"
	LabelSoldOut  = "🚫 Sold out"
	LabelAnnounce = "📣 Announce"
	LabelUpload   = "📤 Upload file"
	LabelCancel   = "❌ Cancel"
)

var menuLabels = map[string]struct{}{
	LabelAdd:      {},
	LabelStock:    {},
	LabelQuantity: {},
	LabelPrice:    {},
	LabelSoldOut:  {},
	LabelAnnounce: {},
	LabelUpload:   {},
	LabelCancel:   {},
}

// IsMenuLabel reports whether text is one of the menu button labels.
func IsMenuLabel(text string) bool {
	_, ok := menuLabels[text]
	return ok
}

// AdminMenu is the reply keyboard shown to admins via /menu.
func AdminMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{LabelAdd, LabelStock},
		[]string{LabelQuantity, LabelPrice},
		[]string{LabelSoldOut, LabelAnnounce},
		[]string{LabelUpload, LabelCancel},
	)
}
