package handlers

import (
	tghelpers "offersbot/core/telegram/helpers"
	"offersbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// FlowGuard blocks commands while the user has a step pending, so flows can
// only be left through /cancel (the router exempts /cancel, /help and /menu).
func FlowGuard(mgr state.Manager) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if mgr.InProgress(c.Sender().ID) {
				return tghelpers.SendText(c, msgFinishOrCancel)
			}
			return next(c)
		}
	}
}
