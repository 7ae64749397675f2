package router

import (
	"log/slog"
	"offersbot/core/logger"
	tg "offersbot/core/telegram"
	"offersbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	IsAdmin       func(userID int64) bool
	OnAdminReject tele.HandlerFunc
	// Guard, when set, wraps every command except those listed in
	// GuardExempt. Used to block commands while a conversation is pending.
	Guard       tele.MiddlewareFunc
	GuardExempt []string
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOpts := middleware.AdminOptions{
		IsAdmin:  opts.IsAdmin,
		OnReject: opts.OnAdminReject,
	}
	exempt := make(map[string]struct{}, len(opts.GuardExempt))
	for _, cmd := range opts.GuardExempt {
		exempt[cmd] = struct{}{}
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := def.Handler
		h = middleware.RecoverMiddleware(h)
		h = middleware.LoggerMiddleware(h)
		if def.AdminOnly {
			h = middleware.AdminOnlyMiddleware(adminOpts)(h)
		}
		if opts.Guard != nil {
			if _, ok := exempt[cmd]; !ok {
				h = opts.Guard(h)
			}
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
