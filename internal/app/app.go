// Package app assembles the offers bot: configuration, storage, the offer
// lifecycle service, the upload helper, and the Telegram surface.
package app

import (
	"context"
	"fmt"
	"strings"

	"offersbot/core/bootstrap"
	coretelegram "offersbot/core/telegram"
	"offersbot/core/telegram/router"
	"offersbot/core/telegram/state"
	"offersbot/internal/handlers"
	"offersbot/internal/offers"
	"offersbot/internal/upload"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"
)

// App wires the application components together.
type App struct {
	cfg       *Config
	db        *sqlx.DB
	mgr       state.Manager
	reg       *coretelegram.Registry
	flows     *handlers.Flows
	cmds      *handlers.Commands
	announcer *handlers.Announcer
}

// Bootstrap initializes infrastructure and builds the application graph.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	announcer := handlers.NewAnnouncer()
	store := offers.NewStore(res.DB)
	svc := offers.NewService(store, announcer, cfg.Offers.ContactText, cfg.Offers.AnnounceChatID)

	uploader := upload.NewUploader(cfg.Offers.UploadThresholdMB,
		upload.NewCatboxClient(cfg.Offers.CatboxUserhash),
		upload.NewGofileClient(),
	)

	mgr := state.NewMemoryManager()
	reg := coretelegram.NewRegistry()

	flows := handlers.NewFlows(mgr, svc, uploader, announcer, cfg.IsAdmin, classifier(reg))
	cmds := handlers.NewCommands(svc, flows, cfg.IsAdmin)

	handlers.Register(reg, cmds)
	handlers.RegisterFlows(flows, func(cmd string, c tele.Context) error {
		if _, def, ok := reg.LookupCommand(cmd); ok && def.Handler != nil {
			return def.Handler(c)
		}
		return nil
	})
	_ = reg.RegisterCallback(handlers.CancelCallbackKey, handlers.CancelCallback(flows))

	return &App{
		cfg:       cfg,
		db:        res.DB,
		mgr:       mgr,
		reg:       reg,
		flows:     flows,
		cmds:      cmds,
		announcer: announcer,
	}, nil
}

// classifier resolves flow input to a canonical command name: slash commands
// always classify, menu labels classify via their alias. Ordinary words do
// not, so item names typed mid-flow are never mistaken for commands.
func classifier(reg *coretelegram.Registry) func(string) (string, bool) {
	return func(input string) (string, bool) {
		text := strings.TrimSpace(input)
		if text == "" {
			return "", false
		}
		if strings.HasPrefix(text, "/") {
			cmd := strings.Fields(text)[0]
			if key, _, ok := reg.LookupCommand(cmd); ok {
				return key, true
			}
			return cmd, true
		}
		if handlers.IsMenuLabel(text) {
			if key, _, ok := reg.LookupCommand(text); ok {
				return key, true
			}
		}
		return "", false
	}
}

// TelegramRunOptions builds the runtime options for the bot loop.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	routes := router.CommandRoutes(a.reg, router.CommandRouteOptions{
		IsAdmin:       a.cfg.IsAdmin,
		OnAdminReject: handlers.NotAuthorized,
		Guard:         handlers.FlowGuard(a.mgr),
		GuardExempt:   []string{"/cancel", "/help", "/menu"},
	})
	routes = append(routes, router.TextRoutes(a.mgr, a.reg, router.TextOptions{
		UnknownText:     a.cmds.UnknownText,
		UnknownDocument: a.cmds.UnexpectedDocument,
	})...)
	routes = append(routes, router.CallbackRoute(a.reg, router.CallbackOptions{}))

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    a.reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.announcer.Bind(rt.Bot)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.db.Close()
		},
	}, nil
}
