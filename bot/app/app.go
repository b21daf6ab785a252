// Package app assembles the archive bot: configuration, storage, the
// workflow service and the Telegram surface.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	botconfig "archivebot/bot/config"
	"archivebot/bot/handlers"
	"archivebot/bot/service"
	"archivebot/bot/session"
	"archivebot/bot/stats"
	corebootstrap "archivebot/core/bootstrap"
	corecmd "archivebot/core/cmd"
	coreconfig "archivebot/core/config"
	coretelegram "archivebot/core/telegram"
	"archivebot/core/telegram/router"
)

// App carries the bot's wired components through the runtime lifecycle.
type App struct {
	cfg      *botconfig.Config
	db       *sqlx.DB
	store    *session.Store
	svc      *service.Service
	sweeper  *session.Sweeper
	handlers *handlers.Handlers
}

// CoreConfig exposes the embedded core configuration.
func (a *App) CoreConfig() *coreconfig.Config {
	if a == nil || a.cfg == nil {
		return nil
	}
	return a.cfg.CoreConfig()
}

// LoadConfig adapts the bot config loader to the runner's interface.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	return botconfig.Load(path)
}

// Bootstrap initializes infrastructure and wires the application graph.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*botconfig.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	boot, err := corebootstrap.Run(corebootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(cfg.Files.TempRoot, session.Limits{
		MaxFiles:    cfg.Files.MaxFilesPerUser,
		MaxFileSize: cfg.Files.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	var recorder service.Recorder
	var statsRepo *stats.Repository
	if boot.DB != nil {
		statsRepo = stats.NewRepository(boot.DB)
		recorder = statsRepo
	}

	svc := service.New(store, recorder)

	sweeper := session.NewSweeper(store,
		time.Duration(cfg.Files.CleanupAgeHours)*time.Hour,
		cfg.Files.CleanupSchedule)
	sweeper.SetLock(svc.Lock)

	return &App{
		cfg:      cfg,
		db:       boot.DB,
		store:    store,
		svc:      svc,
		sweeper:  sweeper,
		handlers: handlers.New(svc, statsRepo),
	}, nil
}

// TelegramRunOptions builds the routing table and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.handlers.Register(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}

	coreCfg := a.cfg.CoreConfig()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: coreCfg.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{})...)
	routes = append(routes, router.MediaRoutes(router.MediaOptions{
		Document: a.handlers.OnDocument,
		Photo:    a.handlers.OnPhoto,
		Video:    a.handlers.OnVideo,
		Audio:    a.handlers.OnAudio,
	})...)

	return coretelegram.RunOptions{
		Config:      coreCfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(coreCfg, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.sweeper.Start()
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.sweeper.Stop()
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}, nil
}
