// Package handlers wires the Telegram surface of the archive bot: the
// command set, the inline menus, and the upload handlers.
package handlers

import (
	tele "gopkg.in/telebot.v4"

	"archivebot/bot/service"
	"archivebot/bot/stats"
	tg "archivebot/core/telegram"
	"archivebot/core/telegram/commands"
)

// Callback keys used by the inline menus.
const (
	cbMainMenu        = "main_menu"
	cbHelp            = "help"
	cbArchiveMenu     = "archive_menu"
	cbCreate          = "create"
	cbConfirmCreate   = "confirm_create"
	cbExtractMenu     = "extract_menu"
	cbExtractAll      = "extract_all"
	cbConfirmExtract  = "confirm_extract"
	cbListExtractable = "list_extractable"
	cbListFiles       = "list_files"
	cbClearFiles      = "clear_files"
	cbCancelOp        = "cancel_op"
)

// Handlers bundles the dependencies of the Telegram handlers.
type Handlers struct {
	svc   *service.Service
	stats *stats.Repository
}

// New builds the handler set; statsRepo may be nil when auditing is
// disabled. Admin gating of admin-only commands is done by the router.
func New(svc *service.Service, statsRepo *stats.Repository) *Handlers {
	return &Handlers{svc: svc, stats: statsRepo}
}

// Register binds all commands and callbacks on the registry.
func (h *Handlers) Register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Start a fresh session",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.Help,
		Description: "How the bot works",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     h.Stats,
		Description: "Usage statistics",
		AdminOnly:   true,
		Hidden:      true,
	})

	callbacks := map[string]tele.HandlerFunc{
		cbMainMenu:        h.MainMenu,
		cbHelp:            h.Help,
		cbArchiveMenu:     h.ArchiveMenu,
		cbCreate:          h.Create,
		cbConfirmCreate:   h.ConfirmCreate,
		cbExtractMenu:     h.ExtractMenu,
		cbExtractAll:      h.ExtractAll,
		cbConfirmExtract:  h.ConfirmExtract,
		cbListExtractable: h.ListExtractable,
		cbListFiles:       h.ListFiles,
		cbClearFiles:      h.ClearFiles,
		cbCancelOp:        h.Cancel,
	}
	for key, handler := range callbacks {
		if err := reg.RegisterCallback(key, handler); err != nil {
			return err
		}
	}

	reg.SetTextFallback(h.UnknownText)
	return nil
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}
