package handlers

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	tele "gopkg.in/telebot.v4"

	"archivebot/bot/archive"
	tghelpers "archivebot/core/telegram/helpers"
	"archivebot/core/telegram/keyboard"
)

const helpText = "*Archive bot*\n\n" +
	"Send me documents, photos, videos or audio and I will keep them in your session.\n\n" +
	"*Compile* packs every stored file into a single archive: ZIP, 7Z, TAR or TAR.GZ.\n" +
	"*Extract* unpacks the archives you sent (.zip, .7z, .tar, .tar.gz, .tgz, .apk) back into the session, so you can repack them in another format.\n\n" +
	"Limits apply per user; use the file list to see how much room is left."

func mainMenuMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "📦 Compile archive", Unique: cbArchiveMenu}},
		[]keyboard.InlineBtn{{Text: "📂 Extract archives", Unique: cbExtractMenu}},
		[]keyboard.InlineBtn{
			{Text: "📋 My files", Unique: cbListFiles},
			{Text: "🗑 Clear files", Unique: cbClearFiles},
		},
		[]keyboard.InlineBtn{{Text: "ℹ️ Help", Unique: cbHelp}},
	)
}

func formatMenuMarkup() *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(archive.Formats)+1)
	for _, f := range archive.Formats {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   f.Describe(),
			Unique: cbCreate,
			Data:   f.String(),
		}})
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "« Back", Unique: cbMainMenu}})
	return keyboard.InlineButtonsRows(rows...)
}

func confirmMarkup(confirmKey, payload string) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Confirm", Unique: confirmKey, Data: payload},
		{Text: "❌ Cancel", Unique: cbCancelOp},
	})
}

func backToMenuMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "« Menu", Unique: cbMainMenu},
	})
}

// Start wipes any previous session and shows the main menu.
func (h *Handlers) Start(c tele.Context) error {
	if err := h.svc.Start(senderID(c)); err != nil {
		return err
	}
	text := "*Archive bot*\n\nSend me files and I will compile them into an archive, " +
		"or send archives and I will extract them.\n\nStarting fresh: your previous session was cleared."
	return tghelpers.SendMD(c, text, mainMenuMarkup())
}

// MainMenu shows the main menu with the session summary.
func (h *Handlers) MainMenu(c tele.Context) error {
	view := h.svc.View(senderID(c))
	limits := h.svc.Limits()
	text := fmt.Sprintf("*Main menu*\n\nStored files: %d of %d\nTotal size: %s",
		len(view.Files), limits.MaxFiles, humanize.Bytes(uint64(view.TotalSize)))
	return tghelpers.EditOrSendMD(c, text, mainMenuMarkup())
}

// Help shows usage instructions.
func (h *Handlers) Help(c tele.Context) error {
	return tghelpers.EditOrSendMD(c, helpText, backToMenuMarkup())
}

// ListFiles renders the stored file list. File names are user controlled,
// so the listing is sent without a parse mode.
func (h *Handlers) ListFiles(c tele.Context) error {
	view := h.svc.View(senderID(c))
	if len(view.Files) == 0 {
		return tghelpers.EditOrSendMD(c, "Your session is empty. Send me some files first.", backToMenuMarkup())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your files (%d of %d):\n\n", len(view.Files), h.svc.Limits().MaxFiles)
	for i, rec := range view.Files {
		marker := ""
		if archive.CanExtract(rec.Name) {
			marker = " [archive]"
		} else if archive.IsArchive(rec.Name) {
			marker = " [archive, not extractable]"
		}
		fmt.Fprintf(&b, "%d. %s (%s)%s\n", i+1, rec.Name, humanize.Bytes(uint64(rec.Size)), marker)
	}
	fmt.Fprintf(&b, "\nTotal: %s", humanize.Bytes(uint64(view.TotalSize)))
	return c.EditOrSend(b.String(), backToMenuMarkup())
}

// ClearFiles wipes the session.
func (h *Handlers) ClearFiles(c tele.Context) error {
	removed, err := h.svc.ClearFiles(senderID(c))
	if err != nil {
		return err
	}
	text := fmt.Sprintf("🗑 Removed %d file(s). Your session is empty.", removed)
	return tghelpers.EditOrSendMD(c, text, backToMenuMarkup())
}

// Cancel discards a staged operation.
func (h *Handlers) Cancel(c tele.Context) error {
	if h.svc.Cancel(senderID(c)) {
		return tghelpers.EditOrSendMD(c, "Operation cancelled.", backToMenuMarkup())
	}
	return tghelpers.EditOrSendMD(c, "Nothing to cancel.", backToMenuMarkup())
}

// UnknownText nudges the user towards the menu.
func (h *Handlers) UnknownText(c tele.Context) error {
	return tghelpers.SendMD(c, "Send me a file, or use the menu below.", mainMenuMarkup())
}
