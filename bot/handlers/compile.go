package handlers

import (
	"fmt"

	"github.com/dustin/go-humanize"
	tele "gopkg.in/telebot.v4"

	"archivebot/bot/archive"
	"archivebot/bot/service"
	"archivebot/core/telegram/callbacks"
	tghelpers "archivebot/core/telegram/helpers"
)

// ArchiveMenu shows the format picker.
func (h *Handlers) ArchiveMenu(c tele.Context) error {
	view := h.svc.View(senderID(c))
	if len(view.Files) == 0 {
		return tghelpers.EditOrSendMD(c,
			"Your session is empty. Send me some files first, then compile them.",
			backToMenuMarkup())
	}
	text := fmt.Sprintf("*Compile archive*\n\nFiles to pack: %d (%s)\nPick a format:",
		len(view.Files), humanize.Bytes(uint64(view.TotalSize)))
	return tghelpers.EditOrSendMD(c, text, formatMenuMarkup())
}

// Create stages compilation in the chosen format and asks for confirmation.
func (h *Handlers) Create(c tele.Context) error {
	format, err := archive.ParseFormat(callbacks.CallbackPayload(c))
	if err != nil {
		return tghelpers.EditOrSendMD(c, "Unknown archive format.", backToMenuMarkup())
	}

	count, status := h.svc.RequestCreate(senderID(c), format)
	if status == service.EmptySelection {
		return tghelpers.EditOrSendMD(c,
			"Your session is empty. Send me some files first.", backToMenuMarkup())
	}

	text := fmt.Sprintf("Compile *%d file(s)* into a *%s* archive?", count, format.String())
	return tghelpers.EditOrSendMD(c, text, confirmMarkup(cbConfirmCreate, format.String()))
}

// ConfirmCreate runs the staged compilation and delivers the archive.
func (h *Handlers) ConfirmCreate(c tele.Context) error {
	format, err := archive.ParseFormat(callbacks.CallbackPayload(c))
	if err != nil {
		return tghelpers.EditOrSendMD(c, "Unknown archive format.", backToMenuMarkup())
	}
	userID := senderID(c)

	res, err := h.svc.ConfirmCreate(tghelpers.BuildContext(c), userID, format)
	switch res.Status {
	case service.NothingPending:
		return tghelpers.EditOrSendMD(c,
			"Nothing is awaiting confirmation. Pick a format first.", backToMenuMarkup())
	case service.EmptySelection:
		return tghelpers.EditOrSendMD(c,
			"Your session is empty. Send me some files first.", backToMenuMarkup())
	case service.Failed:
		_ = tghelpers.EditOrSendMD(c,
			"⚠️ Compilation failed. Your files are intact, you can retry or pick another format.",
			formatMenuMarkup())
		return err
	}

	_ = c.EditOrSend(fmt.Sprintf("📦 Archive ready: %d file(s), %s. Sending...",
		res.Files, humanize.Bytes(uint64(res.Bytes))))

	doc := &tele.Document{
		File:     tele.FromDisk(res.ArchivePath),
		FileName: res.ArchiveName,
	}
	if err := c.Send(doc); err != nil {
		return fmt.Errorf("send archive: %w", err)
	}
	h.svc.Delivered(userID, res.ArchivePath)

	return tghelpers.SendMD(c,
		"Done. Your files stay in the session, so you can compile another format or clear them.",
		mainMenuMarkup())
}
