package handlers

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	tele "gopkg.in/telebot.v4"

	"archivebot/bot/service"
	tghelpers "archivebot/core/telegram/helpers"
	"archivebot/core/telegram/keyboard"
)

// ExtractMenu shows extraction options for the stored archives.
func (h *Handlers) ExtractMenu(c tele.Context) error {
	view := h.svc.View(senderID(c))
	if len(view.Extractable) == 0 {
		return tghelpers.EditOrSendMD(c,
			"No extractable archives in your session. Send me a .zip, .7z, .tar, .tar.gz, .tgz or .apk file.",
			backToMenuMarkup())
	}
	text := fmt.Sprintf("*Extract archives*\n\nExtractable archives: %d", len(view.Extractable))
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "📂 Extract all", Unique: cbExtractAll}},
		[]keyboard.InlineBtn{{Text: "📋 Show archives", Unique: cbListExtractable}},
		[]keyboard.InlineBtn{{Text: "« Back", Unique: cbMainMenu}},
	)
	return tghelpers.EditOrSendMD(c, text, markup)
}

// ListExtractable lists the archives that would be extracted.
func (h *Handlers) ListExtractable(c tele.Context) error {
	view := h.svc.View(senderID(c))
	if len(view.Extractable) == 0 {
		return tghelpers.EditOrSendMD(c,
			"No extractable archives in your session.", backToMenuMarkup())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Extractable archives (%d):\n\n", len(view.Extractable))
	for i, rec := range view.Extractable {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, rec.Name, humanize.Bytes(uint64(rec.Size)))
	}
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "📂 Extract all", Unique: cbExtractAll}},
		[]keyboard.InlineBtn{{Text: "« Back", Unique: cbExtractMenu}},
	)
	return c.EditOrSend(b.String(), markup)
}

// ExtractAll stages extraction of every stored archive.
func (h *Handlers) ExtractAll(c tele.Context) error {
	count, status := h.svc.RequestExtract(senderID(c))
	if status == service.EmptySelection {
		return tghelpers.EditOrSendMD(c,
			"No extractable archives in your session.", backToMenuMarkup())
	}
	text := fmt.Sprintf("Extract *%d archive(s)* into your session?\n\n"+
		"Extracted files count towards your file limit.", count)
	return tghelpers.EditOrSendMD(c, text, confirmMarkup(cbConfirmExtract, ""))
}

// ConfirmExtract runs the staged extraction pass and reports the result.
func (h *Handlers) ConfirmExtract(c tele.Context) error {
	res, err := h.svc.ConfirmExtract(tghelpers.BuildContext(c), senderID(c))
	if err != nil {
		return err
	}
	switch res.Status {
	case service.NothingPending:
		return tghelpers.EditOrSendMD(c,
			"Nothing is awaiting confirmation.", backToMenuMarkup())
	case service.EmptySelection:
		return tghelpers.EditOrSendMD(c,
			"No extractable archives in your session.", backToMenuMarkup())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📂 Extracted %d file(s) from %d archive(s).", res.Merged, res.Archives)
	if len(res.Failed) > 0 {
		fmt.Fprintf(&b, "\n\nFailed to extract:\n")
		for _, name := range res.Failed {
			fmt.Fprintf(&b, "• %s\n", name)
		}
	}
	if res.Capped {
		b.WriteString("\n\nFile limit reached, some extracted files were not added.")
	}
	return c.EditOrSend(b.String(), mainMenuMarkup())
}
