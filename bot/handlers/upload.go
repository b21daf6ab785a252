package handlers

import (
	"fmt"

	"github.com/dustin/go-humanize"
	tele "gopkg.in/telebot.v4"

	"archivebot/bot/service"
	"archivebot/core/telegram/format"
	tghelpers "archivebot/core/telegram/helpers"
	"archivebot/core/telegram/keyboard"
)

// OnDocument stores an uploaded document.
func (h *Handlers) OnDocument(c tele.Context) error {
	doc := c.Message().Document
	if doc == nil {
		return nil
	}
	name := doc.FileName
	if name == "" {
		name = "document"
	}
	return h.receive(c, &doc.File, name, doc.FileSize)
}

// OnPhoto stores an uploaded photo. Telegram strips photo names, so a
// generic one is assigned and deduplicated by the session.
func (h *Handlers) OnPhoto(c tele.Context) error {
	photo := c.Message().Photo
	if photo == nil {
		return nil
	}
	return h.receive(c, &photo.File, "photo.jpg", photo.FileSize)
}

// OnVideo stores an uploaded video.
func (h *Handlers) OnVideo(c tele.Context) error {
	video := c.Message().Video
	if video == nil {
		return nil
	}
	name := video.FileName
	if name == "" {
		name = "video.mp4"
	}
	return h.receive(c, &video.File, name, video.FileSize)
}

// OnAudio stores an uploaded audio file.
func (h *Handlers) OnAudio(c tele.Context) error {
	audio := c.Message().Audio
	if audio == nil {
		return nil
	}
	name := audio.FileName
	if name == "" {
		name = "audio.mp3"
	}
	return h.receive(c, &audio.File, name, audio.FileSize)
}

func (h *Handlers) receive(c tele.Context, file *tele.File, name string, declaredSize int64) error {
	limits := h.svc.Limits()
	if declaredSize > limits.MaxFileSize {
		return tghelpers.SendMD(c, fmt.Sprintf(
			"⚠️ File is too large. The limit is %s per file.",
			humanize.Bytes(uint64(limits.MaxFileSize))))
	}

	body, err := c.Bot().File(file)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer body.Close()

	outcome, err := h.svc.ReceiveFile(tghelpers.BuildContext(c), senderID(c), name, declaredSize, body)
	if err != nil {
		return err
	}
	return h.respondToUpload(c, outcome)
}

func (h *Handlers) respondToUpload(c tele.Context, outcome service.AddOutcome) error {
	switch outcome.Status {
	case service.OK:
		name, err := format.EscapeMarkdown(outcome.File.Name, format.MarkdownV1, "")
		if err != nil {
			name = "file"
		}
		text := fmt.Sprintf("✅ Added %s (%s). Files: *%d of %d*.",
			name, humanize.Bytes(uint64(outcome.File.Size)), outcome.Count, outcome.Limit)
		markup := mainMenuMarkup()
		if outcome.Extractable {
			text += "\n\nThis looks like an archive. Want to extract it?"
			markup = keyboard.InlineButtonsRows(
				[]keyboard.InlineBtn{{Text: "📂 Extract archives", Unique: cbExtractMenu}},
				[]keyboard.InlineBtn{{Text: "📦 Compile archive", Unique: cbArchiveMenu}},
				[]keyboard.InlineBtn{{Text: "« Menu", Unique: cbMainMenu}},
			)
		} else if outcome.IsArchive {
			text += "\n\nThis archive format can be stored and compiled, but not extracted."
		}
		return tghelpers.SendMD(c, text, markup)
	case service.LimitExceeded:
		return tghelpers.SendMD(c, fmt.Sprintf(
			"⚠️ File limit reached (%d). Compile or clear your files first.", outcome.Limit),
			mainMenuMarkup())
	case service.SizeExceeded:
		return tghelpers.SendMD(c, fmt.Sprintf(
			"⚠️ File is too large. The limit is %s per file.",
			humanize.Bytes(uint64(h.svc.Limits().MaxFileSize))))
	default:
		return tghelpers.SendMD(c, "Something went wrong while storing the file. Try again.")
	}
}
