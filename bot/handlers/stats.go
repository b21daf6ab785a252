package handlers

import (
	"fmt"

	"github.com/dustin/go-humanize"
	tele "gopkg.in/telebot.v4"

	tghelpers "archivebot/core/telegram/helpers"
)

// Stats reports lifetime usage aggregates. Requires the database; when
// auditing is disabled the command says so.
func (h *Handlers) Stats(c tele.Context) error {
	if h.stats == nil {
		return tghelpers.SendMD(c, "Statistics are disabled: no database configured.")
	}

	totals, err := h.stats.Totals(tghelpers.BuildContext(c))
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	text := fmt.Sprintf(
		"*Usage statistics*\n\n"+
			"Operations: %d\n"+
			"• compiled: %d\n"+
			"• extracted: %d\n"+
			"• failed: %d\n\n"+
			"Users: %d\nFiles processed: %d\nBytes archived: %s",
		totals.Operations, totals.Creates, totals.Extracts, totals.Failures,
		totals.Users, totals.Files, humanize.Bytes(uint64(totals.Bytes)),
	)
	return tghelpers.SendMD(c, text)
}
