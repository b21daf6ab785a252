package router

import (
	"time"

	tg "archivebot/core/telegram"
	"archivebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls fallback behaviour for plain text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// MediaOptions wires handlers for incoming file-bearing updates.
// Nil handlers leave the corresponding endpoint unrouted.
type MediaOptions struct {
	Document tele.HandlerFunc
	Photo    tele.HandlerFunc
	Video    tele.HandlerFunc
	Audio    tele.HandlerFunc
}

// TextRoutes builds the handler for text updates: registered commands first,
// then the registry fallback, then the unknown-text handler.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}

// MediaRoutes builds routes for document, photo, video and audio updates,
// each wrapped with the shared recover/logger middleware.
func MediaRoutes(opts MediaOptions) []tg.Route {
	wrap := func(name string, h tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			return handleWithSummary(c, name, start, "", "", func() error {
				return h(c)
			})
		}
	}

	var routes []tg.Route
	add := func(endpoint any, name string, h tele.HandlerFunc) {
		if h == nil {
			return
		}
		routes = append(routes, tg.Route{
			Endpoint: endpoint,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(wrap(name, h))),
		})
	}

	add(tele.OnDocument, "upload.document", opts.Document)
	add(tele.OnPhoto, "upload.photo", opts.Photo)
	add(tele.OnVideo, "upload.video", opts.Video)
	add(tele.OnAudio, "upload.audio", opts.Audio)

	return routes
}
