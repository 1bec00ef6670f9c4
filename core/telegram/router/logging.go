package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/logger"
	tghelpers "github.com/m3rciful/orbitbot/core/telegram/helpers"
)

// logHandlerSummary writes one line per handled update.
func logHandlerSummary(c tele.Context, handlerName string, start time.Time, status string, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)
	if status == "" {
		status = "ok"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.Duration("duration", logger.Took(start)),
	}
	attrs = append(attrs, extras...)
	level := slog.LevelInfo
	if status == "skip" {
		level = slog.LevelDebug
	}
	logger.LogEvent(ctx, logger.Component("tg"), level, "handler.handled", attrs...)
}
