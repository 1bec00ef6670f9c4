// Package router binds telebot endpoints to the message classifier.
package router

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/classify"
	tg "github.com/m3rciful/orbitbot/core/telegram"
	tghelpers "github.com/m3rciful/orbitbot/core/telegram/helpers"
)

// Handler consumes transport-neutral messages.
type Handler interface {
	Handle(ctx context.Context, msg classify.InboundMessage) classify.Route
}

// Options wires the routes.
type Options struct {
	// Inbound returns the current update mapper.
	Inbound func() tg.Inbound
	Handler Handler
	Welcome *Welcome
}

// messageEndpoints are the update kinds that may carry command or conversation text.
var messageEndpoints = []string{
	tele.OnText,
	tele.OnPhoto,
	tele.OnVideo,
	tele.OnAnimation,
	tele.OnDocument,
	tele.OnVenue,
}

// Routes returns the handlers for every supported endpoint.
func Routes(opts Options) []tg.Route {
	onMessage := func(c tele.Context) error {
		start := time.Now()
		ctx := tghelpers.WithHandler(c, "message")
		route := opts.Handler.Handle(ctx, opts.Inbound().FromMessage(c.Message()))
		logRoute(c, "message", start, route)
		return nil
	}

	onCallback := func(c tele.Context) error {
		start := time.Now()
		_ = c.Respond()
		ctx := tghelpers.WithHandler(c, "callback")
		route := opts.Handler.Handle(ctx, opts.Inbound().FromCallback(c.Callback()))
		logRoute(c, "callback", start, route)
		return nil
	}

	routes := make([]tg.Route, 0, len(messageEndpoints)+2)
	for _, ep := range messageEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: onMessage})
	}
	routes = append(routes, tg.Route{Endpoint: tele.OnCallback, Handler: onCallback})
	if opts.Welcome != nil {
		routes = append(routes, tg.Route{Endpoint: tele.OnUserJoined, Handler: opts.Welcome.Handle})
	}
	return routes
}

func logRoute(c tele.Context, name string, start time.Time, route classify.Route) {
	status := "ok"
	switch route {
	case classify.Dropped:
		status = "skip"
	case classify.Blocked:
		status = "blocked"
	}
	logHandlerSummary(c, name, start, status, slog.String("route", route.String()))
}
