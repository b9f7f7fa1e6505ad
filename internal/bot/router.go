// Package bot dispatches inbound chat commands: subscribe, unsubscribe,
// start and help.
package bot

import (
	"context"
	"strings"
	"time"

	"flightbot/internal/subscribers"
	kit "flightbot/internal/transport"
	"flightbot/pkg/logx"
)

const (
	replyStart         = "Привет! /subscribe — получать уведомления, /unsubscribe — отписаться."
	replySubscribed    = "Подписка оформлена! Буду оповещать за час до рейса."
	replyAlreadySub    = "Вы уже подписаны ✔️"
	replyUnsubscribed  = "Вы отписались."
	replyNotSubscribed = "Вы и так не были подписаны."
	replyHelp          = "/subscribe — включить уведомления\n/unsubscribe — выключить\n/help — справка"
)

// Router maps slash commands to subscriber-store mutations and replies.
type Router struct {
	adapter kit.Adapter
	store   *subscribers.Store
	log     logx.Logger

	// onCountChange, when set, receives the subscriber count after every
	// mutation (feeds the metrics gauge).
	onCountChange func(n int)
}

func NewRouter(adapter kit.Adapter, store *subscribers.Store, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{adapter: adapter, store: store, log: log}
}

func (r *Router) OnCountChange(fn func(n int)) { r.onCountChange = fn }

// MenuCommands returns the command list for the platform menu.
func MenuCommands() []kit.BotCommand {
	return []kit.BotCommand{
		{Command: "start", Description: "Что умеет бот"},
		{Command: "subscribe", Description: "Включить уведомления о рейсах"},
		{Command: "unsubscribe", Description: "Выключить уведомления"},
		{Command: "help", Description: "Справка"},
	}
}

// DispatchLoop consumes updates until ctx is done. Handler failures are
// logged and never stop the loop.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.Message == nil {
				continue
			}
			r.handle(ctx, up.Message)
		}
	}
}

func (r *Router) handle(ctx context.Context, m *kit.Message) {
	cmd, ok := parseCommand(m.Text)
	if !ok {
		return
	}

	var reply string
	switch cmd {
	case "start":
		reply = replyStart
	case "subscribe":
		if r.store.Add(m.ChatID) {
			reply = replySubscribed
			r.log.Info("subscribed", logx.Int64("chat_id", m.ChatID), logx.Int("total", r.store.Count()))
		} else {
			reply = replyAlreadySub
		}
		r.notifyCount()
	case "unsubscribe":
		if r.store.Remove(m.ChatID) {
			reply = replyUnsubscribed
			r.log.Info("unsubscribed", logx.Int64("chat_id", m.ChatID), logx.Int("total", r.store.Count()))
		} else {
			reply = replyNotSubscribed
		}
		r.notifyCount()
	case "help":
		reply = replyHelp
	default:
		return
	}

	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := r.adapter.SendText(sctx, kit.ChatTarget{ChatID: m.ChatID}, reply, nil); err != nil {
		r.log.Warn("command reply failed", logx.String("cmd", cmd), logx.Int64("chat_id", m.ChatID), logx.Err(err))
	}
}

func (r *Router) notifyCount() {
	if r.onCountChange != nil {
		r.onCountChange(r.store.Count())
	}
}

// parseCommand extracts the command name from a message, tolerating bot
// mentions ("/subscribe@flight_bot") and trailing arguments.
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	first := strings.Fields(text)[0]
	first = strings.TrimPrefix(first, "/")
	if i := strings.IndexByte(first, '@'); i >= 0 {
		first = first[:i]
	}
	if first == "" {
		return "", false
	}
	return strings.ToLower(first), true
}
