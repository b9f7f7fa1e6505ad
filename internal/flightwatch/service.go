// Package flightwatch is the notification core: each pass reconciles the
// station schedule against the subscriber list and the dedup state, sending
// each due (subscriber, flight) pair exactly one message.
package flightwatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"flightbot/internal/schedule"
	"flightbot/internal/storage"
	kit "flightbot/internal/transport"
	"flightbot/pkg/logx"
)

// Provider fetches one leg of the station timetable.
type Provider interface {
	Fetch(ctx context.Context, ev schedule.EventType, date time.Time) ([]schedule.FlightEvent, error)
}

// Sender delivers one outbound message.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

// SubscriberSource yields the chat ids to notify during a pass.
type SubscriberSource interface {
	Snapshot() []int64
}

// Metrics is the observability hook; see internal/metrics for the
// Prometheus implementation.
type Metrics interface {
	PassCompleted(d time.Duration)
	ProviderError(event string)
	NotificationSent(tier string)
	NotificationFailed()
	NotificationDeduped()
}

type nopMetrics struct{}

func (nopMetrics) PassCompleted(time.Duration) {}
func (nopMetrics) ProviderError(string)        {}
func (nopMetrics) NotificationSent(string)     {}
func (nopMetrics) NotificationFailed()         {}
func (nopMetrics) NotificationDeduped()        {}

type Config struct {
	Window Window

	// DedupSlack extends a dedup entry's life past the flight's scheduled
	// time, covering clock skew and provider timestamp drift.
	DedupSlack time.Duration

	DedupMaxEntries int
}

// Service runs reconciliation passes. Safe for concurrent Apply/RunPass,
// though passes themselves are serialized by the tick scheduler.
type Service struct {
	mu  sync.Mutex
	cfg Config

	log      logx.Logger
	provider Provider
	subs     SubscriberSource
	sender   Sender
	dedup    *DedupCache
	store    storage.Store
	metrics  Metrics
	loc      *time.Location

	now func() time.Time
}

func New(cfg Config, provider Provider, subs SubscriberSource, sender Sender, store storage.Store, metrics Metrics, loc *time.Location, log logx.Logger) *Service {
	if cfg.Window == (Window{}) {
		cfg.Window = DefaultWindow()
	}
	if cfg.DedupSlack <= 0 {
		cfg.DedupSlack = 30 * time.Minute
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		provider: provider,
		subs:     subs,
		sender:   sender,
		dedup:    NewDedupCache(cfg.DedupMaxEntries, store),
		store:    store,
		metrics:  metrics,
		loc:      loc,
		now:      time.Now,
	}
}

// Apply updates the window bands live (config hot reload).
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	if cfg.Window != (Window{}) {
		s.cfg.Window = cfg.Window
	}
	if cfg.DedupSlack > 0 {
		s.cfg.DedupSlack = cfg.DedupSlack
	}
	s.mu.Unlock()
}

type dueItem struct {
	event   schedule.FlightEvent
	tier    Tier
	minutes int
	text    string
}

// RunPass executes one full reconciliation. The two schedule legs are
// fetched concurrently and fail independently; the pass only errors out
// when no leg produced data.
func (s *Service) RunPass(ctx context.Context) error {
	start := time.Now()
	now := s.now().In(s.loc)

	s.mu.Lock()
	window := s.cfg.Window
	slack := s.cfg.DedupSlack
	s.mu.Unlock()

	legs := []schedule.EventType{schedule.Departure, schedule.Arrival}
	events := make([][]schedule.FlightEvent, len(legs))
	legErrs := make([]error, len(legs))

	var wg sync.WaitGroup
	for i, ev := range legs {
		wg.Add(1)
		go func(i int, ev schedule.EventType) {
			defer wg.Done()
			list, err := s.provider.Fetch(ctx, ev, now)
			if err != nil {
				legErrs[i] = err
				s.metrics.ProviderError(string(ev))
				s.log.Warn("schedule fetch failed; leg skipped this tick", logx.String("event", string(ev)), logx.Err(err))
				return
			}
			events[i] = list
		}(i, ev)
	}
	wg.Wait()

	if legErrs[0] != nil && legErrs[1] != nil {
		return fmt.Errorf("both schedule legs failed: %w", errors.Join(legErrs...))
	}

	var due []dueItem
	for _, list := range events {
		for _, e := range list {
			tier, minutes := window.Classify(now, e.Scheduled)
			if tier == TierNone {
				continue
			}
			due = append(due, dueItem{
				event:   e,
				tier:    tier,
				minutes: minutes,
				text:    FormatMessage(e, tier, minutes, s.loc),
			})
		}
	}

	if len(due) == 0 {
		s.metrics.PassCompleted(time.Since(start))
		return nil
	}

	sent, deduped, failed := 0, 0, 0
	for _, chatID := range s.subs.Snapshot() {
		for _, d := range due {
			key := strconv.FormatInt(chatID, 10) + "|" + d.event.Key()
			if s.dedup.Seen(ctx, key, now) {
				deduped++
				s.metrics.NotificationDeduped()
				continue
			}

			_, err := s.sender.SendText(ctx, kit.ChatTarget{ChatID: chatID}, d.text, &kit.SendOptions{ParseMode: "Markdown"})
			rec := storage.SentRecord{
				At:      now,
				ChatID:  chatID,
				Flight:  d.event.Number,
				Event:   string(d.event.Type),
				Tier:    d.tier.String(),
				Minutes: d.minutes,
				OK:      err == nil,
			}
			if err != nil {
				// At-most-once: a failed send is logged, not retried, and
				// still recorded so transient errors never cause spam.
				failed++
				rec.Error = err.Error()
				s.metrics.NotificationFailed()
				s.log.Warn("notification send failed",
					logx.Int64("chat_id", chatID),
					logx.String("flight", d.event.Number),
					logx.Err(err))
			} else {
				sent++
				s.metrics.NotificationSent(d.tier.String())
			}

			until := d.event.Scheduled.Add(slack)
			s.dedup.Record(ctx, key, until, now)

			if s.store != nil {
				cctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
				if aerr := s.store.AppendSent(cctx, rec); aerr != nil {
					s.log.Debug("sent record append failed", logx.Err(aerr))
				}
				cancel()
			}
		}
	}

	s.metrics.PassCompleted(time.Since(start))
	s.log.Info("reconciliation pass done",
		logx.Int("due", len(due)),
		logx.Int("sent", sent),
		logx.Int("deduped", deduped),
		logx.Int("failed", failed),
		logx.Duration("took", time.Since(start)))
	return nil
}
