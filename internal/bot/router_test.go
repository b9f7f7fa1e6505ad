package bot

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"flightbot/internal/subscribers"
	kit "flightbot/internal/transport"
	"flightbot/pkg/logx"
)

type fakeAdapter struct {
	mu      sync.Mutex
	replies []string
	chats   []int64
}

func (a *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (a *fakeAdapter) Stop(context.Context) error                     { return nil }

func (a *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replies = append(a.replies, text)
	a.chats = append(a.chats, to.ChatID)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (a *fakeAdapter) sent() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.replies...)
}

func newTestRouter(t *testing.T) (*Router, *fakeAdapter, *subscribers.Store) {
	t.Helper()
	adapter := &fakeAdapter{}
	store := subscribers.NewStore(filepath.Join(t.TempDir(), "subs.json"), logx.Nop())
	return NewRouter(adapter, store, logx.Nop()), adapter, store
}

func dispatch(t *testing.T, r *Router, msgs ...kit.Message) {
	t.Helper()
	ch := make(chan kit.Update, len(msgs))
	for i := range msgs {
		ch <- kit.Update{Message: &msgs[i]}
	}
	close(ch)
	if err := r.DispatchLoop(context.Background(), ch); err != nil {
		t.Fatalf("DispatchLoop error: %v", err)
	}
}

func TestSubscribeFlow(t *testing.T) {
	t.Parallel()
	r, adapter, store := newTestRouter(t)

	dispatch(t, r,
		kit.Message{ChatID: 42, Text: "/subscribe"},
		kit.Message{ChatID: 42, Text: "/subscribe"},
		kit.Message{ChatID: 42, Text: "/unsubscribe"},
		kit.Message{ChatID: 42, Text: "/unsubscribe"},
	)

	want := []string{replySubscribed, replyAlreadySub, replyUnsubscribed, replyNotSubscribed}
	got := adapter.sent()
	if len(got) != len(want) {
		t.Fatalf("got %d replies, want %d: %q", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reply[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if store.Count() != 0 {
		t.Fatalf("Count = %d after unsubscribe, want 0", store.Count())
	}
}

func TestStartAndHelpReplies(t *testing.T) {
	t.Parallel()
	r, adapter, _ := newTestRouter(t)

	dispatch(t, r,
		kit.Message{ChatID: 1, Text: "/start"},
		kit.Message{ChatID: 1, Text: "/help"},
	)

	got := adapter.sent()
	if len(got) != 2 || got[0] != replyStart || got[1] != replyHelp {
		t.Fatalf("replies = %q", got)
	}
}

func TestNonCommandsIgnored(t *testing.T) {
	t.Parallel()
	r, adapter, _ := newTestRouter(t)

	dispatch(t, r,
		kit.Message{ChatID: 5, Text: "hello"},
		kit.Message{ChatID: 5, Text: "/"},
		kit.Message{ChatID: 5, Text: "/unknowncmd"},
		kit.Message{ChatID: 5, Text: ""},
	)
	if got := adapter.sent(); len(got) != 0 {
		t.Fatalf("replies = %q, want none", got)
	}
}

func TestCountChangeCallback(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRouter(t)
	var counts []int
	r.OnCountChange(func(n int) { counts = append(counts, n) })

	dispatch(t, r,
		kit.Message{ChatID: 7, Text: "/subscribe"},
		kit.Message{ChatID: 8, Text: "/subscribe"},
		kit.Message{ChatID: 7, Text: "/unsubscribe"},
	)
	want := []int{1, 2, 1}
	if len(counts) != len(want) {
		t.Fatalf("counts = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("counts = %v, want %v", counts, want)
		}
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in  string
		cmd string
		ok  bool
	}{
		{"/subscribe", "subscribe", true},
		{"/subscribe@gsv_flight_bot", "subscribe", true},
		{"/SUBSCRIBE", "subscribe", true},
		{"  /help extra args  ", "help", true},
		{"/", "", false},
		{"subscribe", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		cmd, ok := parseCommand(tc.in)
		if cmd != tc.cmd || ok != tc.ok {
			t.Fatalf("parseCommand(%q) = (%q, %v), want (%q, %v)", tc.in, cmd, ok, tc.cmd, tc.ok)
		}
	}
}
