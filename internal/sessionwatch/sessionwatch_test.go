package sessionwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type restarter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *restarter) RestartMonitoring() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *restarter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type chanSource struct {
	ch     chan Event
	err    error
	closed bool
}

func (s *chanSource) Events(context.Context) (<-chan Event, error) {
	return s.ch, s.err
}

func (s *chanSource) Close() error {
	s.closed = true
	return nil
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		sig  *dbus.Signal
		want Kind
		ok   bool
	}{
		{"sleep", &dbus.Signal{Name: prepareForSleepSignal, Body: []any{true}}, Suspend, true},
		{"resume", &dbus.Signal{Name: prepareForSleepSignal, Body: []any{false}}, Resume, true},
		{"unlock", &dbus.Signal{Name: unlockSignal}, Unlock, true},
		{"lock", &dbus.Signal{Name: lockSignal}, Lock, true},
		{"sleep without body", &dbus.Signal{Name: prepareForSleepSignal}, 0, false},
		{"sleep with wrong type", &dbus.Signal{Name: prepareForSleepSignal, Body: []any{"yes"}}, 0, false},
		{"unrelated", &dbus.Signal{Name: "org.freedesktop.DBus.NameOwnerChanged"}, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := Decode(tt.sig)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestHandleRespectsOptions(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	r := &restarter{}
	w := New(nil, r, Options{RestartOnResume: true}, nil)

	assert.False(t, w.Handle(Event{Kind: Suspend, At: t0}))
	assert.False(t, w.Handle(Event{Kind: Unlock, At: t0}))
	assert.True(t, w.Handle(Event{Kind: Resume, At: t0}))
	assert.Equal(t, 1, r.count())

	w.SetOptions(Options{RestartOnUnlock: true})
	assert.False(t, w.Handle(Event{Kind: Resume, At: t0.Add(time.Hour)}))
	assert.True(t, w.Handle(Event{Kind: Unlock, At: t0.Add(time.Hour)}))
	assert.Equal(t, 2, r.count())
	assert.Equal(t, 2, w.Restarts())
}

func TestHandleCoalescesResumeThenUnlock(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	r := &restarter{}
	w := New(nil, r, Options{RestartOnResume: true, RestartOnUnlock: true}, nil)

	assert.True(t, w.Handle(Event{Kind: Resume, At: t0}))
	assert.False(t, w.Handle(Event{Kind: Unlock, At: t0.Add(500 * time.Millisecond)}))
	assert.True(t, w.Handle(Event{Kind: Unlock, At: t0.Add(DefaultCoalesce)}))
	assert.Equal(t, 2, r.count())
}

func TestHandleRestartErrorStillCounts(t *testing.T) {
	r := &restarter{err: errors.New("permission denied")}
	w := New(nil, r, Options{RestartOnUnlock: true}, nil)

	assert.True(t, w.Handle(Event{Kind: Unlock, At: time.Now()}))
	assert.Equal(t, 1, r.count())
}

func TestRunUntilSourceCloses(t *testing.T) {
	src := &chanSource{ch: make(chan Event, 2)}
	r := &restarter{}
	w := New(src, r, Options{RestartOnResume: true, RestartOnUnlock: true, Coalesce: time.Millisecond}, nil)

	t0 := time.Unix(1_700_000_000, 0)
	src.ch <- Event{Kind: Resume, At: t0}
	src.ch <- Event{Kind: Unlock, At: t0.Add(time.Second)}
	close(src.ch)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, 2, r.count())
	assert.True(t, src.closed)
}

func TestRunStopsOnContext(t *testing.T) {
	src := &chanSource{ch: make(chan Event)}
	w := New(src, &restarter{}, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunSourceError(t *testing.T) {
	src := &chanSource{err: ErrUnsupported}
	w := New(src, &restarter{}, Options{}, nil)
	assert.ErrorIs(t, w.Run(context.Background()), ErrUnsupported)
}
