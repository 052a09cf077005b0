package capture

import (
	"fmt"
	"sync"
)

type tap struct {
	handle  Handle
	kind    Kind
	mask    Mask
	enabled bool
	key     KeyHandler
	mouse   MouseHandler
	touch   TouchHandler
}

// registry tracks taps and fans notifications out to them. Handlers are
// called outside the lock so they may register or unregister.
type registry struct {
	mu   sync.RWMutex
	next Handle
	taps map[Handle]*tap
}

func (r *registry) add(t *tap) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taps == nil {
		r.taps = make(map[Handle]*tap)
	}
	r.next++
	t.handle = r.next
	t.enabled = true
	r.taps[t.handle] = t
	return t.handle
}

func (r *registry) enable(h Handle, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.taps[h]
	if !ok {
		return fmt.Errorf("enable %d: %w", h, ErrUnknownHandle)
	}
	t.enabled = on
	return nil
}

// remove drops h and returns its kind plus the number of taps of that kind
// still registered.
func (r *registry) remove(h Handle) (Kind, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.taps[h]
	if !ok {
		return 0, 0, fmt.Errorf("unregister %d: %w", h, ErrUnknownHandle)
	}
	delete(r.taps, h)
	return t.kind, r.countLocked(t.kind), nil
}

func (r *registry) count(k Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked(k)
}

func (r *registry) countLocked(k Kind) int {
	n := 0
	for _, t := range r.taps {
		if t.kind == k {
			n++
		}
	}
	return n
}

func (r *registry) snapshot(k Kind, m Mask) []*tap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*tap
	for _, t := range r.taps {
		if t.kind == k && t.enabled && t.mask.Has(m) {
			out = append(out, t)
		}
	}
	return out
}

func (r *registry) emitKey(ev KeyTapEvent) int {
	taps := r.snapshot(KindKeyboard, ev.Action.mask())
	for _, t := range taps {
		t.key(ev)
	}
	return len(taps)
}

// emitMouse delivers to mouse taps. Continuous scrolls also reach touch
// sources, which classify them as trackpad scroll gestures.
func (r *registry) emitMouse(ev MouseTapEvent) int {
	taps := r.snapshot(KindMouse, ev.Action.mask())
	for _, t := range taps {
		t.mouse(ev)
	}
	n := len(taps)
	if ev.Action == MouseScroll && ev.Scroll.Continuous {
		n += r.emitScroll(ev.Scroll)
	}
	return n
}

func (r *registry) emitTouches(fr TouchFrame) int {
	taps := r.snapshot(KindTouch, 0)
	for _, t := range taps {
		t.touch.HandleTouches(fr)
	}
	return len(taps)
}

func (r *registry) emitScroll(ev ScrollEvent) int {
	taps := r.snapshot(KindTouch, 0)
	for _, t := range taps {
		t.touch.HandleScroll(ev)
	}
	return len(taps)
}

func (r *registry) emitGesture(g PlatformGesture) int {
	taps := r.snapshot(KindTouch, 0)
	for _, t := range taps {
		t.touch.HandleGesture(g)
	}
	return len(taps)
}
