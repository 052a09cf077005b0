//go:build linux

package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// linuxProvider reads /dev/input/event* devices. One reader goroutine runs
// per device while at least one tap of the device's kind is registered.
type linuxProvider struct {
	registry
	logger *slog.Logger

	mu     sync.Mutex
	groups map[Kind]*deviceGroup
}

type deviceGroup struct {
	files []*os.File
	wg    sync.WaitGroup
}

func newPlatformProvider(logger *slog.Logger) Provider {
	return &linuxProvider{
		logger: logger.With("component", "capture"),
		groups: make(map[Kind]*deviceGroup),
	}
}

// Available checks whether a device of kind k can be opened.
func (p *linuxProvider) Available(k Kind) (bool, string) {
	p.mu.Lock()
	if g, ok := p.groups[k]; ok {
		p.mu.Unlock()
		return true, fmt.Sprintf("reading %d %s device(s)", len(g.files), k)
	}
	p.mu.Unlock()

	devices, files, err := discover(k)
	if err != nil {
		return false, err.Error()
	}
	for _, f := range files {
		f.Close()
	}
	return true, fmt.Sprintf("found %s device: %s (%s)", k, devices[0].path, devices[0].name)
}

func (p *linuxProvider) RegisterKeyTap(mask Mask, h KeyHandler) (Handle, error) {
	if err := p.ensure(KindKeyboard); err != nil {
		return 0, err
	}
	return p.add(&tap{kind: KindKeyboard, mask: mask, key: h}), nil
}

func (p *linuxProvider) RegisterMouseTap(mask Mask, h MouseHandler) (Handle, error) {
	if err := p.ensure(KindMouse); err != nil {
		return 0, err
	}
	return p.add(&tap{kind: KindMouse, mask: mask, mouse: h}), nil
}

func (p *linuxProvider) RegisterTouchSource(h TouchHandler) (Handle, error) {
	if err := p.ensure(KindTouch); err != nil {
		return 0, err
	}
	return p.add(&tap{kind: KindTouch, mask: ^Mask(0), touch: h}), nil
}

func (p *linuxProvider) Enable(h Handle, on bool) error {
	return p.enable(h, on)
}

func (p *linuxProvider) Unregister(h Handle) error {
	k, remaining, err := p.remove(h)
	if err != nil {
		return err
	}
	if remaining == 0 {
		p.stop(k)
	}
	return nil
}

// ensure starts reading devices of kind k if nothing is reading them yet.
func (p *linuxProvider) ensure(k Kind) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.groups[k]; ok {
		return nil
	}

	devices, files, err := discover(k)
	if err != nil {
		return err
	}

	g := &deviceGroup{files: files}
	for i, d := range devices {
		g.wg.Add(1)
		go p.readLoop(g, d, files[i], p.decoderFor(d))
		p.logger.Info("input device opened", "path", d.path, "name", d.name, "kind", k.String())
	}
	p.groups[k] = g
	return nil
}

func (p *linuxProvider) decoderFor(d inputDevice) decoder {
	switch d.kind {
	case KindKeyboard:
		return &keyDecoder{emit: p.emitKey, now: time.Now}
	case KindMouse:
		return &mouseDecoder{emit: p.emitMouse, now: time.Now}
	default:
		return &touchDecoder{emit: p.emitTouches, now: time.Now, dev: d}
	}
}

func (p *linuxProvider) readLoop(g *deviceGroup, d inputDevice, f *os.File, dec decoder) {
	defer g.wg.Done()

	buf := make([]byte, eventSize*64)
	for {
		n, err := f.Read(buf)
		if err != nil {
			if !errors.Is(err, os.ErrClosed) {
				p.logger.Warn("input device read failed", "path", d.path, "error", err)
			}
			return
		}
		parseEvents(buf[:n], dec)
	}
}

func (p *linuxProvider) stop(k Kind) {
	p.mu.Lock()
	g, ok := p.groups[k]
	delete(p.groups, k)
	p.mu.Unlock()
	if !ok {
		return
	}

	// Closing unblocks the pending reads.
	for _, f := range g.files {
		f.Close()
	}
	g.wg.Wait()
}
