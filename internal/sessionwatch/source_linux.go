//go:build linux

package sessionwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

type busSource struct {
	conn *dbus.Conn
	once sync.Once
}

// NewSource connects to the system bus and subscribes to logind's sleep
// and session lock signals.
func NewSource() (Source, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	matches := [][]dbus.MatchOption{
		{dbus.WithMatchInterface(loginManagerInterface), dbus.WithMatchMember("PrepareForSleep")},
		{dbus.WithMatchInterface(loginSessionInterface), dbus.WithMatchMember("Unlock")},
		{dbus.WithMatchInterface(loginSessionInterface), dbus.WithMatchMember("Lock")},
	}
	for _, m := range matches {
		if err := conn.AddMatchSignal(m...); err != nil {
			conn.Close()
			return nil, fmt.Errorf("add signal match: %w", err)
		}
	}
	return &busSource{conn: conn}, nil
}

func (s *busSource) Events(ctx context.Context) (<-chan Event, error) {
	signals := make(chan *dbus.Signal, 16)
	s.conn.Signal(signals)

	out := make(chan Event, 4)
	go func() {
		defer close(out)
		defer s.conn.RemoveSignal(signals)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				kind, ok := Decode(sig)
				if !ok {
					continue
				}
				select {
				case out <- Event{Kind: kind, At: time.Now()}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *busSource) Close() error {
	var err error
	s.once.Do(func() { err = s.conn.Close() })
	return err
}
