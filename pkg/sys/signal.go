package sys

import (
	"os"
	"os/signal"
)

// Signal wraps os/signal notification so commands can block until a shutdown is requested
type Signal struct {
	ch chan os.Signal
}

// NewSignal subscribes to the given os signals
func NewSignal(sigs ...os.Signal) *Signal {
	s := &Signal{ch: make(chan os.Signal, 2)}
	signal.Notify(s.ch, sigs...)
	return s
}

// ReceiveShutDown blocks until one of the subscribed signals arrives
func (s *Signal) ReceiveShutDown() os.Signal {
	return <-s.ch
}

// C exposes the underlying channel for use in select statements
func (s *Signal) C() <-chan os.Signal {
	return s.ch
}

// Stop unsubscribes from signal notification
func (s *Signal) Stop() {
	signal.Stop(s.ch)
}
