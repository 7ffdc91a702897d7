package app

import (
	"io"
	"log/slog"
	"sync/atomic"
)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLeg is a call-leg handle that counts references.
type fakeLeg struct {
	id       string
	retains  atomic.Int32
	releases atomic.Int32
}

func (l *fakeLeg) ID() string { return l.id }

func (l *fakeLeg) Retain() func() {
	l.retains.Add(1)
	return func() { l.releases.Add(1) }
}

func (l *fakeLeg) held() int32 {
	return l.retains.Load() - l.releases.Load()
}

func intPtr(n int) *int { return &n }
