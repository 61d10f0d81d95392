// Package logging holds the pslog helpers shared by every tenantAuth package.
package logging

import (
	"context"
	"io"
	"strings"
	"sync"

	"pkt.systems/pslog"
)

var (
	noOnce   sync.Once
	noLogger pslog.Logger
)

// NoopLogger returns a disabled pslog.Logger that discards all entries.
func NoopLogger() pslog.Logger {
	noOnce.Do(func() {
		noLogger = pslog.NewWithOptions(context.Background(), io.Discard, pslog.Options{
			Mode:     pslog.ModeStructured,
			MinLevel: pslog.Disabled,
		})
	})
	return noLogger
}

// Ensure returns l when non-nil, otherwise it returns a disabled logger.
func Ensure(l pslog.Logger) pslog.Logger {
	if l != nil {
		return l
	}
	return NoopLogger()
}

// WithSubsystem tags l with a dot-delimited subsystem path, skipping empty parts.
func WithSubsystem(l pslog.Logger, parts ...string) pslog.Logger {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, ". ")
		if part != "" {
			filtered = append(filtered, part)
		}
	}
	l = Ensure(l)
	if len(filtered) == 0 {
		return l
	}
	return l.With("sys", strings.Join(filtered, "."))
}
