// Package logtest provides a pslog.Logger that records entries for assertions.
package logtest

import (
	"sync"

	"pkt.systems/pslog"
)

// Entry is one recorded log call.
type Entry struct {
	Level  string
	Msg    string
	Fields []any
}

// Recorder implements pslog.Logger and keeps every entry in memory.
type Recorder struct {
	fields  []any
	mu      *sync.Mutex
	entries *[]Entry
}

// New returns an empty recorder.
func New() *Recorder {
	entries := make([]Entry, 0, 8)
	return &Recorder{mu: &sync.Mutex{}, entries: &entries}
}

// Find returns the first entry with msg.
func (r *Recorder) Find(msg string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range *r.entries {
		if e.Msg == msg {
			return e, true
		}
	}
	return Entry{}, false
}

// Count returns how many entries carry msg.
func (r *Recorder) Count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range *r.entries {
		if e.Msg == msg {
			n++
		}
	}
	return n
}

// Entries returns a copy of every recorded entry.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(*r.entries))
	copy(out, *r.entries)
	return out
}

func (r *Recorder) record(level, msg string, args ...any) {
	fields := append(append([]any{}, r.fields...), args...)
	r.mu.Lock()
	*r.entries = append(*r.entries, Entry{Level: level, Msg: msg, Fields: fields})
	r.mu.Unlock()
}

func (r *Recorder) Trace(msg string, args ...any) { r.record("trace", msg, args...) }
func (r *Recorder) Debug(msg string, args ...any) { r.record("debug", msg, args...) }
func (r *Recorder) Info(msg string, args ...any)  { r.record("info", msg, args...) }
func (r *Recorder) Warn(msg string, args ...any)  { r.record("warn", msg, args...) }
func (r *Recorder) Error(msg string, args ...any) { r.record("error", msg, args...) }
func (r *Recorder) Fatal(msg string, args ...any) { r.record("fatal", msg, args...) }
func (r *Recorder) Panic(msg string, args ...any) { r.record("panic", msg, args...) }
func (r *Recorder) Log(level pslog.Level, msg string, args ...any) {
	r.record(pslog.LevelString(level), msg, args...)
}
func (r *Recorder) With(args ...any) pslog.Logger {
	return &Recorder{fields: append(append([]any{}, r.fields...), args...), mu: r.mu, entries: r.entries}
}
func (r *Recorder) WithLogLevel() pslog.Logger          { return r }
func (r *Recorder) LogLevel(pslog.Level) pslog.Logger   { return r }
func (r *Recorder) LogLevelFromEnv(string) pslog.Logger { return r }
