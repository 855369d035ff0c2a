package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is a captured log record with its attributes flattened.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// String renders the entry as "LEVEL message k=v ..." with keys sorted.
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Level.String())
	b.WriteByte(' ')
	b.WriteString(e.Message)
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, e.Attrs[k])
	}
	return b.String()
}

type entryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// Recorder is a slog.Handler that keeps every record it handles so callers can
// inspect what was logged. An optional next handler also receives each record.
type Recorder struct {
	store  *entryStore
	next   slog.Handler
	attrs  []slog.Attr
	groups []string
}

// NewRecorder returns a recorder. next may be nil.
func NewRecorder(next slog.Handler) *Recorder {
	return &Recorder{store: &entryStore{}, next: next}
}

// Logger returns a logger backed by r.
func (r *Recorder) Logger() *slog.Logger {
	return slog.New(r)
}

// Enabled records everything; the next handler applies its own level.
func (r *Recorder) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
func (r *Recorder) Handle(ctx context.Context, rec slog.Record) error {
	entry := Entry{
		Time:    rec.Time,
		Level:   rec.Level,
		Message: rec.Message,
		Attrs:   make(map[string]string, len(r.attrs)+rec.NumAttrs()),
	}
	prefix := strings.Join(r.groups, ".")
	for _, a := range r.attrs {
		flatten(entry.Attrs, "", a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		flatten(entry.Attrs, prefix, a)
		return true
	})

	r.store.mu.Lock()
	r.store.entries = append(r.store.entries, entry)
	r.store.mu.Unlock()

	if r.next != nil && r.next.Enabled(ctx, rec.Level) {
		return r.next.Handle(ctx, rec)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := r.clone()
	prefix := strings.Join(r.groups, ".")
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	if r.next != nil {
		clone.next = r.next.WithAttrs(attrs)
	}
	return clone
}

// WithGroup implements slog.Handler.
func (r *Recorder) WithGroup(name string) slog.Handler {
	if name == "" {
		return r
	}
	clone := r.clone()
	clone.groups = append(clone.groups, name)
	if r.next != nil {
		clone.next = r.next.WithGroup(name)
	}
	return clone
}

func (r *Recorder) clone() *Recorder {
	return &Recorder{
		store:  r.store,
		next:   r.next,
		attrs:  append([]slog.Attr(nil), r.attrs...),
		groups: append([]string(nil), r.groups...),
	}
}

func flatten(dst map[string]string, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			flatten(dst, key, ga)
		}
		return
	}
	dst[key] = v.String()
}

// Entries returns a copy of every captured entry in order.
func (r *Recorder) Entries() []Entry {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]Entry(nil), r.store.entries...)
}

// Len returns the number of captured entries.
func (r *Recorder) Len() int {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return len(r.store.entries)
}

// Clear drops all captured entries.
func (r *Recorder) Clear() {
	r.store.mu.Lock()
	r.store.entries = nil
	r.store.mu.Unlock()
}

// Search returns entries whose message or any attribute value contains substr.
func (r *Recorder) Search(substr string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if strings.Contains(e.Message, substr) {
			out = append(out, e)
			continue
		}
		for _, v := range e.Attrs {
			if strings.Contains(v, substr) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
