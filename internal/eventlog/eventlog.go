// Package eventlog is the durable, append-only record every projection is
// derived from. One JSON event per line; a line is never rewritten in place.
package eventlog

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"taskline/internal/domain"
	"taskline/internal/event"
)

// Entry is an appended event plus its sequence number. Seq is assigned by the
// log on append, starts at 1, and is the authoritative ordering; the event's
// wall-clock timestamp is advisory only.
type Entry struct {
	Seq   uint64      `json:"seq"`
	Event event.Event `json:"event"`
}

// Log is a single-writer append-only JSONL file with the full history mirrored
// in memory for reads. All mutation is serialized under one mutex.
type Log struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	size    int64
	entries []Entry
}

// Open reads the log at path, creating it if missing. Lines that fail to
// parse are skipped and reported as CorruptRecordErrors so the remaining
// history stays available; an unknown event type aborts with
// UnknownEventError instead, since skipping it would silently diverge the
// projection from the log.
func Open(path string) (*Log, []domain.CorruptRecordError, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, err
	}
	l := &Log{path: path, file: file}

	var corrupt []domain.CorruptRecordError
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		evt, err := event.Unmarshal(line)
		if err != nil {
			var unknown domain.UnknownEventError
			if errors.As(err, &unknown) {
				file.Close()
				return nil, corrupt, unknown
			}
			corrupt = append(corrupt, domain.CorruptRecordError{Line: lineNo, Err: err})
			continue
		}
		l.entries = append(l.entries, Entry{Seq: uint64(len(l.entries) + 1), Event: evt})
	}
	if err := scanner.Err(); err != nil {
		file.Close()
		return nil, corrupt, err
	}
	size, err := file.Seek(0, 2)
	if err != nil {
		file.Close()
		return nil, corrupt, err
	}
	l.size = size
	return l, corrupt, nil
}

// Close releases the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Append durably writes one event and returns its entry. The in-memory view
// is only updated after write+fsync succeed; on failure the file is truncated
// back and a PersistenceError is returned.
func (l *Log) Append(ctx context.Context, evt event.Event) (Entry, error) {
	entries, err := l.AppendBatch(ctx, []event.Event{evt})
	if err != nil {
		return Entry{}, err
	}
	return entries[0], nil
}

// AppendBatch appends events atomically: either every line is durable or the
// file is rolled back to its prior size and nothing is retained in memory.
func (l *Log) AppendBatch(ctx context.Context, evts []event.Event) ([]Entry, error) {
	if len(evts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var buf []byte
	for _, evt := range evts {
		line, err := event.Marshal(evt)
		if err != nil {
			return nil, domain.PersistenceError{Op: "encode event", Err: err}
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	if _, err := l.file.WriteAt(buf, l.size); err != nil {
		l.rollback()
		return nil, domain.PersistenceError{Op: "append event", Err: err}
	}
	if err := l.file.Sync(); err != nil {
		l.rollback()
		return nil, domain.PersistenceError{Op: "sync event log", Err: err}
	}
	l.size += int64(len(buf))

	out := make([]Entry, 0, len(evts))
	for _, evt := range evts {
		entry := Entry{Seq: uint64(len(l.entries) + 1), Event: evt}
		l.entries = append(l.entries, entry)
		out = append(out, entry)
	}
	return out, nil
}

// rollback discards a partial write so the file never holds bytes the
// in-memory view does not acknowledge.
func (l *Log) rollback() {
	_ = l.file.Truncate(l.size)
}

// All returns every entry in append order.
func (l *Log) All() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copyEntries(l.entries)
}

// After returns entries with Seq greater than seq, for replaying the tail on
// top of a snapshot.
func (l *Log) After(seq uint64) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq >= uint64(len(l.entries)) {
		return nil
	}
	return copyEntries(l.entries[seq:])
}

// ByID returns the entry for an event id.
func (l *Log) ByID(id string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Event.ID == id {
			return e.clone(), nil
		}
	}
	return Entry{}, domain.NotFoundError{Kind: "event", ID: id}
}

// ByEntity returns entries whose payload references the given project,
// milestone or task id.
func (l *Log) ByEntity(entityID string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		for _, ref := range e.Event.Payload.Entities() {
			if ref == entityID {
				out = append(out, e.clone())
				break
			}
		}
	}
	return out
}

// ByTimeRange returns entries whose timestamp falls in [start, end]. The
// result follows append order, which can disagree with timestamp order under
// clock skew; append order wins.
func (l *Log) ByTimeRange(start, end time.Time) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		ts := e.Event.Timestamp
		if ts.Before(start) || ts.After(end) {
			continue
		}
		out = append(out, e.clone())
	}
	return out
}

// ByType returns entries of one event kind.
func (l *Log) ByType(kind event.Type) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Event.Type == kind {
			out = append(out, e.clone())
		}
	}
	return out
}

// Len reports the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear truncates the log. Test isolation only; no command path reaches it.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Truncate(0); err != nil {
		return domain.PersistenceError{Op: "clear event log", Err: err}
	}
	l.size = 0
	l.entries = nil
	return nil
}

func copyEntries(in []Entry) []Entry {
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = e.clone()
	}
	return out
}

// clone hands out a defensive copy: payloads carrying slices get fresh
// backing arrays so callers cannot reach internal storage.
func (e Entry) clone() Entry {
	switch p := e.Event.Payload.(type) {
	case event.TaskCreatedPayload:
		p.Tags = append([]string(nil), p.Tags...)
		e.Event.Payload = p
	case event.TaskUpdatedPayload:
		p.Tags = append([]string(nil), p.Tags...)
		e.Event.Payload = p
	}
	return e
}
