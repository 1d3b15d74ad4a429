package persistlog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/NB-T/derecho/pkg/hlc"
)

// memBackend is an in-memory Backend for engine tests. It holds one log and
// stores entries by physical slot, so wraparound addressing is exercised.
type memBackend struct {
	geo Geometry

	mu          sync.Mutex
	meta        Meta
	entries     map[int64]Entry
	data        map[int64][]byte
	lastWritten int64
	pending     int64
	syncLag     bool  // when set, versions become durable only on Sync
	failNext    error // consumed by the next mutating call
}

func newMemBackend(geo Geometry) *memBackend {
	return &memBackend{
		geo:         geo,
		entries:     map[int64]Entry{},
		data:        map[int64][]byte{},
		lastWritten: -1,
		pending:     -1,
	}
}

func (b *memBackend) Load(string) (Meta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.meta.InUse {
		b.meta = Meta{ID: 1, Version: -1, InUse: true}
	}
	return b.meta, nil
}

func (b *memBackend) ReadEntry(_ uint32, index int64) (Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ent, ok := b.entries[b.geo.Slot(index)]
	if !ok {
		return Entry{}, fmt.Errorf("no entry at index %d", index)
	}
	return ent, nil
}

func (b *memBackend) ReadData(_ uint32, index int64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.data[b.geo.Slot(index)]
	if !ok {
		return nil, fmt.Errorf("no data at index %d", index)
	}
	return append([]byte(nil), d...), nil
}

func (b *memBackend) Append(_ uint32, data []byte, ent Entry, slot int64, meta Meta) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return err
	}
	b.entries[slot] = ent
	b.data[slot] = append([]byte(nil), data...)
	b.meta = meta
	if b.syncLag {
		b.pending = meta.Version
	} else {
		b.lastWritten = meta.Version
	}
	return nil
}

func (b *memBackend) UpdateMetadata(_ uint32, meta Meta) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return err
	}
	b.meta = meta
	return nil
}

func (b *memBackend) LastWrittenVersion(uint32) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastWritten
}

func (b *memBackend) Sync(uint32) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending > b.lastWritten {
		b.lastWritten = b.pending
	}
	return b.lastWritten, nil
}

func (b *memBackend) Geometry() Geometry { return b.geo }

func openTestLog(t *testing.T) (*Log, *memBackend) {
	t.Helper()
	b := newMemBackend(DefaultGeometry())
	l, err := Open("test.obj", b, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return l, b
}

// ts builds a timestamp.
func ts(phys, logic int64) hlc.HLC { return hlc.HLC{Physical: phys, Logical: logic} }

// mustAppend appends with a timestamp derived from the version so both keys
// increase together.
func mustAppend(t *testing.T, l *Log, data string, ver int64) {
	t.Helper()
	if err := l.Append([]byte(data), ver, ts(ver*10, 0)); err != nil {
		t.Fatalf("append %d: %v", ver, err)
	}
}
