package blockstore

import (
	"errors"
	"testing"
	"time"

	"github.com/NB-T/derecho/internal/persistlog"
	pebblestore "github.com/NB-T/derecho/internal/storage/pebble"
	"github.com/NB-T/derecho/pkg/hlc"
)

func openTestDB(t *testing.T, dir string, mode pebblestore.FsyncMode) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       dir,
		Fsync:         mode,
		FsyncInterval: 2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func newTestStore(t *testing.T, mode pebblestore.FsyncMode, opts Options) *Store {
	t.Helper()
	db := openTestDB(t, t.TempDir(), mode)
	t.Cleanup(func() { _ = db.Close() })
	s, err := Open(db, opts)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// mustAppend drives the store the way the engine does: chain the offset
// off the previous descriptor, bump tail and version, commit.
func mustAppend(t *testing.T, s *Store, meta *persistlog.Meta, data string) {
	t.Helper()
	ver := meta.Version + 1
	ent := persistlog.Entry{
		Version:    ver,
		Time:       hlc.HLC{Physical: ver*10 + 1},
		DataLength: int64(len(data)),
	}
	if meta.Tail > meta.Head {
		last, err := s.ReadEntry(meta.ID, meta.Tail-1)
		if err != nil {
			t.Fatalf("read tail entry: %v", err)
		}
		ent.DataOffset = last.DataOffset + last.DataLength
	}
	next := *meta
	next.Version = ver
	next.Tail++
	if err := s.Append(meta.ID, []byte(data), ent, s.Geometry().Slot(next.Tail-1), next); err != nil {
		t.Fatalf("append %q: %v", data, err)
	}
	*meta = next
}

func TestLoadAssignsDistinctIDs(t *testing.T) {
	s := newTestStore(t, pebblestore.FsyncModeAlways, Options{})

	a, err := s.Load("agent.a")
	if err != nil {
		t.Fatalf("load a: %v", err)
	}
	b, err := s.Load("agent.b")
	if err != nil {
		t.Fatalf("load b: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, both %d", a.ID)
	}
	if a.Version != -1 || a.Head != 0 || a.Tail != 0 || !a.InUse {
		t.Fatalf("fresh meta: %+v", a)
	}

	again, err := s.Load("agent.a")
	if err != nil {
		t.Fatalf("reload a: %v", err)
	}
	if again.ID != a.ID {
		t.Fatalf("id changed on reload: %d != %d", again.ID, a.ID)
	}
}

func TestAppendReadRoundTrip(t *testing.T) {
	s := newTestStore(t, pebblestore.FsyncModeAlways, Options{})

	meta, err := s.Load("roundtrip")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mustAppend(t, s, &meta, "a")
	mustAppend(t, s, &meta, "bb")
	mustAppend(t, s, &meta, "ccc")

	wantOffsets := []int64{0, 1, 3}
	for i, want := range wantOffsets {
		ent, err := s.ReadEntry(meta.ID, int64(i))
		if err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		if ent.DataOffset != want {
			t.Fatalf("entry %d offset %d, want %d", i, ent.DataOffset, want)
		}
		if ent.Version != int64(i) {
			t.Fatalf("entry %d version %d", i, ent.Version)
		}
	}
	data, err := s.ReadData(meta.ID, 2)
	if err != nil {
		t.Fatalf("data 2: %v", err)
	}
	if string(data) != "ccc" {
		t.Fatalf("data 2 = %q", data)
	}
}

func TestSlotAddressing(t *testing.T) {
	geo := persistlog.Geometry{SegmentBits: 6, IndexSegments: 2, AddressSpace: 16}
	s := newTestStore(t, pebblestore.FsyncModeAlways, Options{Geometry: geo})

	meta, err := s.Load("wrap")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ent := persistlog.Entry{Version: 9, DataLength: 1}
	next := meta
	next.Head = 20
	next.Tail = 21
	next.Version = 9
	if err := s.Append(meta.ID, []byte{0xAB}, ent, geo.Slot(20), next); err != nil {
		t.Fatalf("append: %v", err)
	}

	// index 20 and index 4 share slot 4
	byIndex, err := s.ReadEntry(meta.ID, 20)
	if err != nil {
		t.Fatalf("read wrapped: %v", err)
	}
	bySlot, err := s.ReadEntrySlot(meta.ID, 4)
	if err != nil {
		t.Fatalf("read slot: %v", err)
	}
	if byIndex != bySlot || byIndex.Version != 9 {
		t.Fatalf("slot mismatch: %+v vs %+v", byIndex, bySlot)
	}
	data, err := s.ReadData(meta.ID, 20)
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	if len(data) != 1 || data[0] != 0xAB {
		t.Fatalf("data = %x", data)
	}
}

func TestReopenRecoversMeta(t *testing.T) {
	dir := t.TempDir()

	db := openTestDB(t, dir, pebblestore.FsyncModeAlways)
	s, err := Open(db, Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	meta, err := s.Load("recover")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mustAppend(t, s, &meta, "one")
	mustAppend(t, s, &meta, "two")
	head := meta
	head.Head = 1
	if err := s.UpdateMetadata(meta.ID, head); err != nil {
		t.Fatalf("update meta: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	db = openTestDB(t, dir, pebblestore.FsyncModeAlways)
	defer db.Close()
	s, err = Open(db, Options{})
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s.Close()

	got, err := s.Load("recover")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.ID != meta.ID || got.Head != 1 || got.Tail != 2 || got.Version != 1 {
		t.Fatalf("recovered meta: %+v", got)
	}
	if v := s.LastWrittenVersion(got.ID); v != 1 {
		t.Fatalf("last written after reopen = %d", v)
	}
	data, err := s.ReadData(got.ID, 1)
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	if string(data) != "two" {
		t.Fatalf("data = %q", data)
	}
}

func TestZeroedMetaReinitializes(t *testing.T) {
	s := newTestStore(t, pebblestore.FsyncModeAlways, Options{})

	meta, err := s.Load("zero")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mustAppend(t, s, &meta, "gone")

	wiped := meta
	wiped.Head = 0
	wiped.Tail = 0
	wiped.InUse = false
	if err := s.UpdateMetadata(meta.ID, wiped); err != nil {
		t.Fatalf("zero out: %v", err)
	}

	fresh, err := s.Load("zero")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.ID != meta.ID {
		t.Fatalf("id changed: %d != %d", fresh.ID, meta.ID)
	}
	if fresh.Version != -1 || fresh.Tail != 0 || !fresh.InUse {
		t.Fatalf("expected reinitialized meta, got %+v", fresh)
	}
}

func TestCorruptDataRecord(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir, pebblestore.FsyncModeAlways)
	t.Cleanup(func() { _ = db.Close() })
	s, err := Open(db, Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	meta, err := s.Load("corrupt")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mustAppend(t, s, &meta, "fragile")

	slot := uint64(s.Geometry().Slot(0))
	raw, err := db.Get(KeyLogData(meta.ID, slot))
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	raw[0] ^= 0xFF
	if err := db.Set(KeyLogData(meta.ID, slot), raw); err != nil {
		t.Fatalf("raw set: %v", err)
	}

	if _, err := s.ReadData(meta.ID, 0); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("read corrupt: %v, want ErrCorruptRecord", err)
	}
	// the descriptor is untouched
	if _, err := s.ReadEntry(meta.ID, 0); err != nil {
		t.Fatalf("read entry: %v", err)
	}
}

func TestLastWrittenLagsUntilSync(t *testing.T) {
	// periodic barrier disabled so only Sync promotes
	s := newTestStore(t, pebblestore.FsyncModeNever, Options{SyncEvery: -1})

	meta, err := s.Load("lag")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mustAppend(t, s, &meta, "p0")
	mustAppend(t, s, &meta, "p1")
	mustAppend(t, s, &meta, "p2")

	if v := s.LastWrittenVersion(meta.ID); v != -1 {
		t.Fatalf("last written before sync = %d, want -1", v)
	}
	ver, err := s.Sync(meta.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if ver != 2 {
		t.Fatalf("sync returned %d, want 2", ver)
	}
	if v := s.LastWrittenVersion(meta.ID); v != 2 {
		t.Fatalf("last written after sync = %d, want 2", v)
	}
}

func TestSyncOnCommitImmediatelyDurable(t *testing.T) {
	s := newTestStore(t, pebblestore.FsyncModeAlways, Options{})

	meta, err := s.Load("durable")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mustAppend(t, s, &meta, "x")
	if v := s.LastWrittenVersion(meta.ID); v != 0 {
		t.Fatalf("last written = %d, want 0", v)
	}
}

func TestPeriodicBarrierPromotes(t *testing.T) {
	s := newTestStore(t, pebblestore.FsyncModeNever, Options{SyncEvery: 5 * time.Millisecond})

	meta, err := s.Load("ticker")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mustAppend(t, s, &meta, "tick")

	deadline := time.Now().Add(2 * time.Second)
	for s.LastWrittenVersion(meta.ID) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("version never promoted, last written = %d", s.LastWrittenVersion(meta.ID))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLookupID(t *testing.T) {
	s := newTestStore(t, pebblestore.FsyncModeAlways, Options{})

	if _, err := s.LookupID("missing"); !errors.Is(err, ErrUnknownLog) {
		t.Fatalf("lookup missing: %v, want ErrUnknownLog", err)
	}
	meta, err := s.Load("present")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	id, err := s.LookupID("present")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if id != meta.ID {
		t.Fatalf("lookup id %d, want %d", id, meta.ID)
	}
}

func TestListLogs(t *testing.T) {
	s := newTestStore(t, pebblestore.FsyncModeAlways, Options{})

	for _, name := range []string{"bravo", "alpha", "charlie"} {
		if _, err := s.Load(name); err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
	}
	logs, err := s.ListLogs()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("got %d logs", len(logs))
	}
	wantOrder := []string{"alpha", "bravo", "charlie"}
	for i, want := range wantOrder {
		if logs[i].Name != want {
			t.Fatalf("logs[%d] = %q, want %q", i, logs[i].Name, want)
		}
	}
}

func TestStoreClosed(t *testing.T) {
	db := openTestDB(t, t.TempDir(), pebblestore.FsyncModeAlways)
	t.Cleanup(func() { _ = db.Close() })
	s, err := Open(db, Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	meta, err := s.Load("closing")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	err = s.Append(meta.ID, []byte("late"), persistlog.Entry{}, 0, meta)
	if !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("append after close: %v, want ErrStoreClosed", err)
	}
	if _, err := s.Sync(meta.ID); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("sync after close: %v, want ErrStoreClosed", err)
	}
}

func TestEngineRoundTrip(t *testing.T) {
	s := newTestStore(t, pebblestore.FsyncModeAlways, Options{})

	l, err := persistlog.Open("engine.obj", s, persistlog.Options{})
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	for i, data := range []string{"a", "bb", "ccc"} {
		if err := l.Append([]byte(data), int64(i+1), hlc.HLC{Physical: int64(i+1) * 100}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := l.Trim(1); err != nil {
		t.Fatalf("trim: %v", err)
	}
	idx, err := l.EarliestIndex()
	if err != nil {
		t.Fatalf("earliest: %v", err)
	}
	data, err := l.Data(idx)
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	if string(data) != "bb" {
		t.Fatalf("earliest data = %q, want %q", data, "bb")
	}
	if _, err := l.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if v := l.LastPersisted(); v != 3 {
		t.Fatalf("last persisted = %d, want 3", v)
	}
}
