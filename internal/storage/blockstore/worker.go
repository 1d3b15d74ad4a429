package blockstore

import (
	"fmt"
	"time"

	"github.com/NB-T/derecho/internal/persistlog"
	"github.com/NB-T/derecho/pkg/log"
)

type writeOp int

const (
	opAppend writeOp = iota
	opMeta
	opSync
)

// writeReq is one unit of ordered work for the write worker. done carries
// the outcome; version carries the reply for opSync.
type writeReq struct {
	op   writeOp
	id   uint32
	data []byte
	ent  persistlog.Entry
	slot int64
	meta persistlog.Meta

	version int64
	done    chan error
}

// Append durably writes the payload, its descriptor, and the updated
// metadata as one batch, ordered behind prior writes.
func (s *Store) Append(id uint32, data []byte, ent persistlog.Entry, slot int64, meta persistlog.Meta) error {
	return s.enqueue(&writeReq{op: opAppend, id: id, data: data, ent: ent, slot: slot, meta: meta})
}

// UpdateMetadata durably persists metadata only, ordered behind prior
// writes.
func (s *Store) UpdateMetadata(id uint32, meta persistlog.Meta) error {
	return s.enqueue(&writeReq{op: opMeta, id: id, meta: meta})
}

// Sync raises a WAL barrier behind every write enqueued before it and
// reports the resulting last written version for the log.
func (s *Store) Sync(id uint32) (int64, error) {
	req := &writeReq{op: opSync, id: id}
	if err := s.enqueue(req); err != nil {
		return -1, err
	}
	return req.version, nil
}

// enqueue hands a request to the worker and blocks until it is served.
// Requests still queued when the store closes are answered ErrStoreClosed.
func (s *Store) enqueue(r *writeReq) error {
	r.done = make(chan error, 1)
	select {
	case s.reqCh <- r:
	case <-s.stopCh:
		return ErrStoreClosed
	}
	select {
	case err := <-r.done:
		return err
	case <-s.workerDone:
		select {
		case err := <-r.done:
			return err
		default:
			return ErrStoreClosed
		}
	}
}

// run is the write worker loop. A single goroutine owns every batch
// commit, so writes land in submission order. Under a relaxed fsync
// policy the ticker periodically promotes pending versions.
func (s *Store) run(syncEvery time.Duration) {
	defer close(s.workerDone)

	var tick <-chan time.Time
	if syncEvery > 0 && !s.db.SyncOnCommit() {
		t := time.NewTicker(syncEvery)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case req := <-s.reqCh:
			req.done <- s.serve(req)
		case <-tick:
			if err := s.flushPending(); err != nil {
				s.logger.Error("wal barrier failed", log.Err(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) serve(r *writeReq) error {
	switch r.op {
	case opAppend:
		return s.commitAppend(r)
	case opMeta:
		return s.commitMeta(r)
	case opSync:
		return s.serveSync(r)
	default:
		return fmt.Errorf("unknown write op %d", r.op)
	}
}

func (s *Store) commitAppend(r *writeReq) error {
	b := s.db.NewBatch()
	defer b.Close()
	slot := uint64(r.slot)
	if err := b.Set(KeyLogEntry(r.id, slot), persistlog.EncodeEntry(r.ent), nil); err != nil {
		return err
	}
	if err := b.Set(KeyLogData(r.id, slot), EncodeDataRecord(r.data), nil); err != nil {
		return err
	}
	if err := b.Set(KeyLogMeta(r.id), persistlog.EncodeMeta(r.meta), nil); err != nil {
		return err
	}
	if err := s.db.CommitBatch(b); err != nil {
		return fmt.Errorf("log %d append: %w", r.id, err)
	}
	s.noteVersion(r.id, r.meta.Version)
	return nil
}

func (s *Store) commitMeta(r *writeReq) error {
	if err := s.db.Set(KeyLogMeta(r.id), persistlog.EncodeMeta(r.meta)); err != nil {
		return fmt.Errorf("log %d metadata: %w", r.id, err)
	}
	s.noteVersion(r.id, r.meta.Version)
	return nil
}

func (s *Store) serveSync(r *writeReq) error {
	if err := s.syncBarrier(); err != nil {
		return err
	}
	r.version = s.LastWrittenVersion(r.id)
	return nil
}

// noteVersion records the post-commit version: immediately durable when
// commits sync, pending a barrier otherwise. Commits are ordered, so plain
// assignment tracks the latest durable state even across truncates.
func (s *Store) noteVersion(id uint32, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db.SyncOnCommit() {
		s.lastWritten[id] = version
		return
	}
	s.pending[id] = version
}

// syncBarrier flushes the WAL and promotes every pending version.
func (s *Store) syncBarrier() error {
	if err := s.db.Sync(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.pending {
		s.lastWritten[id] = v
		delete(s.pending, id)
	}
	return nil
}

// flushPending raises a barrier only when versions are waiting on one.
func (s *Store) flushPending() error {
	s.mu.Lock()
	n := len(s.pending)
	s.mu.Unlock()
	if n == 0 {
		return nil
	}
	return s.syncBarrier()
}
