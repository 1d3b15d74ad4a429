package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cfgpkg "github.com/NB-T/derecho/internal/config"
	"github.com/NB-T/derecho/internal/persistlog"
	"github.com/NB-T/derecho/internal/storage/blockstore"
	pebblestore "github.com/NB-T/derecho/internal/storage/pebble"
	"github.com/NB-T/derecho/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Geometry      persistlog.Geometry // zero value keeps storage defaults
	LockWait      time.Duration
	PayloadMax    int64
	Logger        log.Logger
}

// OptionsFromConfig converts a loaded configuration into runtime Options.
func OptionsFromConfig(cfg cfgpkg.Config) (Options, error) {
	mode, err := pebblestore.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return Options{}, err
	}
	var geo persistlog.Geometry
	if cfg.Geometry != (cfgpkg.GeometryConfig{}) {
		geo = persistlog.DefaultGeometry()
		if cfg.Geometry.SegmentBits > 0 {
			geo.SegmentBits = uint(cfg.Geometry.SegmentBits)
		}
		if cfg.Geometry.IndexSegments > 0 {
			geo.IndexSegments = cfg.Geometry.IndexSegments
		}
		if cfg.Geometry.AddressSpace > 0 {
			geo.AddressSpace = cfg.Geometry.AddressSpace
		}
	}
	return Options{
		DataDir:       cfg.DataDir,
		Fsync:         mode,
		FsyncInterval: time.Duration(cfg.FsyncIntervalMs) * time.Millisecond,
		Geometry:      geo,
		LockWait:      time.Duration(cfg.LockWaitMs) * time.Millisecond,
		PayloadMax:    int64(cfg.PayloadMaxBytes),
	}, nil
}

// Runtime wires storage and the log engine for a single-node instance.
// Each log name maps to exactly one engine per process.
type Runtime struct {
	db    *pebblestore.DB
	store *blockstore.Store

	engineOpts persistlog.Options

	mu   sync.Mutex
	logs map[string]*persistlog.Log
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
	})
	if err != nil {
		return nil, err
	}
	store, err := blockstore.Open(db, blockstore.Options{
		Geometry: opts.Geometry,
		Logger:   logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.WithComponent("runtime").Debug("storage opened",
		log.Str("dataDir", opts.DataDir), log.Str("fsync", opts.Fsync.String()))
	return &Runtime{
		db:    db,
		store: store,
		engineOpts: persistlog.Options{
			LockWait:   opts.LockWait,
			PayloadMax: opts.PayloadMax,
		},
		logs: make(map[string]*persistlog.Log),
	}, nil
}

// Close stops the write worker and closes storage.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return errors.Join(r.store.Close(), r.db.Close())
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	return nil
}

// OpenLog returns the engine for a named log, creating and registering it
// on first use. Subsequent calls with the same name return the same engine.
func (r *Runtime) OpenLog(name string) (*persistlog.Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.logs[name]; ok {
		return l, nil
	}
	l, err := persistlog.Open(name, r.store, r.engineOpts)
	if err != nil {
		return nil, fmt.Errorf("open log %q: %w", name, err)
	}
	r.logs[name] = l
	return l, nil
}

// Store exposes the blockstore for diagnostics (internal use only).
func (r *Runtime) Store() *blockstore.Store { return r.store }

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }
