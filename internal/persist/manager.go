// Package persist keeps the vector index file and the chunk database in step
// across restarts.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tadoru/tadoru/internal/storage"
	"github.com/tadoru/tadoru/internal/vector"
	"go.uber.org/zap"
)

// ErrCorruptState is returned when the persisted vector index and the chunk
// database cannot be reconciled at startup. The process should refuse to serve
// rather than return results joined against the wrong metadata.
var ErrCorruptState = errors.New("persisted state is corrupt")

// Manager owns durability for the index/store pair: loading it at startup,
// saving the index after writes, and a periodic background save as a backstop.
type Manager struct {
	index     vector.Index
	storage   storage.Storage
	indexPath string

	saveOnWrite bool
	interval    time.Duration
	logger      *zap.Logger

	mu    sync.Mutex
	dirty bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a persistence manager. When saveOnWrite is true every
// successful index call snapshots the index; otherwise writes only mark the
// index dirty and the periodic save (every interval) picks them up.
func NewManager(
	index vector.Index,
	store storage.Storage,
	indexPath string,
	saveOnWrite bool,
	interval time.Duration,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		index:       index,
		storage:     store,
		indexPath:   indexPath,
		saveOnWrite: saveOnWrite,
		interval:    interval,
		logger:      logger,
	}
}

// Load restores the vector index from disk and verifies it agrees with the
// chunk database. A missing index file with an empty database is a fresh
// start; any unreadable file or size disagreement is ErrCorruptState.
func (m *Manager) Load(ctx context.Context) error {
	if err := m.index.Load(m.indexPath); err != nil {
		return fmt.Errorf("%w: load index from %s: %v", ErrCorruptState, m.indexPath, err)
	}
	chunks, err := m.storage.CountChunks(ctx)
	if err != nil {
		return fmt.Errorf("count stored chunks: %w", err)
	}
	if int64(m.index.Size()) != chunks {
		return fmt.Errorf("%w: index has %d vectors but database has %d chunks",
			ErrCorruptState, m.index.Size(), chunks)
	}
	m.logger.Info("state loaded",
		zap.String("path", m.indexPath),
		zap.Int("vectors", m.index.Size()),
	)
	return nil
}

// Save snapshots the vector index to disk. The write is atomic: a crash
// mid-save leaves the previous file intact.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(m.indexPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := m.index.Save(m.indexPath); err != nil {
		return fmt.Errorf("save index to %s: %w", m.indexPath, err)
	}
	m.dirty = false
	return nil
}

// NotifyWrite records that the index changed. In save-on-write mode it saves
// immediately; otherwise the change waits for the next periodic save.
func (m *Manager) NotifyWrite() error {
	if m.saveOnWrite {
		return m.Save()
	}
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
	return nil
}

// Start launches the periodic save loop. It saves only when writes happened
// since the last save. Call Stop to flush and shut the loop down.
func (m *Manager) Start(ctx context.Context) {
	if m.interval <= 0 {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			dirty := m.dirty
			m.mu.Unlock()
			if !dirty {
				continue
			}
			if err := m.Save(); err != nil {
				m.logger.Error("periodic save failed", zap.Error(err))
				continue
			}
			m.logger.Debug("periodic save", zap.Int("vectors", m.index.Size()))
		}
	}
}

// Stop halts the periodic loop and performs a final save.
func (m *Manager) Stop() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}
	return m.Save()
}
