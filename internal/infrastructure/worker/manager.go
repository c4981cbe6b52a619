package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background job owned by the manager
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// WorkerManager starts registered workers together and stops the ones that
// started, newest first.
type WorkerManager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	workers []Worker
	started []Worker
	running bool
	cancel  context.CancelFunc
}

func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{logger: logger}
}

// Register adds a worker. It takes effect on the next StartAll.
func (m *WorkerManager) Register(w Worker) {
	m.mu.Lock()
	m.workers = append(m.workers, w)
	m.mu.Unlock()

	m.logger.Debug("Worker registered", zap.String("worker_name", w.Name()))
}

// StartAll starts every registered worker. A failed start is logged and the
// remaining workers still start.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("workers already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.started = m.started[:0]

	for _, w := range m.workers {
		if err := w.Start(runCtx); err != nil {
			m.logger.Error("Worker failed to start", zap.String("worker_name", w.Name()), zap.Error(err))
			continue
		}
		m.started = append(m.started, w)
	}

	m.logger.Info("Workers started",
		zap.Int("started", len(m.started)),
		zap.Int("registered", len(m.workers)))
	return nil
}

// StopAll cancels the shared context, then stops started workers in reverse
// order. Stop errors are joined.
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancel, started := m.cancel, slices.Clone(m.started)
	m.cancel, m.started = nil, nil
	m.mu.Unlock()

	cancel()

	var errs []error
	for _, w := range slices.Backward(started) {
		if err := w.Stop(); err != nil {
			m.logger.Error("Worker failed to stop", zap.String("worker_name", w.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// GetWorkerCount returns the number of registered workers
func (m *WorkerManager) GetWorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
