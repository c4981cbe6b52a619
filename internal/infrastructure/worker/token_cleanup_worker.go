package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TokenPurger deletes refresh tokens that can no longer be used
type TokenPurger interface {
	PurgeTokens(ctx context.Context) (int64, error)
}

// TokenCleanupWorkerConfig holds configuration for the cleanup worker
type TokenCleanupWorkerConfig struct {
	Interval time.Duration
	// Timeout bounds a single purge
	Timeout time.Duration
}

// DefaultTokenCleanupWorkerConfig returns default configuration
func DefaultTokenCleanupWorkerConfig() TokenCleanupWorkerConfig {
	return TokenCleanupWorkerConfig{
		Interval: time.Hour,
		Timeout:  30 * time.Second,
	}
}

// TokenCleanupWorker periodically removes expired and revoked refresh tokens
type TokenCleanupWorker struct {
	config TokenCleanupWorkerConfig
	purger TokenPurger
	logger *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	runs      int
	purged    int64
	lastError error
}

// NewTokenCleanupWorker creates a cleanup worker
func NewTokenCleanupWorker(config TokenCleanupWorkerConfig, purger TokenPurger, logger *zap.Logger) *TokenCleanupWorker {
	if config.Interval <= 0 {
		config.Interval = DefaultTokenCleanupWorkerConfig().Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTokenCleanupWorkerConfig().Timeout
	}
	return &TokenCleanupWorker{config: config, purger: purger, logger: logger}
}

// Start purges once immediately, then on every interval until stopped
func (w *TokenCleanupWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("token cleanup worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("TokenCleanupWorker started", zap.Duration("interval", w.config.Interval))
	go w.loop(runCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight purge to finish
func (w *TokenCleanupWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.RLock()
	defer w.mu.RUnlock()
	w.logger.Info("TokenCleanupWorker stopped",
		zap.Int("runs", w.runs),
		zap.Int64("purged", w.purged))
	return nil
}

// Name returns the worker name for identification
func (w *TokenCleanupWorker) Name() string {
	return "TokenCleanupWorker"
}

// Stats reports completed runs, total purged rows and the last error
func (w *TokenCleanupWorker) Stats() (runs int, purged int64, lastErr error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.runs, w.purged, w.lastError
}

func (w *TokenCleanupWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.purge(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.purge(ctx)
		}
	}
}

func (w *TokenCleanupWorker) purge(ctx context.Context) {
	purgeCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	n, err := w.purger.PurgeTokens(purgeCtx)

	w.mu.Lock()
	w.runs++
	w.lastError = err
	if err == nil {
		w.purged += n
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Failed to purge refresh tokens", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("Purged refresh tokens", zap.Int64("count", n))
	}
}
