package datasource

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/logging"
)

const (
	DefaultConnectionTTLMinutes = 5
	DefaultCleanupInterval      = 1 * time.Minute
)

// ConnectionManagerConfig holds configuration for the connection manager.
type ConnectionManagerConfig struct {
	TTLMinutes      int
	CleanupInterval time.Duration
}

// ConnectionManager keeps named explorers alive across host requests and
// closes the ones left idle longer than the TTL.
type ConnectionManager struct {
	mu        sync.Mutex
	explorers map[string]*managedExplorer
	factory   AdapterFactory
	ttl       time.Duration
	interval  time.Duration
	stopped   bool
	stopChan  chan struct{}
	done      chan struct{}
	logger    *zap.Logger
}

type managedExplorer struct {
	explorer Explorer
	dsType   string
	lastUsed time.Time
}

// NewConnectionManager starts a background cleanup goroutine that runs until
// Close is called.
func NewConnectionManager(cfg ConnectionManagerConfig, factory AdapterFactory, logger *zap.Logger) *ConnectionManager {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultConnectionTTLMinutes
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	m := &ConnectionManager{
		explorers: make(map[string]*managedExplorer),
		factory:   factory,
		ttl:       time.Duration(cfg.TTLMinutes) * time.Minute,
		interval:  cfg.CleanupInterval,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logging.OrNop(logger),
	}

	go m.cleanupLoop()
	return m
}

// Get returns the explorer registered under name, creating it with config on
// first use. The explorer is not opened here; its session opens lazily.
func (m *ConnectionManager) Get(name, dsType string, config map[string]any) (Explorer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, fmt.Errorf("connection manager is closed")
	}

	if managed, ok := m.explorers[name]; ok {
		if managed.dsType != dsType {
			return nil, fmt.Errorf("connection %q is already registered as %s", name, managed.dsType)
		}
		managed.lastUsed = time.Now()
		return managed.explorer, nil
	}

	explorer, err := m.factory.NewExplorer(dsType, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create explorer for %s: %w", name, err)
	}
	m.explorers[name] = &managedExplorer{explorer: explorer, dsType: dsType, lastUsed: time.Now()}

	m.logger.Info("registered connection", zap.String("name", name), zap.String("type", dsType))
	return explorer, nil
}

// Remove closes and forgets the named explorer.
func (m *ConnectionManager) Remove(name string) error {
	m.mu.Lock()
	managed, ok := m.explorers[name]
	delete(m.explorers, name)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return managed.explorer.Close()
}

func (m *ConnectionManager) cleanupLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup(time.Now())
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup closes explorers idle longer than the TTL as of now.
// Explorers are closed outside the lock since Close waits for running statements.
func (m *ConnectionManager) performCleanup(now time.Time) {
	m.mu.Lock()
	var expired []string
	var toClose []Explorer
	for name, managed := range m.explorers {
		if now.Sub(managed.lastUsed) > m.ttl {
			expired = append(expired, name)
			toClose = append(toClose, managed.explorer)
			delete(m.explorers, name)
		}
	}
	remaining := len(m.explorers)
	m.mu.Unlock()

	for i, explorer := range toClose {
		if err := explorer.Close(); err != nil {
			m.logger.Warn("failed to close idle connection",
				zap.String("name", expired[i]),
				zap.String("error", logging.SanitizeError(err)),
			)
		}
	}

	if len(expired) > 0 {
		m.logger.Info("closed idle connections",
			zap.Int("count", len(expired)),
			zap.Int("remaining", remaining),
		)
	}
}

// Close closes every explorer and stops the cleanup goroutine.
// This method is idempotent and safe to call multiple times.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	close(m.stopChan)
	explorers := m.explorers
	m.explorers = make(map[string]*managedExplorer)
	m.mu.Unlock()

	<-m.done

	var firstErr error
	for name, managed := range explorers {
		if err := managed.explorer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
	}

	m.logger.Info("connection manager closed")
	return firstErr
}

// Stats returns a snapshot of managed connections.
func (m *ConnectionManager) Stats() ConnectionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	stats := ConnectionStats{
		TotalConnections: len(m.explorers),
		TTLMinutes:       int(m.ttl.Minutes()),
		States:           make(map[string]string, len(m.explorers)),
	}
	names := make([]string, 0, len(m.explorers))
	for name, managed := range m.explorers {
		names = append(names, name)
		stats.States[name] = managed.explorer.State().String()
		if idle := int(now.Sub(managed.lastUsed).Seconds()); idle > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idle
		}
	}
	sort.Strings(names)
	stats.Names = names
	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	TotalConnections  int               `json:"total_connections"`
	TTLMinutes        int               `json:"ttl_minutes"`
	Names             []string          `json:"names"`
	States            map[string]string `json:"states"`
	OldestIdleSeconds int               `json:"oldest_idle_seconds"`
}
