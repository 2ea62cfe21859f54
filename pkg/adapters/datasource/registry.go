package datasource

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// AdapterInfo describes a registered adapter for discovery.
type AdapterInfo struct {
	Type        string `json:"type"`         // "snowflake"
	DisplayName string `json:"display_name"` // "Snowflake"
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// ExplorerFactory builds an Explorer from a generic config map.
type ExplorerFactory func(config map[string]any, logger *zap.Logger) (Explorer, error)

// AdapterRegistration pairs adapter info with its factory.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory ExplorerFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetFactory returns the factory for an adapter type, or nil.
func GetFactory(dsType string) ExplorerFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
