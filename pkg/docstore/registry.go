package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/apperrors"
)

// StoreInfo describes a registered backend for the stores command.
type StoreInfo struct {
	Type        string `json:"type" yaml:"type"`                 // "mongo", "postgres", "sqlite", "memory"
	DisplayName string `json:"display_name" yaml:"display_name"` // "MongoDB"
	Description string `json:"description" yaml:"description"`
}

// Factory opens a store from backend-specific settings.
type Factory func(ctx context.Context, settings map[string]any, logger *zap.Logger) (Store, error)

// Registration contains info and the factory for a backend.
type Registration struct {
	Info    StoreInfo
	Factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each backend's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredStores returns info for all registered backends, sorted by type.
func RegisteredStores() []StoreInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]StoreInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if a backend type is available.
func IsRegistered(storeType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[storeType]
	return ok
}

// Open creates a store of the given type.
func Open(ctx context.Context, storeType string, settings map[string]any, logger *zap.Logger) (Store, error) {
	registryMu.RLock()
	reg, ok := registry[storeType]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s (not compiled in)", apperrors.ErrUnsupportedStore, storeType)
	}
	store, err := reg.Factory(ctx, settings, logger.Named("docstore").With(zap.String("store", storeType)))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", storeType, err)
	}
	return store, nil
}
