package warehouse

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/config"
)

// DialectInfo describes a registered dialect for the CLI listing.
type DialectInfo struct {
	Type        string `json:"type" yaml:"type"`                 // "snowflake", "postgres", "sqlserver"
	DisplayName string `json:"display_name" yaml:"display_name"` // "Snowflake", "PostgreSQL"
	Description string `json:"description" yaml:"description"`
}

// DialectFactory builds a dialect from configuration. account overrides the
// configured account identity when non-empty. Factories validate credentials
// eagerly and return *apperrors.ConfigurationError for missing ones.
type DialectFactory func(account string, cfg *config.Config, logger *zap.Logger) (Dialect, error)

// Registration contains info + factory for one dialect.
type Registration struct {
	Info    DialectInfo
	Factory DialectFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each dialect's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredDialects returns info for all registered dialects, sorted by type.
func RegisteredDialects() []DialectInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DialectInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if a dialect type is available.
func IsRegistered(dialectType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dialectType]
	return ok
}

// NewDialect builds the dialect registered under dialectType.
func NewDialect(dialectType, account string, cfg *config.Config, logger *zap.Logger) (Dialect, error) {
	registryMu.RLock()
	reg, ok := registry[dialectType]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported warehouse type %q", dialectType)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return reg.Factory(account, cfg, logger)
}
