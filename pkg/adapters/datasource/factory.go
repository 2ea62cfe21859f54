package datasource

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
	"github.com/ekaya-inc/snowflake-catalog/pkg/logging"
)

// AdapterFactory creates explorers from the registry.
type AdapterFactory interface {
	// NewExplorer creates an unopened explorer for the given adapter type.
	NewExplorer(dsType string, config map[string]any) (Explorer, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []AdapterInfo
}

type registryFactory struct {
	logger *zap.Logger
}

// NewAdapterFactory returns a factory that uses the global registry.
func NewAdapterFactory(logger *zap.Logger) AdapterFactory {
	return &registryFactory{logger: logging.OrNop(logger)}
}

func (f *registryFactory) NewExplorer(dsType string, config map[string]any) (Explorer, error) {
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("%w: %s (not compiled in)", apperrors.ErrUnsupportedType, dsType)
	}
	return factory(config, f.logger.With(zap.String("adapter", dsType)))
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}

var _ AdapterFactory = (*registryFactory)(nil)
