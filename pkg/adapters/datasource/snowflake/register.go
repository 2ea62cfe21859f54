package snowflake

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
)

// AdapterType is the registry key for this adapter.
const AdapterType = "snowflake"

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        AdapterType,
			DisplayName: "Snowflake",
			Description: "Browse Snowflake databases, schemas and objects and run ad-hoc SQL",
			Icon:        "snowflake",
		},
		Factory: func(config map[string]any, logger *zap.Logger) (datasource.Explorer, error) {
			creds, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(creds, logger), nil
		},
	})
}
