package snowflake

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
	"github.com/ekaya-inc/ekaya-introspect/pkg/config"
)

func init() {
	warehouse.Register(warehouse.Registration{
		Info: warehouse.DialectInfo{
			Type:        "snowflake",
			DisplayName: "Snowflake",
			Description: "Snowflake accounts (user/password authentication)",
		},
		Factory: func(account string, cfg *config.Config, logger *zap.Logger) (warehouse.Dialect, error) {
			return New(account, cfg.Snowflake, logger)
		},
	})
}
