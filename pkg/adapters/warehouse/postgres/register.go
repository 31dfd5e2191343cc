package postgres

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
	"github.com/ekaya-inc/ekaya-introspect/pkg/config"
)

func init() {
	warehouse.Register(warehouse.Registration{
		Info: warehouse.DialectInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "PostgreSQL 12+, Aurora PostgreSQL, Supabase",
		},
		Factory: func(account string, cfg *config.Config, logger *zap.Logger) (warehouse.Dialect, error) {
			pg := cfg.Postgres
			if account != "" {
				pg.Host = account
			}
			return New(pg, logger)
		},
	})
}
