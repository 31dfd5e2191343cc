package mssql

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-introspect/pkg/adapters/warehouse"
	"github.com/ekaya-inc/ekaya-introspect/pkg/config"
)

func init() {
	warehouse.Register(warehouse.Registration{
		Info: warehouse.DialectInfo{
			Type:        "sqlserver",
			DisplayName: "Microsoft SQL Server",
			Description: "SQL Server 2016+ and Azure SQL Database (SQL authentication)",
		},
		Factory: func(account string, cfg *config.Config, logger *zap.Logger) (warehouse.Dialect, error) {
			ms := cfg.SQLServer
			if account != "" {
				ms.Host = account
			}
			return New(ms, logger)
		},
	})
}
