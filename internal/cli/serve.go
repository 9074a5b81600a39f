package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vincentbai/browsetrace-audit/internal/audit"
	"github.com/vincentbai/browsetrace-audit/internal/server"
	"github.com/vincentbai/browsetrace-audit/internal/storage"
)

func newServeCommand(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the audit agent HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := GetConfig()
			if err != nil {
				return err
			}

			level, err := logrus.ParseLevel(cfg.LogLevel.String)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel.String, err)
			}
			if gs.log.GetLevel() != logrus.DebugLevel {
				gs.log.SetLevel(level)
			}

			databasePath := cfg.DatabasePath.String
			if databasePath == "" {
				databasePath, err = defaultDatabasePath()
				if err != nil {
					return err
				}
			}

			store, err := storage.NewStore(databasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			gs.log.WithFields(logrus.Fields{
				"database": databasePath,
				"address":  cfg.Address.String,
			}).Debug("starting agent")

			srv := server.NewServer(store, audit.NewAuditor(gs.log), gs.log, cfg.Address.String)
			return srv.Start()
		},
	}
}
