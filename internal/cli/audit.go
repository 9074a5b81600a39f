package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/vincentbai/browsetrace-audit/internal/audit"
	"github.com/vincentbai/browsetrace-audit/internal/storage"
)

func newAuditCommand(gs *globalState) *cobra.Command {
	var (
		pageURL      string
		databasePath string
	)

	cmd := &cobra.Command{
		Use:   "audit <trace.json>",
		Short: "Audit a captured trace file and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := afero.ReadFile(gs.fs, args[0])
			if err != nil {
				return fmt.Errorf("reading trace file: %w", err)
			}

			auditor := audit.NewAuditor(gs.log)
			result, err := auditor.Run("", pageURL, data)
			if err != nil {
				return err
			}

			if databasePath != "" {
				store, err := storage.NewStore(databasePath)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.InsertResults([]audit.Result{result}); err != nil {
					return err
				}
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&pageURL, "url", "file://trace", "page URL to record on the result")
	cmd.Flags().StringVar(&databasePath, "db", "", "also persist the result to this SQLite database")
	return cmd
}
