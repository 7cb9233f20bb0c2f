package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"careline/internal/audit"
	"careline/internal/config"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent tool invocations from the audit log",
	RunE:  runAudit,
}

var auditLimit int

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "number of entries to show")
}

func runAudit(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		exitWith(ExitConfigInvalid, "ERROR: "+err.Error())
	}
	if cfg.Audit.Path == "" {
		exitWith(ExitConfigInvalid, "ERROR: auditing is disabled; set audit.path in the config or CARELINE_AUDIT_DB")
	}

	log := audit.NewSQLiteLog(cfg.Audit.Path)
	defer log.Close()

	entries, err := log.Recent(cmd.Context(), auditLimit)
	if err != nil {
		exitWith(ExitGenericError, "ERROR: "+err.Error())
	}
	if len(entries) == 0 {
		fmt.Println("No audit entries.")
		return nil
	}

	st := newStyles(os.Stdout, globalFlags.JSON)
	for _, e := range entries {
		line := fmt.Sprintf("%s  %s", e.CreatedAt.Format(time.RFC3339), st.Key.Render(e.Tool))
		if e.NameFilter != "" {
			line += fmt.Sprintf("  name=%q", e.NameFilter)
		}
		if e.Limit.Valid {
			line += fmt.Sprintf("  limit=%d", e.Limit.Int64)
		}
		line += fmt.Sprintf("  rows=%d", e.ResultRows)
		if e.ErrorKind != "" {
			line += "  " + st.Error.Render("error="+e.ErrorKind)
		}
		fmt.Println(line)
	}
	return nil
}
