package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/lazypower/memorylayer/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve memorylayer tools over MCP on stdio",
	Long: heredoc.Doc(`
		Run an MCP server on stdin/stdout exposing get_context,
		get_context_health, mark_critical, get_critical_context,
		remove_critical, trigger_compaction and auto_compact.

		Logs go to stderr or the configured log file.
	`),
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, _, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng, err := buildEngine(ctx, cfg, db, nil)
	if err != nil {
		return err
	}
	defer eng.Stop()
	if err := eng.StartMaintenance(cfg.Compaction.Schedule); err != nil {
		return err
	}
	return mcpserver.Serve(eng, VersionString())
}
