package cli

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "memorylayer",
	Short: "Token-budgeted context and memory health for AI coding agents",
	Long: heredoc.Doc(`
		memorylayer assembles the context an AI coding agent needs for a task
		within a token budget, drawing on working memory, the indexed codebase,
		recorded decisions and an archive of past sessions.

		It also watches session health: token utilization, relevance decay and
		drift from the session goal. Critical context survives compaction.
	`),
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.memorylayer/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "memorylayer server URL (default $MEMORYLAYER_URL or http://127.0.0.1:37778)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(criticalCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(decisionCmd)
}
