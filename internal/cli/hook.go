package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/memorylayer/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle assistant hook events",
}

func init() {
	events := []struct{ name, short string }{
		{"start", "Handle SessionStart hook"},
		{"submit", "Handle UserPromptSubmit hook"},
		{"tool", "Handle PostToolUse hook"},
		{"stop", "Handle Stop hook"},
		{"end", "Handle SessionEnd hook"},
	}
	for _, ev := range events {
		hookCmd.AddCommand(&cobra.Command{
			Use:   ev.name,
			Short: ev.short,
			Run: func(cmd *cobra.Command, args []string) {
				if serverURL != "" {
					os.Setenv("MEMORYLAYER_URL", serverURL)
				}
				hooks.Handle(ev.name, os.Stdin, os.Stdout)
			},
		})
	}
}
