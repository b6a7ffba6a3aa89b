package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build metadata, stamped by the release build with
// -ldflags "-X github.com/lazypower/memorylayer/internal/cli.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the memorylayer build",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "memorylayer %s\n  commit: %s\n  built:  %s\n", Version, Commit, BuildDate)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version")
}

// VersionString is the version reported by /api/health and the MCP server.
func VersionString() string {
	return Version + "+" + Commit
}
