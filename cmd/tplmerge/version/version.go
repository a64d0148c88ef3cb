package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portainer-templates/tplmerge/pkg/version"
)

// NewCmd returns the command printing the build information of tplmerge.
func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of tplmerge",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			commit := info.Commit
			if commit == "" {
				commit = "unknown"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tplmerge %s (commit %s, %s)\n", info.Version, commit, info.GoVersion)
		},
	}
}
