package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/catalogix/display"
	"github.com/teranos/catalogix/ixgest/catalog"
	"github.com/teranos/catalogix/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show catalogix version information",
	Long:  `Display version, build time, commit hash, target schema version and platform for the catalogix binary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get(catalog.SchemaVersion)
		out := cmd.OutOrStdout()

		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(out, info)
		}

		fmt.Fprintln(out, info.String())
		fmt.Fprintf(out, "Schema: %s\n", info.SchemaVersion)
		fmt.Fprintf(out, "Platform: %s\n", info.Platform)
		fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
}
