package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/catalogix/cmd/catalogix/commands"
	"github.com/teranos/catalogix/errors"
	"github.com/teranos/catalogix/logger"
)

var rootCmd = &cobra.Command{
	Use:   "catalogix",
	Short: "catalogix - model catalog ingest",
	Long: `catalogix - turn model catalog exports into database artifacts.

Available commands:
  ix      - Ingest a catalog export into SQL and batch artifacts
  verify  - Apply generated SQL to an in-memory models table
  am      - Show and check configuration ("I am")
  version - Show version information

Examples:
  catalogix ix data/models.json        # Generate data/upsert.sql and friends
  catalogix verify data/upsert.sql     # Check the generated SQL applies
  catalogix am show                    # Show current configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize global logger before any command runs
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.IxCmd)
	rootCmd.AddCommand(commands.VerifyCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.UserMessage(err))
		os.Exit(1)
	}
}
