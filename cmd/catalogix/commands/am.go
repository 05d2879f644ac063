package commands

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/catalogix/am"
	"github.com/teranos/catalogix/display"
	"github.com/teranos/catalogix/errors"
	"github.com/teranos/catalogix/pulse/batch"
	"github.com/teranos/catalogix/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = NewAmCmd()

// NewAmCmd builds the am command tree with fresh flags.
func NewAmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "am",
		Short: sym.Short("am", "Show and check catalogix configuration"),
		Long: sym.AM + ` am: catalogix configuration ("I am")

Configuration sources (later overrides earlier):
1. Built-in defaults
2. /etc/catalogix/am.toml
3. ~/.catalogix/am.toml
4. ./am.toml (searched upwards from the working directory)
5. Environment variables (CATALOGIX_*, plus R2_* and CLOUDFLARE_ACCOUNT_ID)
6. Command line flags

Examples:
  catalogix am show                 # Show resolved configuration
  catalogix am show --format json   # Same, as JSON
  catalogix am validate             # Check the resolved configuration
  catalogix am where                # List the config files in effect`,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show resolved configuration (credentials redacted)",
		RunE:  runAmShow,
	}
	show.Flags().String("format", "toml", "Output format: toml, json, yaml")
	addConfigFlag(show)

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate resolved configuration",
		RunE:  runAmValidate,
	}
	addConfigFlag(validate)

	where := &cobra.Command{
		Use:   "where",
		Short: "List the configuration files in effect",
		RunE:  runAmWhere,
	}

	cmd.AddCommand(show, validate, where)
	return cmd
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	redacted := cfg.Redacted()
	out := cmd.OutOrStdout()

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		return display.OutputJSON(out, redacted)

	case "yaml":
		data, err := yaml.Marshal(redacted)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# catalogix configuration\n%s", data)

	case "toml":
		data, err := toml.Marshal(redacted)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(out, "# catalogix configuration\n%s", data)

	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", format)
	}
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Configuration is valid")

	m := batch.GetSystemMetrics(cfg.Ingest.Workers)
	if m.Recommended > 0 {
		fmt.Fprintf(out, "  workers: %d (recommended %d, memory %.1f/%.1fGB used)\n",
			m.Workers, m.Recommended, m.MemoryUsedGB, m.MemoryTotalGB)
	} else {
		fmt.Fprintf(out, "  workers: %d\n", m.Workers)
	}

	if cfg.Storage.Mode == am.StorageAuto && !cfg.Storage.RemoteComplete() {
		fmt.Fprintf(out, "  storage.mode is auto and R2 is incomplete (%d settings missing): images will be skipped\n",
			len(cfg.Storage.MissingRemote()))
	}
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "failed to resolve working directory")
	}
	out := cmd.OutOrStdout()

	files := am.ConfigFiles(wd)
	if len(files) == 0 {
		fmt.Fprintln(out, "No configuration files found; using defaults and environment")
		return nil
	}
	fmt.Fprintln(out, "Configuration files (later overrides earlier):")
	for i, path := range files {
		fmt.Fprintf(out, "  %d. %s\n", i+1, path)
	}
	return nil
}
