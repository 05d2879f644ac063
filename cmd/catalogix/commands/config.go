package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/catalogix/am"
	"github.com/teranos/catalogix/errors"
)

const configFlag = "config"

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String(configFlag, "", "Read configuration from this file instead of the am.toml cascade (environment is ignored)")
}

// loadConfig resolves configuration for cmd: --config when given, the usual
// cascade otherwise.
func loadConfig(cmd *cobra.Command) (*am.Config, error) {
	path, _ := cmd.Flags().GetString(configFlag)
	if path == "" {
		cfg, err := am.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load configuration")
		}
		return cfg, nil
	}

	cfg, err := am.LoadFromFile(path)
	if err != nil {
		return nil, errors.WithHint(err, "check that the file exists and is valid TOML")
	}
	return cfg, nil
}
