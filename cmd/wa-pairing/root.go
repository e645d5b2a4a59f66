// Copyright 2024-2026 Aiku AI

package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	noUpdate   bool
}

func newRootCommand() *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:           name,
		Short:         "WhatsApp pairing-code service",
		SilenceErrors: true,
		Example: `
  # Write the example config, edit it, then start the service
  wa-pairing generate-config --out config.yaml
  wa-pairing serve -c config.yaml

  # Override single keys from the environment
  WAPAIR_UPLOAD__BACKEND=s3 WAPAIR_UPLOAD__S3__BUCKET=sessions wa-pairing serve
`,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "config.yaml", "path to the config file, empty to use built-in defaults")
	cmd.PersistentFlags().BoolVarP(&flags.noUpdate, "no-update", "n", false, "don't rewrite the config file with new keys")

	cmd.AddCommand(
		newServeCommand(&flags),
		newGenerateConfigCommand(),
		newVersionCommand(),
	)
	return cmd
}
