// Copyright 2024-2026 Aiku AI

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aiku/wa-pairing/pkg/config"
)

func newGenerateConfigCommand() *cobra.Command {
	var (
		outPath string
		force   bool
		stdout  bool
	)
	cmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Write the example configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdout {
				_, err := fmt.Fprint(cmd.OutOrStdout(), config.ExampleConfig)
				return err
			}
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("config file %s already exists (use --force to overwrite)", outPath)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("failed to stat config file: %w", err)
				}
			}
			if dir := filepath.Dir(outPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create config directory: %w", err)
				}
			}
			if err := os.WriteFile(outPath, []byte(config.ExampleConfig), 0o600); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote example config to %s\n", outPath)
			return err
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "config.yaml", "output path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the config instead of writing a file")
	return cmd
}
