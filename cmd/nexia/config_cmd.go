package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nexia-labs/nexia/pkg/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(a.configPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", a.configPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.SaveConfig(a.configPath, config.DefaultConfig()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(a.stdout, "%s Config written to %s\n", styleOK.Render("✓"), a.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			if cfg.Bridge.AnthropicAPIKey != "" {
				cfg.Bridge.AnthropicAPIKey = maskValue(cfg.Bridge.AnthropicAPIKey)
			}
			if cfg.Bridge.OpenAIAPIKey != "" {
				cfg.Bridge.OpenAIAPIKey = maskValue(cfg.Bridge.OpenAIAPIKey)
			}
			return a.printJSON(cfg)
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, a.configPath)
		},
	}

	cmd.AddCommand(initCmd, show, path)
	return cmd
}
