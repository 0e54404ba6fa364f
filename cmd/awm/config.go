package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/awm/internal/config"
)

var (
	configFile     string
	configDefaults bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configValidateCmd = &cobra.Command{
	Use:           "validate",
	Short:         "Validate the configuration",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := resolveConfig()
		if err != nil {
			return err
		}
		path := res.Config.Path
		if path == "" {
			path = "defaults"
		}
		okColor.Fprintf(cmd.OutOrStdout(), "config: ok (%s)\n", path)
		return nil
	},
}

var configPrintCmd = &cobra.Command{
	Use:           "print",
	Short:         "Print the effective configuration as YAML",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if !configDefaults {
			res, err := resolveConfig()
			if err != nil {
				return err
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configExplainCmd = &cobra.Command{
	Use:           "explain <setting>",
	Short:         "Show a setting's effective value and where it came from",
	Long:          "Settings:\n  " + strings.Join(config.Paths(), "\n  "),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := resolveConfig()
		if err != nil {
			return err
		}
		value, src, err := config.Explain(res, args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "path: %s\n", args[0])
		fmt.Fprintf(w, "source: %s\n", src)
		fmt.Fprintf(w, "value: %s", out)
		return nil
	},
}

func init() {
	configCmd.PersistentFlags().StringVar(&configFile, "file", "", "Read this awm.conf instead of searching the config roots")
	configPrintCmd.Flags().BoolVar(&configDefaults, "defaults", false, "Print built-in defaults (no files)")

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPrintCmd)
	configCmd.AddCommand(configExplainCmd)
}

func resolveConfig() (*config.LoadResult, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return loadConfig()
}
