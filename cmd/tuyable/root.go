package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/config"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "tuyable",
		Short: "Tuya BLE to MQTT bridge",
		Long: `tuyable exposes paired Tuya BLE devices (fingerbots, valves, locks,
blinds and sensors) as entities over MQTT and a REST/WebSocket API.

Datapoint frames travel through a BLE gateway on MQTT; tuyable decodes
them, keeps entity state and availability, and turns entity commands
back into datapoint writes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.configPath)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("tuyable %s (commit %s, built %s)\n", version, commit, date))

	root.PersistentFlags().StringVar(&opts.configPath, "config", getConfigPath(),
		"Config file path (env: TUYABLE_CONFIG)")

	root.AddCommand(
		newServeCmd(opts),
		newProductsCmd(),
		newResolveCmd(),
		newScanCmd(),
		newMigrateCmd(opts),
		newTokenCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tuyable %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// loadConfig loads the config file named by --config.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
