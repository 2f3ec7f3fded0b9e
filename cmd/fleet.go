package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcabon/resq/config"
	"github.com/lcabon/resq/infra/mqtt"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Resource fleet commands",
}

var fleetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List resources answering a discovery round",
	RunE:  runFleetLs,
}

func init() {
	fleetCmd.AddCommand(fleetLsCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	discCfg := cfg.MQTT
	discCfg.ClientID = fmt.Sprintf("%s-fleet-ls-%d", discCfg.ClientID, time.Now().UnixNano())

	disc, err := mqtt.NewPahoResourceDiscovery(discCfg)
	if err != nil {
		return fmt.Errorf("resource discovery: %w", err)
	}
	defer disc.Disconnect()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	resources, err := disc.Discover(ctx)
	if err != nil {
		return err
	}
	for _, r := range resources {
		status := "unavailable"
		if r.Available {
			status = "available"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.ID, r.Kind, status)
	}
	return nil
}
