package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lcabon/resq/app"
	"github.com/lcabon/resq/config"
	"github.com/lcabon/resq/core/mission"
	"github.com/lcabon/resq/core/model"
	"github.com/lcabon/resq/core/workflow"
)

var (
	missionKind string
	hazardType  string
	severity    int
	targetLon   float64
	targetLat   float64
	requestText string
)

var missionCmd = &cobra.Command{
	Use:   "mission",
	Short: "Run one mission pipeline and print the result",
	RunE:  runMission,
}

func init() {
	missionCmd.Flags().StringVar(&missionKind, "kind", "rescue", "mission kind: rescue, scout or situation_report")
	missionCmd.Flags().StringVar(&hazardType, "hazard", "", "hazard type, e.g. flood")
	missionCmd.Flags().IntVar(&severity, "severity", 3, "hazard severity in [1,5]")
	missionCmd.Flags().Float64Var(&targetLon, "lon", 0, "target longitude")
	missionCmd.Flags().Float64Var(&targetLat, "lat", 0, "target latitude")
	missionCmd.Flags().StringVar(&requestText, "text", "", "free-form request text")
	rootCmd.AddCommand(missionCmd)
}

func runMission(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg, app.Collaborators{})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	req := mission.Request{
		UserID:     "cli",
		Mission:    workflow.MissionKind(missionKind),
		HazardType: hazardType,
		Severity:   severity,
		Text:       requestText,
	}
	if cmd.Flags().Changed("lon") || cmd.Flags().Changed("lat") {
		req.Target = &model.Location{Lon: targetLon, Lat: targetLat}
	}

	res, err := svc.Missions.Start(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
