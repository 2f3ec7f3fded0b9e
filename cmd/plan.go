package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lcabon/resq/core/model"
	"github.com/lcabon/resq/core/planner"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview the ordered task graph for a hazard without dispatching",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&hazardType, "hazard", "flood", "hazard type")
	planCmd.Flags().IntVar(&severity, "severity", 3, "hazard severity in [1,5]")
	planCmd.Flags().Float64Var(&targetLon, "lon", 0, "target longitude")
	planCmd.Flags().Float64Var(&targetLat, "lat", 0, "target latitude")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	p, err := planner.NewPlanner(planner.DefaultLibrary())
	if err != nil {
		return err
	}
	var at *model.Location
	if cmd.Flags().Changed("lon") || cmd.Flags().Changed("lat") {
		at = &model.Location{Lon: targetLon, Lat: targetLat}
	}
	plan, err := p.Plan(hazardType, severity, at)
	if err != nil {
		return err
	}
	return printJSON(cmd, plan)
}
