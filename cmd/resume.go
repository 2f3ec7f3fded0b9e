package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lcabon/resq/app"
	"github.com/lcabon/resq/config"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted mission run from its latest checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg, app.Collaborators{})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	res, err := svc.Missions.Resume(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}
