package cli

import (
	"context"

	"github.com/quietfjord/chromewire/internal/daemon"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start daemon and browser",
	Long:  "Starts the chromewire daemon which launches a browser and begins capturing CDP events.",
	RunE:  runStart,
}

var (
	startHeadless bool
	startPort     int
)

func init() {
	startCmd.Flags().BoolVar(&startHeadless, "headless", false, "Run browser in headless mode")
	startCmd.Flags().IntVar(&startPort, "port", 9222, "CDP port for browser")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	if execFactory.IsDaemonRunning() {
		return outputError("daemon is already running")
	}

	cfg := daemon.DefaultConfig()
	cfg.Headless = startHeadless
	cfg.Port = startPort
	cfg.Debug = Debug
	cfg.CommandExecutor = ExecuteArgs

	d := daemon.New(cfg)

	outputSuccess(map[string]any{
		"message": "daemon starting",
		"port":    startPort,
	})

	if err := d.Run(context.Background()); err != nil {
		return outputError(err.Error())
	}

	return nil
}
