package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forest-guardian/burnsev/internal/geotiff"
	"github.com/forest-guardian/burnsev/internal/log"
	"github.com/forest-guardian/burnsev/internal/notification"
	"github.com/forest-guardian/burnsev/internal/properties"
	"github.com/forest-guardian/burnsev/internal/ui"
)

func printBanner() {
	bannercolor.Cyan(figure.NewFigure("BurnSev", "isometric1", true).String())
	fmt.Println()
}

func loadEnv() {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

// recoverPanic reports a crash to the error webhook before exiting.
func recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	pc, file, line, ok := runtime.Caller(3)
	location := "Unknown location"
	if ok {
		location = fmt.Sprintf("%s:%d in %s", file, line, runtime.FuncForPC(pc).Name())
	}
	ui.PrintError(fmt.Sprintf("PANIC: %v\nLocation: %s", r, location))

	message := fmt.Sprintf("burnsev panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, debug.Stack())
	if err := notification.NewDiscord().SendError(context.Background(), message); err != nil {
		ui.PrintError(fmt.Sprintf("Failed to send notification: %s", err.Error()))
	}
	os.Exit(2)
}

func newRootCmd() *cobra.Command {
	var debugLogs bool
	root := &cobra.Command{
		Use:           "burnsev",
		Short:         "Multitemporal burn severity mapping from Landsat 8 and Sentinel-2 imagery",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := log.Init(debugLogs || properties.Debug()); err != nil {
				return err
			}
			geotiff.Init()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
	}
	root.PersistentFlags().BoolVar(&debugLogs, "debug", false, "enable development logging")

	root.AddCommand(newRunCmd(), newSensorsCmd(), newIndicesCmd(), newPeriodsCmd(), newMenuCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		noProgress bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the burn severity analysis described by a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd.Context(), configPath, !noProgress)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "burnsev.yaml", "pipeline definition")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide the progress bar")
	return cmd
}

func newSensorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sensors",
		Short: "List the supported sensors",
		Run: func(cmd *cobra.Command, args []string) {
			ui.ListSensors(cmd.OutOrStdout())
		},
	}
}

func newIndicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indices",
		Short: "List the spectral indices",
		Run: func(cmd *cobra.Command, args []string) {
			ui.ListFormulas(cmd.OutOrStdout())
		},
	}
}

func newPeriodsCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "periods",
		Short: "List the periods of a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ui.ListPeriods(cmd.OutOrStdout(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "burnsev.yaml", "pipeline definition")
	return cmd
}

func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			ui.ShowMenu(ui.Actions{Run: func(path string) error {
				return runAnalysis(ctx, path, true)
			}})
		},
	}
}

func main() {
	defer recoverPanic()
	printBanner()
	loadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
