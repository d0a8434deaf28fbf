package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"runtime"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/zanlist/zanlist/internal/config"
)

var (
	BuildVersion   = "master"
	BuildCommit    = "00000000"
	BuildDate      = time.Now().Format("2006-01-02T15:04:05Z")
	BuildGoVersion = runtime.Version()

	favoritesOnly bool

	rootCmd = &cobra.Command{
		Use:   "zanlist",
		Short: "Zandronum server browser",
		Long:  `zanlist - queries the master directory and every known game server and prints the live server table`,
		RunE:  run,
	}

	versionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		Run:               version,
	}
)

var errApp = errors.New("application error")

func main() {
	rootCmd.PersistentFlags().BoolVar(&favoritesOnly, "favorites", false,
		"Only refresh favorite servers, skipping master discovery")
	rootCmd.AddCommand(versionCmd)

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		slog.Error("Exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func version(_ *cobra.Command, _ []string) {
	fmt.Printf("zanlist\n\n")                       //nolint:forbidigo
	fmt.Printf("  Version: %s\n", BuildVersion)     //nolint:forbidigo
	fmt.Printf("  Commit:  %s\n", BuildCommit)      //nolint:forbidigo
	fmt.Printf("  Built:   %s\n", BuildDate)        //nolint:forbidigo
	fmt.Printf("  Runtime: %s\n\n", BuildGoVersion) //nolint:forbidigo
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// Make sure our config & data home exists.
	if err := os.MkdirAll(path.Join(xdg.ConfigHome, config.ConfigDirName), 0o750); err != nil {
		return errors.Join(err, errApp)
	}

	configUpdates := make(chan config.Config, 1)
	loader := config.NewLoader(configUpdates)
	userConfig, errConfig := loader.Read()
	if errConfig != nil {
		return errors.Join(errConfig, errApp)
	}

	// Edits to the config file mid-run apply to the next cycle.
	go func() {
		for updated := range configUpdates {
			slog.Info("Config reloaded", slog.String("path", loader.Path()),
				slog.String("master", updated.MasterAddress))
		}
	}()

	logFile, errLogger := config.LoggerInit(config.DefaultLogName, userConfig.Level())
	if errLogger != nil {
		return errors.Join(errLogger, errApp)
	}
	defer func() {
		if err := logFile.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to close log file:", err)
		}
	}()

	slog.Info("Starting zanlist", slog.String("version", BuildVersion),
		slog.String("commit", BuildCommit), slog.String("go", runtime.Version()))

	app, errNew := NewApp(ctx, userConfig)
	if errNew != nil {
		return errors.Join(errNew, errApp)
	}
	defer app.Close()

	return app.Run(ctx, favoritesOnly)
}
