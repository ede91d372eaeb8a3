package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lifeos-tools/attache/internal/config"
)

var (
	configPath string
	dbPath     string
	googleCred string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "attache",
	Short: "attache - personal scheduling coordinator",
	Long: `attache unifies multiple calendars (Google, CalDAV) into one schedule,
answers availability questions, composes morning briefings and applies
mutations ("move the hair appointment to tomorrow") against the right
calendar.

Operational logs go to stderr; the rendered schedule output goes to
stdout, ready for a chat surface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the attache config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the local database (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&googleCred, "google-cred", "credentials.json", "OAuth client credentials file for Google")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(upcomingCmd)
	rootCmd.AddCommand(briefingCmd)
	rootCmd.AddCommand(freeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
