package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/octagon/analyzer"
	"github.com/gnolang/octagon/internal"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Re-analyze Go files whenever they are written",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{"."}
		}

		config, err := loadConfig()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		engine, err := analyzer.New(config, logger)
		if err != nil {
			logger.Fatal("Failed to initialize analysis engine", zap.Error(err))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		w, err := internal.NewWatcher(engine, logger, cmd.OutOrStdout(), args...)
		if err != nil {
			logger.Fatal("Failed to create watcher", zap.Error(err))
		}
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %v (Ctrl-C to stop)\n", args)
		<-w.Done()
	},
}
