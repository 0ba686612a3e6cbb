package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	tgflow "github.com/0xVanfer/tg-flow"
	"github.com/0xVanfer/tg-flow/config"
	"github.com/0xVanfer/tg-flow/credit"
	"github.com/0xVanfer/tg-flow/logger"
)

const shutdownTimeout = 10 * time.Second

var demoData bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot",
	Long:  "Connects to Telegram with long polling and serves the credit flow plus any flows declared in the configuration.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		slog.SetDefault(appLogger)
		log := appLogger.With("component", "cmd.run")

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := tgflow.NewWithHandlers(cfg, config.NewHandlerRegistry(), tgflow.WithLogger(appLogger))
		if err != nil {
			return err
		}
		if err := registerCredit(w, demoData, appLogger); err != nil {
			return err
		}

		if err := w.Start(runCtx); err != nil {
			return err
		}
		log.Info("Bot running", "metrics", cfg.Metrics.Enabled, "redis", cfg.Redis.Addr != "")

		<-runCtx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		w.Stop(shutdownCtx)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&demoData, "demo", true, "seed sample debts for every new creditor")
	rootCmd.AddCommand(runCmd)
}

// registerCredit adds the credit flow to w and binds it to /credit unless the
// configuration already binds a command to it. Reminders are sent through the bot.
func registerCredit(w *tgflow.Wrapper, demo bool, log *slog.Logger) error {
	ledger := credit.NewMemoryLedger()
	ledger.Demo = demo

	notifier := credit.NotifierFunc(func(ctx context.Context, userID int64, text string) error {
		_, err := w.Bot().SendMessage(ctx, userID, text, nil)
		return err
	})

	f, err := credit.NewService(ledger, notifier, log).Flow(w.FlowOptions()...)
	if err != nil {
		return fmt.Errorf("build credit flow: %w", err)
	}
	w.RegisterFlow(f)

	for _, cmd := range w.Config().Bot.Commands {
		if cmd.Flow == credit.FlowName {
			return nil
		}
	}
	w.RegisterCommand("credit", "Show and settle coffee credits", credit.FlowName, credit.StateMain)
	return nil
}
