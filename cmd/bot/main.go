// Package main contains the entrypoint for the skill bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/edgard/skillbot/internal/bot"
	"github.com/edgard/skillbot/internal/bot/handlers"
	"github.com/edgard/skillbot/internal/bot/tasks"
	"github.com/edgard/skillbot/internal/config"
	"github.com/edgard/skillbot/internal/database"
	"github.com/edgard/skillbot/internal/filter"
	"github.com/edgard/skillbot/internal/logger"
	"github.com/edgard/skillbot/internal/provider"
	"github.com/edgard/skillbot/internal/reply"
	"github.com/edgard/skillbot/internal/skill"
	"github.com/edgard/skillbot/internal/telegram"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "skillbot",
	Short:         "Telegram bot selling AI skills for credits",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./config.yaml", "Path to configuration file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration and installs the default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	return cfg, log, nil
}

// buildFilter merges the inline denylist with the optional word file.
func buildFilter(cfg config.DenylistConfig) (*filter.Filter, error) {
	words := append([]string(nil), cfg.Words...)
	if cfg.File != "" {
		fromFile, err := filter.LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		words = append(words, fromFile...)
	}
	return filter.New(words...), nil
}

// serve wires every component and blocks until ctx is cancelled.
func serve(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	denylist, err := buildFilter(cfg.Denylist)
	if err != nil {
		return err
	}
	log.Info("Denylist loaded", "entries", denylist.Len())

	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	adapters, err := provider.NewSet(ctx, cfg, provider.Options{Logger: log})
	if err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}

	hDeps := handlers.HandlerDeps{
		Logger: log,
		Config: cfg,
		Store:  store,
	}

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log,
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewDirectoryHandler(hDeps)),
	)
	if err != nil {
		return err
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	transport := telegram.NewTransport(tg, log)
	hDeps.Skills, err = skill.NewRegistry(cfg.Skills, adapters, skill.Deps{
		Ledger:    store,
		Filter:    denylist,
		Formatter: reply.NewFormatter(transport, store, log),
		Alerter:   handlers.NewRefundAlerter(store, transport, cfg, log),
		Messages:  cfg.Messages,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("failed to build skills: %w", err)
	}

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}
	if _, err := tg.SetMyCommands(ctx, &tgbot.SetMyCommandsParams{Commands: handlers.BotCommands(cmdHandlers)}); err != nil {
		log.Warn("Failed to publish command menu", "error", err)
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}))
	if err != nil {
		return err
	}

	app := bot.NewBot(log, cfg, store, tg, sched)
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		// Allow logs to flush before exiting.
		time.Sleep(time.Second)
		return runErr
	}

	log.Info("Bot stopped gracefully.")
	return nil
}
