// Command discord-notify is a CheckMK notification script that posts the
// event in NOTIFY_* variables to one or more Discord webhooks.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hamed0406/checkmk-notify/internal/alerting"
	"github.com/hamed0406/checkmk-notify/internal/config"
	"github.com/hamed0406/checkmk-notify/internal/domain"
	"github.com/hamed0406/checkmk-notify/internal/logging"
	"github.com/hamed0406/checkmk-notify/internal/notify"
	"github.com/hamed0406/checkmk-notify/internal/repo/backend"
)

func main() {
	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		cfg = config.FromEnv()
	}

	errlog, err := logging.NewErrorLog(cfg.ErrorLogPath())
	if err != nil {
		log.Fatal(err)
	}
	defer errlog.Sync()

	if cfgErr == nil {
		cfgErr = cfg.ValidateChat()
	}
	if cfgErr != nil {
		fail(errlog, fmt.Errorf("config: %w", cfgErr))
	}

	logger, err := logging.NewLogger(cfg.LogDir, "discord-notify")
	if err != nil {
		fail(errlog, err)
	}
	defer logger.Sync()

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("notification_failed", zap.Error(err))
		_ = logger.Sync()
		fail(errlog, err)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, closeStore, err := backend.Open(ctx, cfg, backend.Discord, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var targets notify.Multi
	for _, u := range cfg.WebhookURLs {
		if d := notify.NewDiscord(u, cfg.HTTPTimeout()); d != nil {
			targets = append(targets, d)
		}
	}

	chat := alerting.NewChat(store, targets, alerting.ChatConfig{
		Window:      cfg.DedupWindow(),
		LockTimeout: cfg.LockTimeout(),
	}, logger)

	out, err := chat.Handle(ctx, domain.EventFromEnv())
	if err != nil {
		return err
	}
	logger.Info("done", zap.Stringer("outcome", out))
	return nil
}

func fail(errlog *zap.Logger, err error) {
	errlog.Error("notification failed", zap.Error(err))
	_ = errlog.Sync()
	fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(os.Args[0]), err)
	os.Exit(1)
}
