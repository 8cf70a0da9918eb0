// Command glpi-notify is a CheckMK notification script that opens a GLPI
// ticket when a service goes WARNING or CRITICAL and solves it on OK.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/hamed0406/checkmk-notify/internal/alerting"
	"github.com/hamed0406/checkmk-notify/internal/config"
	"github.com/hamed0406/checkmk-notify/internal/domain"
	"github.com/hamed0406/checkmk-notify/internal/glpi"
	"github.com/hamed0406/checkmk-notify/internal/logging"
	"github.com/hamed0406/checkmk-notify/internal/repo/backend"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ValidateTicketing(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogDir, "glpi-notify")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	res, err := run(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("ticket_update_failed", zap.String("fingerprint", res.Fingerprint), zap.Error(err))
		_ = logger.Sync()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	switch res.Action {
	case alerting.Created:
		fmt.Printf("Created ticket %d for %s\n", res.TicketID, res.Fingerprint)
	case alerting.Closed:
		fmt.Printf("Closed ticket %d for %s\n", res.TicketID, res.Fingerprint)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (alerting.Result, error) {
	store, closeStore, err := backend.Open(ctx, cfg, backend.GLPI, logger)
	if err != nil {
		return alerting.Result{}, err
	}
	defer closeStore()

	client := glpi.New(cfg.APIURL, cfg.AppToken, cfg.UserToken, cfg.HTTPTimeout())
	client.CategoryID = cfg.CategoryID

	tickets := alerting.NewTickets(store, alerting.GLPISessions(client), alerting.TicketsConfig{
		LockTimeout:  cfg.LockTimeout(),
		CloseTimeout: cfg.HTTPTimeout(),
	}, logger)

	res, err := tickets.Handle(ctx, domain.EventFromEnv())
	if err != nil {
		return res, err
	}
	logger.Info("done", zap.String("fingerprint", res.Fingerprint), zap.Stringer("action", res.Action), zap.Int("ticket", res.TicketID))
	return res, nil
}
