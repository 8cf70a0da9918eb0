// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/checkmk-notify/internal/config"
	"github.com/hamed0406/checkmk-notify/internal/probe"
	"github.com/hamed0406/checkmk-notify/internal/repo/backend"
)

func main() {
	fatal := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		fatal = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load()
	if err != nil {
		fail(err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	checks := probe.NewMultiChecker(probe.NewDNSChecker(), probe.NewHTTPChecker(cfg.HTTPTimeout()))
	reach := func(label, target string) {
		for _, r := range checks.Run(ctx, target) {
			line := fmt.Sprintf("%s %s: %s", label, r.Name, r.Message)
			if r.Success {
				ok(line)
			} else {
				warn(line)
			}
		}
	}
	state := func(ns backend.Namespace) {
		store, closeStore, err := backend.Open(ctx, cfg, ns, zap.NewNop())
		if err != nil {
			fail(fmt.Sprintf("%s state (%s): %v", ns.Name, cfg.StateBackend, err))
			return
		}
		defer closeStore()
		entries, err := store.List(ctx)
		if err != nil {
			fail(fmt.Sprintf("%s state unreadable: %v", ns.Name, err))
			return
		}
		ok(fmt.Sprintf("%s state readable (%s, %d entries)", ns.Name, cfg.StateBackend, len(entries)))
	}

	chat := len(cfg.WebhookURLs) > 0
	tickets := cfg.APIURL != ""
	if !chat && !tickets {
		fail("neither DISCORD_WEBHOOK_URL nor GLPI_API_URL is set; nothing to check.")
		os.Exit(1)
	}

	if chat {
		if err := cfg.ValidateChat(); err != nil {
			for _, e := range multierr.Errors(err) {
				fail("discord: " + e.Error())
			}
		} else {
			ok(fmt.Sprintf("discord: %d webhook(s), dedup window %s", len(cfg.WebhookURLs), cfg.DedupWindow()))
			for i, u := range cfg.WebhookURLs {
				reach(fmt.Sprintf("webhook #%d", i+1), u)
			}
			state(backend.Discord)
		}
	} else {
		warn("DISCORD_WEBHOOK_URL empty; discord-notify will refuse to run.")
	}

	if tickets {
		if err := cfg.ValidateTicketing(); err != nil {
			for _, e := range multierr.Errors(err) {
				fail("glpi: " + e.Error())
			}
		} else {
			ok(fmt.Sprintf("glpi: %s (category %d)", cfg.APIURL, cfg.CategoryID))
			reach("glpi", cfg.APIURL)
			state(backend.GLPI)
		}
	} else {
		warn("GLPI_API_URL empty; glpi-notify will refuse to run.")
	}

	if fatal {
		os.Exit(1)
	}
	ok("preflight passed")
}
