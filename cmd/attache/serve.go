package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lifeos-tools/attache/internal/dispatch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the briefing scheduler until interrupted",
	Long: `Composes the briefing on the configured cron schedule and prints it to
stdout. When briefing.webhook_url is set, the text is also POSTed there
as {"content": ...}, which Discord-compatible webhooks accept directly.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	emit := func() {
		// The parent ctx only cancels on shutdown; each run gets its
		// own deadline so a hung source cannot stall the schedule.
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		text, err := a.handler.Handle(runCtx, dispatch.Request{Action: dispatch.ActionGetBriefing})
		if err != nil {
			logger.Error("composing briefing", zap.Error(err))
			return
		}
		fmt.Println(text)

		if url := a.cfg.Briefing.WebhookURL; url != "" {
			if err := postWebhook(runCtx, http.DefaultClient, url, text); err != nil {
				logger.Error("delivering briefing", zap.String("url", url), zap.Error(err))
			}
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(a.cfg.Briefing.Cron, emit); err != nil {
		return fmt.Errorf("parsing briefing cron %q: %w", a.cfg.Briefing.Cron, err)
	}
	c.Start()
	logger.Info("briefing scheduler started", zap.String("cron", a.cfg.Briefing.Cron))

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop returns once any in-flight emit finishes.
	<-c.Stop().Done()
	return nil
}

func postWebhook(ctx context.Context, client *http.Client, url, text string) error {
	body, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %s: %s", resp.Status, msg)
	}
	return nil
}
