// Package app wires the daily scan run: load the watchlist, fetch history,
// compute signals, render and write the reports, then mail them.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dailyscan/internal/common"
	"github.com/ternarybob/dailyscan/internal/marketdata"
	"github.com/ternarybob/dailyscan/internal/services/mailer"
	"github.com/ternarybob/dailyscan/internal/services/report"
	"github.com/ternarybob/dailyscan/internal/signals"
	"github.com/ternarybob/dailyscan/internal/watchlist"
)

// ErrorFileName is written to the output directory when a run fails.
const ErrorFileName = "error.txt"

// App holds the components of one scan run
type App struct {
	Config   *common.Config
	Logger   arbor.ILogger
	Provider marketdata.Provider
	Computer *signals.ScanComputer
	Reports  *report.Service
	Mailer   *mailer.Service
	DryRun   bool

	mailOpts []mailer.Option
	now      func() time.Time
}

// RunResult describes a finished run
type RunResult struct {
	RunID     string
	StartedAt time.Time // In the report time zone
	Rows      []signals.Row
	Files     []report.File
	Failed    int // Tickers that produced an error note
	Mailed    bool
	ErrorFile string // Set when the run failed and error.txt was written
}

// Option configures the App
type Option func(*App)

// WithProvider replaces the provider selected by config
func WithProvider(p marketdata.Provider) Option {
	return func(a *App) {
		a.Provider = p
	}
}

// WithMailTransport replaces the SMTP transport
func WithMailTransport(t mailer.Transport) Option {
	return func(a *App) {
		a.mailOpts = append(a.mailOpts, mailer.WithTransport(t))
	}
}

// WithClock sets the time source for the run timestamp and fetch window
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// WithDryRun writes the reports without sending mail. Mail settings are not
// validated.
func WithDryRun(dryRun bool) Option {
	return func(a *App) {
		a.DryRun = dryRun
	}
}

// New validates the configuration and builds the run components. Invalid or
// missing settings are returned as *common.ConfigError before anything
// touches the network.
func New(cfg *common.Config, logger arbor.ILogger, opts ...Option) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Computer: signals.NewScanComputer(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := cfg.Validate(!a.DryRun); err != nil {
		return nil, err
	}

	if a.Provider == nil {
		provider, err := marketdata.NewProvider(cfg.Provider, logger)
		if err != nil {
			return nil, err
		}
		a.Provider = provider
	}

	a.mailOpts = append(a.mailOpts, mailer.WithClock(a.now))
	a.Reports = report.NewService(logger, cfg.Report)
	a.Mailer = mailer.NewService(cfg.SMTP, logger, a.mailOpts...)

	logger.Debug().
		Str("provider", a.Provider.Name()).
		Str("tickers_file", cfg.Tickers.File).
		Str("output_dir", cfg.Report.OutputDir).
		Bool("dry_run", a.DryRun).
		Msg("Application initialized")

	return a, nil
}

// Run performs one scan. Per-ticker fetch failures become error notes in
// the report and never fail the run. A config error aborts before any
// fetch; a mail error is returned as *common.MailError. Any other failure
// writes error.txt and, unless this is a dry run, mails it to the
// recipients before being returned.
func (a *App) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	runID := common.NewRunID()
	logger := a.Logger.WithCorrelationId(runID)

	result := &RunResult{
		RunID:     runID,
		StartedAt: a.now().In(a.Config.Report.Location()),
	}

	logger.Info().
		Str("provider", a.Provider.Name()).
		Str("started_at", result.StartedAt.Format(time.RFC3339)).
		Msg("Scan started")

	tickers, err := watchlist.Load(a.Config.Tickers.File)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load ticker list")
		return result, err
	}

	err = common.SafeCall(logger, "scan", func() error {
		return a.scan(ctx, logger, tickers, result)
	})
	if err == nil {
		logger.Info().
			Int("tickers", len(result.Rows)).
			Int("failed", result.Failed).
			Bool("mailed", result.Mailed).
			Dur("duration", time.Since(started)).
			Msg("Scan completed")
		return result, nil
	}

	var mailErr *common.MailError
	if errors.As(err, &mailErr) {
		logger.Error().Err(err).Msg("Failed to mail report")
		return result, err
	}

	logger.Error().Err(err).Msg("Scan failed")
	a.reportFailure(ctx, logger, result, err)
	return result, err
}

func (a *App) scan(ctx context.Context, logger arbor.ILogger, tickers []common.Ticker, result *RunResult) error {
	fetcher := marketdata.NewFetcher(a.Provider, logger,
		marketdata.WithTimeout(a.Config.Provider.FetchTimeout()),
		marketdata.WithConcurrency(a.Config.Provider.Concurrency),
		marketdata.WithHistoryDays(a.Config.Provider.HistoryDays),
		marketdata.WithClock(a.now),
	)

	fetched := fetcher.FetchAll(ctx, tickers)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scan cancelled: %w", err)
	}

	result.Rows = make([]signals.Row, len(fetched))
	for i, r := range fetched {
		symbol := r.Ticker.String()
		if !r.OK() {
			result.Rows[i] = signals.ErrorRow(symbol, r.Err)
			result.Failed++
			continue
		}

		row, err := a.Computer.Compute(symbol, r.Bars)
		if err != nil {
			logger.Warn().Err(err).Str("ticker", symbol).Int("bars", len(r.Bars)).Msg("Signals not computed")
			result.Failed++
		}
		result.Rows[i] = row
	}

	in := report.Input{
		Title:       a.Config.Report.Title,
		Rows:        result.Rows,
		GeneratedAt: result.StartedAt,
		Provider:    a.Provider.Name(),
	}

	artifacts, err := a.Reports.Render(in)
	if err != nil {
		return err
	}

	result.Files, err = report.WriteFiles(a.Config.Report.OutputDir, artifacts, result.StartedAt)
	if err != nil {
		return err
	}
	for _, f := range result.Files {
		logger.Info().Str("path", f.Path).Int("size", len(f.Data)).Msg("Report written")
	}

	if a.DryRun {
		logger.Info().Msg("Dry run, email not sent")
		return nil
	}

	body, err := a.Reports.Body(in, report.Names(result.Files))
	if err != nil {
		return err
	}

	msg := mailer.Message{
		Subject:     mailer.Subject(a.Config.Report.Subject, result.StartedAt),
		HTML:        body,
		Text:        a.Reports.PlainText(body),
		Attachments: attachments(result.Files),
	}
	if err := a.Mailer.Send(ctx, msg); err != nil {
		return err
	}
	result.Mailed = true
	return nil
}

// reportFailure writes error.txt and mails it. Both are best effort: the
// run still returns cause. The mail is sent on a fresh deadline so a run
// that timed out or was interrupted still gets its notification out.
func (a *App) reportFailure(ctx context.Context, logger arbor.ILogger, result *RunResult, cause error) {
	content := FailureReport(result.RunID, result.StartedAt, cause)

	dir := a.Config.Report.OutputDir
	path := filepath.Join(dir, ErrorFileName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error().Err(err).Str("dir", dir).Msg("Failed to create output directory")
	} else if err := os.WriteFile(path, content, 0644); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to write error file")
	} else {
		result.ErrorFile = path
		logger.Info().Str("path", path).Msg("Error file written")
	}

	if a.DryRun {
		return
	}

	msg := mailer.Message{
		Subject: mailer.Subject(a.Config.Report.Subject+" FAILED", result.StartedAt),
		Text:    string(content),
		Attachments: []mailer.Attachment{
			{Filename: ErrorFileName, ContentType: "text/plain; charset=utf-8", Content: content},
		},
	}
	mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.SMTP.DialTimeout())
	defer cancel()
	if err := a.Mailer.Send(mailCtx, msg); err != nil {
		logger.Error().Err(err).Msg("Failed to send failure email")
		return
	}
	result.Mailed = true
}

// FailureReport formats the error.txt contents
func FailureReport(runID string, at time.Time, cause error) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Time: %s\n", at.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Run: %s\n", runID)
	fmt.Fprintf(&sb, "Error: %v\n", cause)

	var panicErr *common.PanicError
	if errors.As(cause, &panicErr) && panicErr.Stack != "" {
		sb.WriteString("\n")
		sb.WriteString(panicErr.Stack)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

func attachments(files []report.File) []mailer.Attachment {
	out := make([]mailer.Attachment, len(files))
	for i, f := range files {
		out[i] = mailer.Attachment{Filename: f.Name, ContentType: f.ContentType, Content: f.Data}
	}
	return out
}
