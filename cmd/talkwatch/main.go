// Command talkwatch is the talk-page observation daemon.
//
// Usage:
//
//	talkwatch -config talkwatch.yaml        # watch pages from YAML config
//	talkwatch -api <api.php URL> -page <title>  # one-shot check of a single page
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jwbth/talkpage/talkwatch"
)

func main() {
	configPath := flag.String("config", "", "path to talkwatch.yaml config file")
	apiEndpoint := flag.String("api", "", "wiki api.php endpoint (one-shot mode)")
	singlePage := flag.String("page", "", "check a single page and exit")
	dbPath := flag.String("db", "", "override database path")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *apiEndpoint, *singlePage, *dbPath); err != nil {
		logger.Error("talkwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, apiEndpoint, singlePage, dbPath string) error {
	if singlePage != "" {
		return runSingle(ctx, logger, apiEndpoint, singlePage, dbPath)
	}
	if configPath != "" {
		return runConfig(ctx, logger, configPath, dbPath)
	}

	fmt.Fprintln(os.Stderr, "usage: talkwatch -config <file> | -api <url> -page <title>")
	os.Exit(1)
	return nil
}

func runSingle(ctx context.Context, logger *slog.Logger, apiEndpoint, page, dbPath string) error {
	if apiEndpoint == "" {
		return errors.New("one-shot mode needs -api")
	}
	cfg := &talkwatch.Config{
		DB:    dbPath,
		Pages: []string{page},
		API:   talkwatch.APIConfig{Endpoint: apiEndpoint},
	}
	if cfg.DB == "" {
		cfg.DB = "talkwatch.db"
	}
	cfg.Poll = time.Hour

	w, err := talkwatch.New(cfg, logger, talkwatch.NewStdoutSink(nil))
	if err != nil {
		return err
	}
	defer w.Stop()

	report, err := w.CheckPage(ctx, page)
	if err != nil {
		return fmt.Errorf("check %q: %w", page, err)
	}
	data, _ := json.Marshal(report)
	os.Stdout.Write(data)
	os.Stdout.Write([]byte("\n"))
	return nil
}

func runConfig(ctx context.Context, logger *slog.Logger, path, dbPath string) error {
	cfg, err := talkwatch.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}

	var sinks []talkwatch.Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, talkwatch.NewStdoutSink(nil))
		case "webhook":
			sinks = append(sinks, talkwatch.NewWebhookSink(sc.URL, logger))
		default:
			logger.Warn("talkwatch: unknown sink type", "type", sc.Type)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, talkwatch.NewStdoutSink(nil))
	}

	w, err := talkwatch.New(cfg, logger, sinks...)
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: w.Routes()}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("talkwatch: http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
	return nil
}
