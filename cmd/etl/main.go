package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gasparespejo/EFILabs/internal/adapter/csvout"
	"github.com/gasparespejo/EFILabs/internal/adapter/filesystem"
	ftpsource "github.com/gasparespejo/EFILabs/internal/adapter/ftp"
	"github.com/gasparespejo/EFILabs/internal/adapter/httpadapter"
	kafkaadapter "github.com/gasparespejo/EFILabs/internal/adapter/kafka"
	"github.com/gasparespejo/EFILabs/internal/adapter/sqlite"
	"github.com/gasparespejo/EFILabs/internal/adapter/tabular"
	"github.com/gasparespejo/EFILabs/internal/adapter/xlsx"
	"github.com/gasparespejo/EFILabs/internal/config"
	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/gasparespejo/EFILabs/internal/observability"
	"github.com/gasparespejo/EFILabs/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailed     = 1
	exitSinkFailed = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitFailed
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aliases, err := loadAliases(cfg.AliasFile)
	if err != nil {
		logger.Error("failed to load alias table", "path", cfg.AliasFile, "error", err)
		return exitFailed
	}

	loaders, closers, err := buildLoaders(ctx, cfg, logger)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}()
	if err != nil {
		logger.Error("failed to initialize sinks", "error", err)
		return exitFailed
	}

	p := pipeline.New(tabular.NewParser(), loaders, pipeline.Options{
		Aliases:          aliases,
		Metric:           cfg.MetricConfig(),
		Groupings:        cfg.Groupings,
		RankingTopN:      cfg.RankingTopN,
		Workers:          cfg.Workers,
		ReferenceOptimal: cfg.ReferenceOptimal,
	}, logger, metrics)

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, p, prometheus.DefaultGatherer, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	code := analyze(ctx, cfg, p, logger)

	if cfg.PushgatewayURL != "" {
		if err := observability.Push(ctx, cfg.PushgatewayURL, prometheus.DefaultGatherer); err != nil {
			logger.Error("metrics push failed", "url", cfg.PushgatewayURL, "error", err)
		}
	}

	if srv != nil {
		logger.Info("run complete, serving metrics until signaled", "addr", cfg.HTTPAddr)
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete", "exit_code", code)
	return code
}

func analyze(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) int {
	var sources []pipeline.Source
	if len(cfg.InputPaths) > 0 {
		sources = append(sources, filesystem.NewSource(cfg.InputPaths))
	}
	if cfg.FTPAddr != "" {
		sources = append(sources, ftpsource.NewSource(ftpsource.Config{
			Addr:     cfg.FTPAddr,
			User:     cfg.FTPUser,
			Password: cfg.FTPPassword,
			Dir:      cfg.FTPDir,
			Timeout:  cfg.FTPTimeout,
		}, logger))
	}

	files, err := pipeline.FetchAll(ctx, sources...)
	if err != nil {
		logger.Error("failed to read inputs", "error", err)
		return exitFailed
	}
	logger.Info("inputs read", "files", len(files))

	res, err := p.Run(ctx, files)
	switch {
	case res == nil || errors.Is(err, domain.ErrEmptyResult):
		logger.Error("analysis failed", "error", err)
		return exitFailed
	case err != nil:
		logger.Error("one or more sinks failed", "error", err)
		return exitSinkFailed
	}
	for _, rej := range res.Rejected {
		logger.Warn("input skipped", "file", rej.File, "reason", rej.Reason)
	}
	return exitOK
}

func loadAliases(path string) (domain.AliasTable, error) {
	base := domain.DefaultAliasTable()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return domain.LoadAliasTable(data, base)
}

type closer interface {
	Close() error
}

func buildLoaders(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]pipeline.Loader, []closer, error) {
	loaders := []pipeline.Loader{csvout.NewWriter(cfg.OutputDir, cfg.CSVBOM, logger)}
	var closers []closer

	if cfg.XLSXEnabled {
		loaders = append(loaders, xlsx.NewWriter(cfg.OutputDir, logger))
	}
	if len(cfg.KafkaBrokers) > 0 {
		w := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		loaders = append(loaders, w)
		closers = append(closers, w)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}
	if cfg.SQLitePath != "" {
		archive, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, closers, fmt.Errorf("open run archive: %w", err)
		}
		loaders = append(loaders, archive)
		closers = append(closers, archive)
		logger.Info("run archive enabled", "path", cfg.SQLitePath)
	}
	return loaders, closers, nil
}
