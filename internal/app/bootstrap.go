// Package app assembles the store, collectors and pipeline from configuration.
// It is shared by the HTTP server and the buyerscan CLI.
package app

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/octobees/turmeric-buyers/internal/config"
	"github.com/octobees/turmeric-buyers/internal/database"
	"github.com/octobees/turmeric-buyers/internal/repository"
	"github.com/octobees/turmeric-buyers/internal/service"
	"github.com/octobees/turmeric-buyers/internal/source"
)

// OpenStore connects the configured backend and migrates it. The returned
// func releases the connection.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (repository.BuyersRepository, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewPGXBuyersRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	case "sqlite", "":
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewSQLiteBuyersRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, func() { db.Close() }, nil
	default:
		return nil, nil, eris.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Collectors builds the configured sources. client is used for directory
// pages; the worker collector picks its own client.
func Collectors(cfg config.CollectConfig, client *http.Client) ([]source.Collector, error) {
	var collectors []source.Collector
	var pageClient source.HTTPClient
	if client != nil {
		pageClient = client
	}

	if cfg.CSVPath != "" {
		collectors = append(collectors, source.CSVCollector{Path: cfg.CSVPath})
	}
	if cfg.XLSXPath != "" {
		collectors = append(collectors, source.XLSXCollector{Path: cfg.XLSXPath})
	}

	if !cfg.DisableDirectories {
		directories := source.DefaultDirectories
		if len(cfg.DirectoryURLs) > 0 {
			directories = make([]source.Directory, 0, len(cfg.DirectoryURLs))
			for _, u := range cfg.DirectoryURLs {
				directories = append(directories, source.GenericDirectory(u))
			}
		}
		for _, d := range directories {
			collectors = append(collectors, source.NewHTMLCollector(d, pageClient))
		}
	}

	if cfg.WorkerBaseURL != "" {
		wc, err := source.NewWorkerCollector(nil, cfg.WorkerBaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "worker collector")
		}
		collectors = append(collectors, wc)
	}

	names := make([]string, 0, len(collectors))
	for _, c := range collectors {
		names = append(names, c.Name())
	}
	zap.L().Info("collectors configured", zap.Strings("collectors", names))
	return collectors, nil
}

// MultiCollector wraps collectors with the configured per-term and total caps.
// It returns nil when there is nothing to collect from.
func MultiCollector(cfg config.CollectConfig, collectors []source.Collector) service.TermCollector {
	if len(collectors) == 0 {
		return nil
	}
	return &source.MultiCollector{
		Collectors: collectors,
		MaxPerTerm: cfg.MaxPerTerm,
		Target:     cfg.Target,
	}
}

// Pipeline builds the validation pipeline from configuration.
func Pipeline(cfg *config.Config) (*service.Pipeline, error) {
	pc, err := cfg.PipelineConfig()
	if err != nil {
		return nil, err
	}
	return service.NewPipeline(pc)
}
