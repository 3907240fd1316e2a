package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendly/internal/amqp"
	"spendly/internal/cli"
	"spendly/internal/config"
	"spendly/internal/log"
	gsheet "spendly/internal/sheets/google"
	"spendly/internal/storage"
	"spendly/internal/worker"
)

func main() {
	resyncUser := flag.String("resync", "", "export every stored expense of this user and exit")
	flag.Parse()

	cfg, logger := cli.Bootstrap(log.ComponentWorker, (*config.Config).ValidateWorker)
	logger.Info("Starting spendly-worker")

	if err := run(cfg, logger, *resyncUser); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger, resyncUser string) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	credentials, err := cfg.ServiceAccountJSON()
	if err != nil {
		return err
	}
	exporter, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, credentials,
		gsheet.WithLocation(cfg.Location()),
		gsheet.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	// Only the SQLite file is shared with the server; in memory mode the
	// worker exports message payloads as they are.
	var store storage.ExpenseStore
	if cfg.DataBackend == config.BackendSQLite {
		repo, err := cli.OpenStore(cfg, logger)
		if err != nil {
			return err
		}
		defer repo.Close()
		store = repo
	}

	syncWorker := worker.NewSyncWorker(exporter, store, logger)

	if resyncUser != "" {
		synced, err := syncWorker.Resync(ctx, resyncUser)
		logger.Info("Resync finished", "synced", synced)
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeExpenseChanges(gctx, syncWorker.Handle)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				st := syncWorker.Stats()
				logger.Debug("Worker stats",
					"exported", st.Exported,
					"removed", st.Removed,
					"discarded", st.Discarded,
					"failed", st.Failed)
			}
		}
	})

	err = g.Wait()
	st := syncWorker.Stats()
	logger.Info("Worker stopped",
		"exported", st.Exported,
		"removed", st.Removed,
		"discarded", st.Discarded,
		"failed", st.Failed)
	return err
}
