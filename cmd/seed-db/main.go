package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/barflow/barflow/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		seedFile    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "", "path to a bars JSON file, optionally .gz; the embedded fixture when empty")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("BARFLOW_DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url, BARFLOW_DATABASE_URL or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedFile string) error {
	data, err := readSeed(seedFile)
	if err != nil {
		return err
	}
	bars, err := parseSeed(data)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	seeder := postgres.NewSeeder(pool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, b := range bars {
		g.Go(func() error {
			if err := seeder.SeedBar(gctx, &b.bar, b.drinks, b.orders); err != nil {
				return err
			}
			slog.Info("upserted bar",
				slog.String("slug", b.bar.Slug),
				slog.Int("drinks", len(b.drinks)),
				slog.Int("orders", len(b.orders)),
			)
			return nil
		})
	}
	return g.Wait()
}
