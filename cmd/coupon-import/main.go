// Command coupon-import loads partner coupon feeds into the coupons table.
//
// Each feed is a gzip-compressed CSV of code,discount,valid_from,valid_to
// rows. A code published by more than one feed is ambiguous and skipped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/IT-Gio/ShopElec/internal/domain/coupon"
	"github.com/IT-Gio/ShopElec/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		opts        options
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.capacity, "capacity", 10_000_000, "expected codes per feed, sizes the bloom filters")
	flag.Float64Var(&opts.fpr, "fpr", 0.001, "bloom filter false positive rate")
	flag.IntVar(&opts.batchSize, "batch", 1000, "coupons per upsert batch")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "parse and check feeds without writing")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] feed.csv.gz...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !opts.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, flag.Args(), opts); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, opts options) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := buildBloomFilters(ctx, files, opts)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding codes shared between feeds")
	shared, err := findSharedCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find shared codes")
	}
	slog.Info("shared codes found", slog.Int("count", len(shared)))

	write := func(context.Context, []coupon.Coupon) error { return nil }
	if !opts.dryRun {
		slog.Info("connecting to database")
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()
		write = postgres.NewCouponRepository(pool).Upsert
	}

	slog.Info("pass 3: importing coupons", slog.Bool("dry_run", opts.dryRun))
	stats, err := importFeeds(ctx, files, shared, opts.batchSize, write)
	if err != nil {
		return errors.Wrap(err, "import coupons")
	}
	slog.Info("import summary",
		slog.Int("imported", stats.imported),
		slog.Int("skipped_shared", stats.shared),
		slog.Int("rejected", stats.rejected),
	)
	return nil
}
