package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/IT-Gio/ShopElec/internal/domain/coupon"
)

const progressEvery = 1_000_000

type options struct {
	capacity  uint
	fpr       float64
	batchSize int
	dryRun    bool
}

type importStats struct {
	imported int
	shared   int
	rejected int
}

// row is one parsed feed line. Codes are normalized to upper case.
type row struct {
	coupon coupon.Coupon
	err    error
}

// parseRow parses code,discount,valid_from,valid_to. Dates are RFC 3339 or
// YYYY-MM-DD; a bare date as valid_to covers the whole day.
func parseRow(rec []string) (coupon.Coupon, error) {
	if len(rec) < 4 {
		return coupon.Coupon{}, errors.Errorf("expected 4 fields, got %d", len(rec))
	}
	code := strings.ToUpper(strings.TrimSpace(rec[0]))
	if code == "" {
		return coupon.Coupon{}, errors.New("empty code")
	}
	pct, err := decimal.NewFromString(strings.TrimSpace(rec[1]))
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "discount")
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return coupon.Coupon{}, errors.Errorf("discount %s out of range", pct)
	}
	from, _, err := parseDate(rec[2])
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "valid_from")
	}
	to, dateOnly, err := parseDate(rec[3])
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "valid_to")
	}
	if dateOnly {
		to = to.Add(24*time.Hour - time.Second)
	}
	if to.Before(from) {
		return coupon.Coupon{}, errors.New("valid_to before valid_from")
	}
	return coupon.Coupon{Code: code, Percent: pct, ValidFrom: from, ValidTo: to, Active: true}, nil
}

func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	return t.UTC(), false, err
}

// streamFeed calls fn for every data row of a gzip CSV feed, skipping an
// optional header.
func streamFeed(ctx context.Context, path string, fn func(r row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
			continue
		}
		c, err := parseRow(rec)
		if err != nil {
			err = errors.Wrapf(err, "%s:%d", path, line)
		}
		if err := fn(row{coupon: c, err: err}); err != nil {
			return err
		}
	}
}

// buildBloomFilters creates one bloom filter of codes per feed, concurrently.
func buildBloomFilters(ctx context.Context, files []string, opts options) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(opts.capacity, opts.fpr)
			var count uint64
			if err := streamFeed(ctx, path, func(r row) error {
				if r.err != nil {
					return nil
				}
				filter.AddString(r.coupon.Code)
				if count++; count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Uint64("codes", count))
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			slog.Info("pass 1 complete", slog.String("file", path), slog.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findSharedCodes returns the codes present in two or more feeds. Bloom hits
// only nominate candidates: a code counts for a feed when the feed actually
// contains it, so false positives never make a code shared.
func findSharedCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	candidates := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			found := make(map[string]uint)
			fileBit := uint(1) << uint(i)
			if err := streamFeed(ctx, path, func(r row) error {
				if r.err != nil {
					return nil
				}
				for j, f := range filters {
					if j != i && f.TestString(r.coupon.Code) {
						found[r.coupon.Code] |= fileBit
						break
					}
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "scan %s for shared codes", path)
			}
			candidates[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, found := range candidates {
		for code, mask := range found {
			merged[code] |= mask
		}
	}
	shared := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			shared[code] = struct{}{}
		}
	}
	return shared, nil
}

// importFeeds writes every valid, unshared coupon in batches.
func importFeeds(
	ctx context.Context,
	files []string,
	shared map[string]struct{},
	batchSize int,
	write func(context.Context, []coupon.Coupon) error,
) (importStats, error) {
	var (
		stats importStats
		batch []coupon.Coupon
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := write(ctx, batch); err != nil {
			return err
		}
		stats.imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, path := range files {
		if err := streamFeed(ctx, path, func(r row) error {
			if r.err != nil {
				stats.rejected++
				slog.Warn("rejected row", slog.String("error", r.err.Error()))
				return nil
			}
			if _, ok := shared[r.coupon.Code]; ok {
				stats.shared++
				return nil
			}
			batch = append(batch, r.coupon)
			if len(batch) >= batchSize {
				return flush()
			}
			return nil
		}); err != nil {
			return stats, err
		}
	}
	return stats, flush()
}
