package main

import (
	"bufio"
	"context"
	"os"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pos-settlement/internal/domain/catalog"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.000001
	maxLineBytes  = 1 << 20
	progressEvery = 100_000
)

// dedup drops product ids already seen in any file. A bloom false positive
// skips a genuine product at a rate of bloomFPR.
type dedup struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

func newDedup() *dedup {
	return &dedup{filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR)}
}

// first reports whether id has not been seen before and records it.
func (d *dedup) first(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.filter.TestAndAddString(id)
}

func decodeContainer(d *jx.Decoder) (catalog.ContainerLink, error) {
	var (
		l        catalog.ContainerLink
		tracking *bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "container_id":
			l.ContainerID, err = d.Str()
		case "ratio":
			l.Ratio, err = d.Int()
		case "deposit_price":
			l.DepositPrice, err = decodeDecimal(d)
		case "track_stock":
			var v bool
			v, err = d.Bool()
			tracking = &v
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return l, err
	}
	// Containers without a deposit are not stock items unless stated.
	l.TrackStock = l.DepositPrice.IsPositive()
	if tracking != nil {
		l.TrackStock = *tracking
	}
	return l, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

// decodeProduct parses one JSONL catalog line.
func decodeProduct(line []byte, companyID string) (catalog.Product, error) {
	p := catalog.Product{CompanyID: companyID}
	err := jx.DecodeBytes(line).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "stock":
			p.StockQuantity, err = d.Int()
		case "containers":
			err = d.Arr(func(d *jx.Decoder) error {
				l, err := decodeContainer(d)
				if err != nil {
					return err
				}
				p.Containers = append(p.Containers, l)
				return nil
			})
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, errors.New("product id is required")
	}
	return p, nil
}

// readFile streams a gzip-compressed JSONL file and returns the products
// whose ids were not seen before.
func readFile(ctx context.Context, lg *zap.Logger, path, companyID string, seen *dedup) ([]catalog.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var (
		products []catalog.Product
		lineNo   int
		skipped  int
	)
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		p, err := decodeProduct(line, companyID)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, lineNo)
		}
		if !seen.first(p.ID) {
			skipped++
			continue
		}
		products = append(products, p)

		if lineNo%progressEvery == 0 {
			lg.Info("Read progress", zap.String("file", path), zap.Int("lines", lineNo))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan %s", path)
	}

	lg.Info("File read",
		zap.String("file", path),
		zap.Int("products", len(products)),
		zap.Int("duplicates", skipped),
	)
	return products, nil
}

// readCatalog reads all files concurrently.
func readCatalog(ctx context.Context, lg *zap.Logger, files []string, companyID string) ([]catalog.Product, error) {
	results := make([][]catalog.Product, len(files))
	seen := newDedup()

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			products, err := readFile(ctx, lg, path, companyID, seen)
			if err != nil {
				return err
			}
			results[i] = products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []catalog.Product
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// upserter stores a batch of products.
type upserter interface {
	Upsert(ctx context.Context, products []catalog.Product) error
}

// writeCatalog stores products without their containers first, so that
// container links only reference rows that already exist.
func writeCatalog(ctx context.Context, lg *zap.Logger, repo upserter, products []catalog.Product, batchSize int) error {
	bare := make([]catalog.Product, len(products))
	var linked []catalog.Product
	for i, p := range products {
		if len(p.Containers) > 0 {
			linked = append(linked, p)
		}
		p.Containers = nil
		bare[i] = p
	}

	for _, pass := range [][]catalog.Product{bare, linked} {
		for start := 0; start < len(pass); start += batchSize {
			end := min(start+batchSize, len(pass))
			if err := repo.Upsert(ctx, pass[start:end]); err != nil {
				return errors.Wrapf(err, "upsert products %d..%d", start, end)
			}
		}
	}

	lg.Info("Catalog written",
		zap.Int("products", len(products)),
		zap.Int("with_containers", len(linked)),
	)
	return nil
}
