package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/icodeforyou/somenergia-go/types"
)

const DefaultFilePrefix = "prices_somenergia"

const fileMode fs.FileMode = 0644

var header = []string{"time", "price"}

// Time layouts accepted when reading. The second one is how pandas writes
// zone aware timestamps.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
}

// FileStore keeps one CSV file per day, named <prefix>_<YYYY-MM-DD>.csv.
type FileStore struct {
	logger *slog.Logger
	dir    string
	prefix string
	loc    *time.Location
}

func NewFileStore(dir, prefix string, loc *time.Location) *FileStore {
	if dir == "" {
		dir = "."
	}
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	if loc == nil {
		loc = time.UTC
	}
	return &FileStore{
		logger: slog.Default().With(slog.String("module", "store")),
		dir:    dir,
		prefix: prefix,
		loc:    loc,
	}
}

func (s *FileStore) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *FileStore) Identifier(key types.StoreKey) string {
	return filepath.Join(s.dir, s.fileName(key))
}

func (s *FileStore) fileName(key types.StoreKey) string {
	return fmt.Sprintf("%s_%s.csv", s.prefix, key.Date)
}

func (s *FileStore) Load(ctx context.Context, key types.StoreKey) (types.PriceSeries, error) {
	path := s.Identifier(key)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("no stored series", slog.String("path", path))
		return types.PriceSeries{}, nil
	}
	if err != nil {
		return nil, &types.StorageError{Key: key, Op: "open", Err: err}
	}
	defer f.Close()

	series, err := readSeries(f)
	if err != nil {
		return nil, &types.StorageError{Key: key, Op: "read", Err: fmt.Errorf("%s: %w", path, err)}
	}

	s.logger.Debug("loaded stored series", slog.String("path", path), slog.Int("points", len(series)))
	return series, nil
}

// Save writes to a temporary file next to the target and renames it, the
// target is never left half written.
func (s *FileStore) Save(ctx context.Context, key types.StoreKey, series types.PriceSeries) error {
	if err := ctx.Err(); err != nil {
		return &types.StorageError{Key: key, Op: "write", Err: err}
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return &types.StorageError{Key: key, Op: "write", Err: fmt.Errorf("create directory: %w", err)}
	}

	tmp, err := os.CreateTemp(s.dir, "."+s.fileName(key)+".*")
	if err != nil {
		return &types.StorageError{Key: key, Op: "write", Err: fmt.Errorf("create temp file: %w", err)}
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	// CreateTemp uses 0600
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return &types.StorageError{Key: key, Op: "write", Err: fmt.Errorf("chmod temp file: %w", err)}
	}
	if err := writeSeries(tmp, series, s.loc); err != nil {
		tmp.Close()
		return &types.StorageError{Key: key, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &types.StorageError{Key: key, Op: "write", Err: fmt.Errorf("close temp file: %w", err)}
	}

	path := s.Identifier(key)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &types.StorageError{Key: key, Op: "write", Err: fmt.Errorf("rename into place: %w", err)}
	}

	s.logger.Debug("saved series", slog.String("path", path), slog.Int("points", len(series)))
	return nil
}

// Purge deletes the files of days older than retentionDays before today.
func (s *FileStore) Purge(ctx context.Context, retentionDays int, today types.StoreKey) error {
	if retentionDays < 1 {
		return nil
	}
	oldest := today.AddDays(-retentionDays)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read store directory: %w", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, ok := s.keyFromFileName(entry.Name())
		if entry.IsDir() || !ok || !key.Before(oldest) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		s.logger.Debug("deleting old series", slog.String("path", path))
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old series '%s': %w", path, err)
		}
	}

	return nil
}

func (s *FileStore) keyFromFileName(name string) (types.StoreKey, bool) {
	rest, ok := strings.CutPrefix(name, s.prefix+"_")
	if !ok {
		return types.StoreKey{}, false
	}
	date, ok := strings.CutSuffix(rest, ".csv")
	if !ok {
		return types.StoreKey{}, false
	}
	key, err := types.ParseStoreKey(date)
	if err != nil {
		return types.StoreKey{}, false
	}
	return key, true
}

func readSeries(r io.Reader) (types.PriceSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	head, err := cr.Read()
	if err == io.EOF {
		return types.PriceSeries{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if err := validateHeader(head); err != nil {
		return nil, err
	}

	series := types.PriceSeries{}
	lineNum := 1
	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		p, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		series = append(series, p)
	}

	return series, nil
}

func validateHeader(head []string) error {
	for i, col := range header {
		got := strings.TrimSpace(strings.TrimPrefix(head[i], "\ufeff"))
		if got != col {
			return fmt.Errorf("expected column %d to be %q, got %q", i, col, head[i])
		}
	}
	return nil
}

func parseRecord(record []string) (types.PricePoint, error) {
	t, err := parseTime(strings.TrimSpace(record[0]))
	if err != nil {
		return types.PricePoint{}, err
	}
	price, err := parsePrice(strings.TrimSpace(record[1]))
	if err != nil {
		return types.PricePoint{}, err
	}
	return types.PricePoint{Time: t, Price: price}, nil
}

func parseTime(str string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", str)
}

func parsePrice(str string) (decimal.NullDecimal, error) {
	switch strings.ToLower(str) {
	case "", "nan", "none", "null":
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid price %q: %w", str, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func writeSeries(w io.Writer, series types.PriceSeries, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, p := range series {
		price := ""
		if p.Price.Valid {
			price = p.Price.Decimal.String()
		}
		if err := cw.Write([]string{p.Time.In(loc).Format(time.RFC3339), price}); err != nil {
			return fmt.Errorf("writing CSV record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
