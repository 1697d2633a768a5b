// Package parquet persists medallion tiers as timestamped snapshots under a
// data directory. Bronze snapshots hold the raw JSON payload; every other
// tier is a Parquet file.
package parquet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/rain-forecast-etl/internal/config"
	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go-source/local"
	goparquet "github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// ErrNoSnapshot is returned when a tier has no snapshot yet.
var ErrNoSnapshot = errors.New("no snapshot")

// Store reads and writes tier snapshots beneath a root directory.
type Store struct {
	root  string
	codec goparquet.CompressionCodec
}

// NewStore returns a Store rooted at dir. Compression is one of the
// config.Compression* values.
func NewStore(dir, compression string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	codec, err := compressionCodec(compression)
	if err != nil {
		return nil, err
	}
	return &Store{root: dir, codec: codec}, nil
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

func (s *Store) path(tier domain.Tier, tag string) string {
	return filepath.Join(s.root, string(tier), fmt.Sprintf("%s_%s%s", tier, tag, extension(tier)))
}

func extension(tier domain.Tier) string {
	if tier == domain.TierBronze {
		return ".json"
	}
	return ".parquet"
}

// List returns the snapshots of a tier ordered oldest first.
func (s *Store) List(tier domain.Tier) ([]domain.Snapshot, error) {
	dir := filepath.Join(s.root, string(tier))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s snapshots: %w", tier, err)
	}

	prefix, ext := string(tier)+"_", extension(tier)
	var out []domain.Snapshot
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		tag := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
		out = append(out, domain.Snapshot{Tier: tier, Tag: tag, Path: filepath.Join(dir, name)})
	}
	slices.SortFunc(out, func(a, b domain.Snapshot) int { return strings.Compare(a.Tag, b.Tag) })
	return out, nil
}

// Latest returns the most recent snapshot of a tier, or ErrNoSnapshot.
func (s *Store) Latest(tier domain.Tier) (domain.Snapshot, error) {
	snaps, err := s.List(tier)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(snaps) == 0 {
		return domain.Snapshot{}, fmt.Errorf("latest %s: %w", tier, ErrNoSnapshot)
	}
	return snaps[len(snaps)-1], nil
}

// WriteBronze stores a raw payload verbatim.
func (s *Store) WriteBronze(tag string, payload []byte) (domain.Snapshot, error) {
	snap := domain.Snapshot{Tier: domain.TierBronze, Tag: tag, Path: s.path(domain.TierBronze, tag)}
	err := atomicWrite(snap.Path, func(tmp string) error {
		return os.WriteFile(tmp, payload, 0o644)
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("write bronze snapshot: %w", err)
	}
	return snap, nil
}

// ReadBronze returns the raw payload of a bronze snapshot.
func (s *Store) ReadBronze(snap domain.Snapshot) ([]byte, error) {
	data, err := os.ReadFile(snap.Path)
	if err != nil {
		return nil, fmt.Errorf("read bronze snapshot: %w", err)
	}
	return data, nil
}

// WriteSilver persists a normalized table.
func (s *Store) WriteSilver(tag string, table domain.NormalizedTable) (domain.Snapshot, error) {
	return writeTier(s, domain.TierSilver, tag, toSilverRecords(table))
}

// ReadSilver loads a silver snapshot.
func (s *Store) ReadSilver(snap domain.Snapshot) (domain.NormalizedTable, error) {
	records, err := readParquet[silverRecord](snap.Path)
	if err != nil {
		return domain.NormalizedTable{}, fmt.Errorf("read silver snapshot: %w", err)
	}
	return fromSilverRecords(records), nil
}

// WriteGoldHourly persists the labeled hourly table.
func (s *Store) WriteGoldHourly(tag string, table domain.LabeledTable) (domain.Snapshot, error) {
	return writeTier(s, domain.TierGoldHourly, tag, toGoldHourlyRecords(table))
}

// ReadGoldHourly loads a gold-hourly snapshot.
func (s *Store) ReadGoldHourly(snap domain.Snapshot) (domain.LabeledTable, error) {
	records, err := readParquet[goldHourlyRecord](snap.Path)
	if err != nil {
		return domain.LabeledTable{}, fmt.Errorf("read gold-hourly snapshot: %w", err)
	}
	return fromGoldHourlyRecords(records), nil
}

// WriteGoldDaily persists the daily aggregates.
func (s *Store) WriteGoldDaily(tag string, table domain.DailyTable) (domain.Snapshot, error) {
	return writeTier(s, domain.TierGoldDaily, tag, toDailyRecords(table))
}

// ReadGoldDaily loads a gold-daily snapshot.
func (s *Store) ReadGoldDaily(snap domain.Snapshot) (domain.DailyTable, error) {
	records, err := readParquet[dailyRecord](snap.Path)
	if err != nil {
		return domain.DailyTable{}, fmt.Errorf("read gold-daily snapshot: %w", err)
	}
	return fromDailyRecords(records), nil
}

// WriteMLReady persists the ml-ready training table.
func (s *Store) WriteMLReady(tag string, table domain.MLReadyTable) (domain.Snapshot, error) {
	return writeTier(s, domain.TierMLReady, tag, toMLReadyRecords(table))
}

// ReadMLReady loads an ml-ready snapshot.
func (s *Store) ReadMLReady(snap domain.Snapshot) (domain.MLReadyTable, error) {
	records, err := readParquet[mlReadyRecord](snap.Path)
	if err != nil {
		return domain.MLReadyTable{}, fmt.Errorf("read ml-ready snapshot: %w", err)
	}
	return fromMLReadyRecords(records), nil
}

func writeTier[T any](s *Store, tier domain.Tier, tag string, records []T) (domain.Snapshot, error) {
	snap := domain.Snapshot{Tier: tier, Tag: tag, Path: s.path(tier, tag)}
	err := atomicWrite(snap.Path, func(tmp string) error {
		return writeParquet(tmp, s.codec, records)
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("write %s snapshot: %w", tier, err)
	}
	return snap, nil
}

// atomicWrite fills a temporary sibling of path and renames it into place so
// a partial snapshot is never visible to List.
func atomicWrite(path string, fill func(tmp string) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := fill(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func writeParquet[T any](path string, codec goparquet.CompressionCodec, records []T) (err error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("close parquet file: %w", cerr)).ErrorOrNil()
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(T), 4)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = codec

	for i := range records {
		if err := pw.Write(records[i]); err != nil {
			return fmt.Errorf("write parquet row %d: %w", i, err)
		}
	}
	return stopWriter(pw)
}

// stopWriter flushes the footer. The library panics on some malformed
// schemas, so the panic is surfaced as an error.
func stopWriter(pw *writer.ParquetWriter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}
	return nil
}

func readParquet[T any](path string) ([]T, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(T), 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	if n == 0 {
		return []T{}, nil
	}
	records := make([]T, n)
	if err := pr.Read(&records); err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return records, nil
}

func compressionCodec(name string) (goparquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case config.CompressionSnappy, "":
		return goparquet.CompressionCodec_SNAPPY, nil
	case config.CompressionGzip:
		return goparquet.CompressionCodec_GZIP, nil
	case config.CompressionNone, "UNCOMPRESSED":
		return goparquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type %q", name)
	}
}
