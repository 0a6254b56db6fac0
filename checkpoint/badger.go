package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/thalesfsp/adaptive"
)

//////
// Const, vars, types.
//////

const metaSuffix = "/meta"

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every save.
	SyncWrites bool

	// Key namespaces the samples, so one database can hold several runs.
	// Defaults to "default".
	Key string

	// Logger receives BadgerDB's own logs. Nil silences them.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns a durable configuration for path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
		Key:        "default",
	}
}

// InMemoryBadgerConfig returns a configuration that never touches disk.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{
		InMemory: true,
		Key:      "default",
	}
}

// BadgerStore journals samples in BadgerDB, with a JSON record per sample
// under "<key>/s/<generation>/<index>" and a meta record under "<key>/meta"
// naming the live generation.
//
// The samples of a learner only ever grow, so Save appends the tail beyond
// what the store already wrote to the live generation. Any other list is
// written to a new generation; the meta record switches to it only once
// every sample is flushed, and the old generation is dropped afterwards. An
// interrupted save therefore leaves the previous checkpoint readable.
//
// Thread safety:
//   - All methods are safe for concurrent use.
type BadgerStore[X comparable, Y any] struct {
	db     *badger.DB
	ownsDB bool
	key    string
	logger *slog.Logger

	mu sync.Mutex

	// saved is how many samples of the live generation this store wrote
	// or loaded; zero means the next save starts a new generation.
	saved int
	gen   uint64
}

// badgerMeta is the stored meta record.
type badgerMeta struct {
	Meta

	Generation uint64 `json:"generation"`
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

//////
// Exported functionalities.
//////

// Save stores samples, writing only those not stored yet.
func (s *BadgerStore[X, Y]) Save(ctx context.Context, samples []adaptive.Sample[X, Y]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gen, start := s.gen, s.saved

	var stale *uint64

	if s.saved == 0 || len(samples) < s.saved {
		cur, ok, err := s.meta()
		if err != nil {
			return err
		}

		gen, start = 1, 0

		if ok {
			gen = cur.Generation + 1
			stale = &cur.Generation
		}

		// Clears what an interrupted rewrite may have left there.
		if err := s.db.DropPrefix(s.samplePrefix(gen)); err != nil {
			return fmt.Errorf("clearing checkpoint generation %d: %w", gen, err)
		}
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i := start; i < len(samples); i++ {
		data, err := json.Marshal(samples[i])
		if err != nil {
			return fmt.Errorf("encoding sample %d: %w", i, err)
		}

		if err := wb.Set(s.sampleKey(gen, i), data); err != nil {
			return fmt.Errorf("writing sample %d: %w", i, err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing samples: %w", err)
	}

	meta, err := json.Marshal(badgerMeta{Meta: metaOf(samples), Generation: gen})
	if err != nil {
		return fmt.Errorf("encoding meta: %w", err)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.metaKey(), meta)
	}); err != nil {
		return fmt.Errorf("writing meta: %w", err)
	}

	s.gen, s.saved = gen, len(samples)

	if stale != nil {
		if err := s.db.DropPrefix(s.samplePrefix(*stale)); err != nil {
			s.logger.Warn("dropping stale checkpoint generation",
				slog.String("key", s.key),
				slog.Uint64("generation", *stale),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// Load returns the stored samples in order. Records beyond the stored
// count, left by an interrupted save, are ignored.
func (s *BadgerStore[X, Y]) Load(ctx context.Context) ([]adaptive.Sample[X, Y], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok, err := s.meta()
	if err != nil || !ok {
		return nil, err
	}

	samples := make([]adaptive.Sample[X, Y], 0, meta.Count)
	prefix := s.samplePrefix(meta.Generation)

	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(samples) < meta.Count; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var sample adaptive.Sample[X, Y]

			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sample)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}

			samples = append(samples, sample)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(samples) != meta.Count {
		return nil, fmt.Errorf("checkpoint %q holds %d samples, meta says %d", s.key, len(samples), meta.Count)
	}

	s.gen, s.saved = meta.Generation, len(samples)

	return samples, nil
}

// Meta returns the description of the stored checkpoint.
func (s *BadgerStore[X, Y]) Meta() (Meta, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok, err := s.meta()

	return meta.Meta, ok, err
}

// Close closes the database if the store opened it.
func (s *BadgerStore[X, Y]) Close() error {
	if !s.ownsDB {
		return nil
	}

	return s.db.Close()
}

// Entry names one checkpoint held in a database.
type Entry struct {
	Key  string `json:"key" yaml:"key"`
	Meta Meta   `json:"meta" yaml:"meta"`
}

// List returns every checkpoint in db, sorted by key.
func List(ctx context.Context, db *badger.DB) ([]Entry, error) {
	var entries []Entry

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			key := string(it.Item().Key())

			name, ok := strings.CutSuffix(key, metaSuffix)
			if !ok {
				continue
			}

			e := Entry{Key: name}

			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e.Meta)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", key, err)
			}

			entries = append(entries, e)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

//////
// Helper functions.
//////

func (s *BadgerStore[X, Y]) meta() (badgerMeta, bool, error) {
	var meta badgerMeta

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.metaKey())
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return badgerMeta{}, false, nil
	case err != nil:
		return badgerMeta{}, false, fmt.Errorf("reading meta of %q: %w", s.key, err)
	}

	return meta, true, nil
}

func (s *BadgerStore[X, Y]) samplePrefix(gen uint64) []byte {
	return []byte(fmt.Sprintf("%s/s/%020d/", s.key, gen))
}

// sampleKey pads the index so keys sort in tell order.
func (s *BadgerStore[X, Y]) sampleKey(gen uint64, i int) []byte {
	return []byte(fmt.Sprintf("%s/s/%020d/%020d", s.key, gen, i))
}

func (s *BadgerStore[X, Y]) metaKey() []byte {
	return []byte(s.key + metaSuffix)
}

//////
// Factory.
//////

// OpenBadgerDB opens the database described by cfg. The caller closes it.
func OpenBadgerDB(cfg BadgerConfig) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("%w: path is required for a persistent checkpoint", adaptive.ErrInvalidInput)
	}

	var opts badger.Options

	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("creating checkpoint directory %s: %w", cfg.Path, err)
		}

		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With(slog.String("component", "badger"))})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint database: %w", err)
	}

	return db, nil
}

// OpenBadger opens the database described by cfg and returns a store that
// closes it on Close.
func OpenBadger[X comparable, Y any](cfg BadgerConfig) (*BadgerStore[X, Y], error) {
	db, err := OpenBadgerDB(cfg)
	if err != nil {
		return nil, err
	}

	s := NewBadgerStore[X, Y](db, cfg.Key)
	s.ownsDB = true

	if cfg.Logger != nil {
		s.logger = cfg.Logger
	}

	return s, nil
}

// NewBadgerStore stores samples under key in an open database. The caller
// keeps ownership of db.
func NewBadgerStore[X comparable, Y any](db *badger.DB, key string) *BadgerStore[X, Y] {
	if key == "" {
		key = "default"
	}

	return &BadgerStore[X, Y]{db: db, key: key, logger: slog.Default()}
}

var _ Store[float64, float64] = (*BadgerStore[float64, float64])(nil)
