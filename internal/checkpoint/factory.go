package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/opencode-ai/llmcall/internal/logging"
)

// ErrDriverMissing is wrapped by DriverError.
var ErrDriverMissing = errors.New("checkpointer driver not available")

// ErrClosed is returned by Lazy.Get once Close has been called.
var ErrClosed = errors.New("checkpointer closed")

// DriverError reports a backend whose driver is not linked into the binary.
type DriverError struct {
	Kind    Kind
	Package string
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%s checkpointer requires the %s package: add `import _ %q` to your program",
		e.Kind, e.Package, e.Package)
}

func (e *DriverError) Unwrap() error {
	return ErrDriverMissing
}

// DefaultFileDir is used by File configs with an empty Dir. The CLI points
// it at the XDG data directory.
var DefaultFileDir = filepath.Join(os.TempDir(), "llmcall", "checkpoints")

// New constructs the backend selected by cfg.
func New(ctx context.Context, cfg Config) (Saver, error) {
	switch c := cfg.(type) {
	case Memory:
		return NewMemorySaver(), nil
	case Sqlite:
		return asSaver(NewSqliteSaver(ctx, c.ConnectionString))
	case Postgres:
		return asSaver(NewPostgresSaver(ctx, c.ConnectionString))
	case MySQL:
		return asSaver(NewMySQLSaver(ctx, c.ConnectionString))
	case Redis:
		return asSaver(NewRedisSaver(ctx, c.URL, c.Options))
	case MongoDB:
		if c.Client != nil {
			return asSaver(NewMongoSaverWithClient(ctx, c.Client, c.Database, c.Collection))
		}
		return asSaver(NewMongoSaver(ctx, c.URL, c.Database, c.Collection))
	case File:
		dir := c.Dir
		if dir == "" {
			dir = DefaultFileDir
		}
		return asSaver(NewFileSaver(dir))
	case nil:
		return nil, fmt.Errorf("%w: no config", ErrInvalidConfig)
	default:
		return nil, fmt.Errorf("%w: unsupported config %T", ErrInvalidConfig, cfg)
	}
}

// asSaver keeps a failed constructor's nil pointer out of the interface.
func asSaver[S Saver](s S, err error) (Saver, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// KindOf returns cfg's kind, or "" for a nil config.
func KindOf(cfg Config) Kind {
	if cfg == nil {
		return ""
	}
	return cfg.Kind()
}

// Builder constructs a Saver.
type Builder func(ctx context.Context, cfg Config) (Saver, error)

// Lazy constructs a backend on first use and memoizes the outcome, including
// a failure. Concurrent first callers share one in-flight construction.
type Lazy struct {
	cfg   Config
	build Builder
	group singleflight.Group

	mu     sync.Mutex
	done   bool
	closed bool
	saver  Saver
	err    error
}

// NewLazy returns a Lazy for cfg built with New.
func NewLazy(cfg Config) *Lazy {
	return NewLazyWith(cfg, New)
}

// NewLazyWith returns a Lazy that uses build.
func NewLazyWith(cfg Config, build Builder) *Lazy {
	return &Lazy{cfg: cfg, build: build}
}

// Get returns the backend, constructing it on the first call.
func (l *Lazy) Get(ctx context.Context) (Saver, error) {
	if s, ok, err := l.result(); ok {
		return s, err
	}

	v, err, _ := l.group.Do("checkpointer", func() (any, error) {
		if s, ok, err := l.result(); ok {
			return s, err
		}

		log := logging.Component("checkpoint")
		log.Debug().Str("kind", string(KindOf(l.cfg))).Msg("constructing checkpointer")

		// Construction outlives the first caller's cancellation.
		s, err := l.build(context.WithoutCancel(ctx), l.cfg)
		if err != nil {
			log.Error().Err(err).Str("kind", string(KindOf(l.cfg))).Msg("checkpointer construction failed")
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed {
			// Close ran while the backend was being built.
			if s != nil {
				if cerr := s.Close(); cerr != nil {
					log.Warn().Err(cerr).Msg("failed to close checkpointer built after Close")
				}
			}
			return nil, ErrClosed
		}
		l.saver, l.err, l.done = s, err, true
		return s, err
	})
	if err != nil {
		return nil, err
	}
	s, _ := v.(Saver)
	return s, nil
}

func (l *Lazy) result() (Saver, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, true, ErrClosed
	}
	return l.saver, l.done, l.err
}

// Close closes the backend if it was constructed. A construction still in
// flight closes its backend when it finishes. Get fails with ErrClosed
// afterwards.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	s := l.saver
	l.saver = nil
	if s == nil {
		return nil
	}
	return s.Close()
}
