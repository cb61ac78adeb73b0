package checkpoint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/opencode-ai/llmcall/pkg/types"
)

// Kind names a checkpoint backend.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindSqlite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindMySQL    Kind = "mysql"
	KindRedis    Kind = "redis"
	KindMongoDB  Kind = "mongodb"
	KindFile     Kind = "file"
)

// Config selects and configures a backend. It is one of Memory, Sqlite,
// Postgres, MySQL, Redis, MongoDB or File.
type Config interface {
	Kind() Kind
}

type (
	Memory   struct{}
	Sqlite   struct{ ConnectionString string }
	Postgres struct{ ConnectionString string }
	MySQL    struct{ ConnectionString string }
	Redis    struct {
		URL     string
		Options RedisOptions
	}
	// MongoDB uses Client when set, otherwise connects to URL.
	MongoDB struct {
		Client     *mongo.Client
		URL        string
		Database   string
		Collection string
	}
	File struct{ Dir string }
)

func (Memory) Kind() Kind   { return KindMemory }
func (Sqlite) Kind() Kind   { return KindSqlite }
func (Postgres) Kind() Kind { return KindPostgres }
func (MySQL) Kind() Kind    { return KindMySQL }
func (Redis) Kind() Kind    { return KindRedis }
func (MongoDB) Kind() Kind  { return KindMongoDB }
func (File) Kind() Kind     { return KindFile }

// ErrInvalidConfig is wrapped by configuration parsing errors.
var ErrInvalidConfig = errors.New("invalid checkpointer config")

// FromMemoryConfig converts the serializable config form.
func FromMemoryConfig(mc *types.MemoryConfig) (Config, error) {
	if mc == nil {
		return nil, nil
	}

	switch Kind(strings.ToLower(mc.Kind)) {
	case KindMemory, "":
		return Memory{}, nil
	case KindSqlite:
		return Sqlite{ConnectionString: mc.ConnectionString}, requireField(mc.Kind, "connectionString", mc.ConnectionString)
	case KindPostgres:
		return Postgres{ConnectionString: mc.ConnectionString}, requireField(mc.Kind, "connectionString", mc.ConnectionString)
	case KindMySQL:
		return MySQL{ConnectionString: mc.ConnectionString}, requireField(mc.Kind, "connectionString", mc.ConnectionString)
	case KindRedis:
		cfg := Redis{URL: mc.URL}
		if mc.Redis != nil {
			cfg.Options = RedisOptions{
				KeyPrefix: mc.Redis.KeyPrefix,
				TTL:       time.Duration(mc.Redis.TTLSeconds) * time.Second,
				Password:  mc.Redis.Password,
				DB:        mc.Redis.DB,
			}
		}
		return cfg, requireField(mc.Kind, "url", mc.URL)
	case KindMongoDB, "mongo":
		return MongoDB{URL: mc.URL, Database: mc.Database, Collection: mc.Collection}, requireField(mc.Kind, "url", mc.URL)
	case KindFile:
		return File{Dir: mc.Dir}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, mc.Kind)
	}
}

func requireField(kind, field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidConfig, kind, field)
	}
	return nil
}

// ParseDSN parses the compact form used by LLMCALL_MEMORY:
//
//	memory
//	sqlite:<path or :memory:>
//	postgres://... | postgresql://...
//	mysql:<go-sql-driver dsn>
//	redis://... | rediss://...
//	mongodb://... | mongodb+srv://...
//	file:<dir>
func ParseDSN(dsn string) (*types.MemoryConfig, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "" || dsn == "none":
		return nil, nil
	case dsn == "memory":
		return &types.MemoryConfig{Kind: string(KindMemory)}, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return &types.MemoryConfig{Kind: string(KindSqlite), ConnectionString: strings.TrimPrefix(dsn, "sqlite:")}, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return &types.MemoryConfig{Kind: string(KindPostgres), ConnectionString: dsn}, nil
	case strings.HasPrefix(dsn, "mysql:"):
		return &types.MemoryConfig{Kind: string(KindMySQL), ConnectionString: strings.TrimPrefix(dsn, "mysql:")}, nil
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return &types.MemoryConfig{Kind: string(KindRedis), URL: dsn}, nil
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return &types.MemoryConfig{Kind: string(KindMongoDB), URL: dsn}, nil
	case strings.HasPrefix(dsn, "file:"):
		return &types.MemoryConfig{Kind: string(KindFile), Dir: strings.TrimPrefix(dsn, "file:")}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized memory DSN %q", ErrInvalidConfig, dsn)
	}
}
