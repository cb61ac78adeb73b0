package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"
)

const checkpointTable = "llmcall_checkpoints"

// dialect holds the per-database differences of the SQL backend.
type dialect struct {
	kind    Kind
	driver  string // database/sql driver name
	pkg     string // Go package that registers the driver
	schema  string
	numeric bool // $1 placeholders instead of ?
}

var (
	sqliteDialect = dialect{
		kind:   KindSqlite,
		driver: "sqlite",
		pkg:    "modernc.org/sqlite",
		schema: `CREATE TABLE IF NOT EXISTS ` + checkpointTable + ` (
			thread_id TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (thread_id, checkpoint_id)
		)`,
	}
	postgresDialect = dialect{
		kind:    KindPostgres,
		driver:  "pgx",
		pkg:     "github.com/jackc/pgx/v5/stdlib",
		numeric: true,
		schema: `CREATE TABLE IF NOT EXISTS ` + checkpointTable + ` (
			thread_id TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (thread_id, checkpoint_id)
		)`,
	}
	mysqlDialect = dialect{
		kind:   KindMySQL,
		driver: "mysql",
		pkg:    "github.com/go-sql-driver/mysql",
		schema: `CREATE TABLE IF NOT EXISTS ` + checkpointTable + ` (
			thread_id VARCHAR(191) NOT NULL,
			checkpoint_id CHAR(26) NOT NULL,
			parent_id CHAR(26) NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			payload LONGTEXT NOT NULL,
			PRIMARY KEY (thread_id, checkpoint_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
	}
)

// bind rewrites ? placeholders for numeric dialects.
func (d dialect) bind(query string) string {
	if !d.numeric {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, '$')
			out = strconv.AppendInt(out, int64(n), 10)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

// SQLSaver stores snapshots in a SQL table.
type SQLSaver struct {
	db      *sql.DB
	dialect dialect
}

func newSQLSaver(ctx context.Context, d dialect, dsn string) (*SQLSaver, error) {
	if !slices.Contains(sql.Drivers(), d.driver) {
		return nil, &DriverError{Kind: d.kind, Package: d.pkg}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.kind, err)
	}

	if d.kind == KindSqlite {
		// A single connection keeps in-memory databases shared and writes serialized.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.kind, err)
	}

	s := &SQLSaver{db: db, dialect: d}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSqliteSaver opens a SQLite backend. The modernc.org/sqlite driver must
// be linked into the binary.
func NewSqliteSaver(ctx context.Context, dsn string) (*SQLSaver, error) {
	return newSQLSaver(ctx, sqliteDialect, dsn)
}

// NewPostgresSaver opens a Postgres backend through pgx's database/sql driver.
func NewPostgresSaver(ctx context.Context, dsn string) (*SQLSaver, error) {
	return newSQLSaver(ctx, postgresDialect, dsn)
}

// NewMySQLSaver opens a MySQL backend.
func NewMySQLSaver(ctx context.Context, dsn string) (*SQLSaver, error) {
	return newSQLSaver(ctx, mysqlDialect, dsn)
}

func (s *SQLSaver) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("create %s table: %w", checkpointTable, err)
	}
	return nil
}

func (s *SQLSaver) Put(ctx context.Context, threadID string, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var parentID string
	err = tx.QueryRowContext(ctx, s.dialect.bind(
		`SELECT checkpoint_id FROM `+checkpointTable+` WHERE thread_id = ? ORDER BY checkpoint_id DESC LIMIT 1`),
		threadID).Scan(&parentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("query parent: %w", err)
	}

	prepare(threadID, parentID, snap)
	data, err := encode(snap)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.dialect.bind(
		`INSERT INTO `+checkpointTable+` (thread_id, checkpoint_id, parent_id, created_at, payload) VALUES (?, ?, ?, ?, ?)`),
		threadID, snap.ID, snap.ParentID, snap.CreatedAt.UnixMilli(), string(data))
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return tx.Commit()
}

func (s *SQLSaver) List(ctx context.Context, threadID string) ([]Tuple, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.bind(
		`SELECT payload FROM `+checkpointTable+` WHERE thread_id = ? ORDER BY checkpoint_id DESC`),
		threadID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	var tuples []Tuple
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		snap, err := decode([]byte(payload))
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, tupleOf(snap))
	}
	return tuples, rows.Err()
}

func (s *SQLSaver) Latest(ctx context.Context, threadID string) (*Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.dialect.bind(
		`SELECT payload FROM `+checkpointTable+` WHERE thread_id = ? ORDER BY checkpoint_id DESC LIMIT 1`),
		threadID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest checkpoint: %w", err)
	}
	snap, err := decode([]byte(payload))
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLSaver) Close() error {
	return s.db.Close()
}
