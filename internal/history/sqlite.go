package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"room-visualizer/common"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore 基于 sqlite 的历史记录存储
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite 打开（或创建）数据库文件并执行迁移
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// sqlite 同一时间只允许一个写入者，串行化所有连接
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect history database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// MigrateUp 执行所有未应用的迁移
func (s *SQLiteStore) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// 不调用 m.Close()，否则会关闭底层连接

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion 返回当前迁移版本，尚未迁移时返回 0
func (s *SQLiteStore) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *SQLiteStore) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger 将迁移日志输出到 logrus
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	common.Debugf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Create 追加一条记录
func (s *SQLiteStore) Create(ctx context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO history (material, optimized_prompt, image_data_uri, image_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Material, rec.OptimizedPrompt, rec.ImageDataURI, rec.ImageURL, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return &common.PersistenceError{Op: "create", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return &common.PersistenceError{Op: "create", Err: err}
	}
	rec.ID = id
	return nil
}

// FindRecent 按创建时间倒序返回最近的记录，最多 MaxRecent 条
func (s *SQLiteStore) FindRecent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, material, optimized_prompt, image_data_uri, image_url, created_at
		   FROM history
		  ORDER BY created_at DESC, id DESC
		  LIMIT ?`,
		ClampLimit(limit),
	)
	if err != nil {
		return nil, &common.PersistenceError{Op: "query", Err: err}
	}
	defer rows.Close()

	records := make([]Record, 0, ClampLimit(limit))
	for rows.Next() {
		var rec Record
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Material, &rec.OptimizedPrompt, &rec.ImageDataURI, &rec.ImageURL, &createdAt); err != nil {
			return nil, &common.PersistenceError{Op: "query", Err: err}
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.PersistenceError{Op: "query", Err: err}
	}
	return records, nil
}

// Close 关闭数据库连接
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
