package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var queueColumns = []string{
	"id", "file_name", "file_size_bytes", "file_type", "clinical_notes",
	"report", "urgency_score", "urgency_level", "status", "created_at", "updated_at",
}

// SQLTriageRepository очередь на просмотр в SQLite или PostgreSQL
type SQLTriageRepository struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType
	now    func() time.Time
}

// OpenSQLTriageRepository открывает базу и создаёт таблицу при необходимости
func OpenSQLTriageRepository(ctx context.Context, driver, dsn string) (*SQLTriageRepository, error) {
	if driver == "postgres" {
		driver = DriverPostgres
	}

	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	switch driver {
	case DriverSQLite:
	case DriverPostgres:
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	r := &SQLTriageRepository{db: db, driver: driver, sb: sb, now: time.Now}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLTriageRepository) migrate(ctx context.Context) error {
	ts := "DATETIME"
	if r.driver == DriverPostgres {
		ts = "TIMESTAMPTZ"
	}

	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS queue_items (
  id TEXT PRIMARY KEY,
  file_name TEXT NOT NULL DEFAULT '',
  file_size_bytes BIGINT NOT NULL DEFAULT 0,
  file_type TEXT NOT NULL DEFAULT '',
  clinical_notes TEXT NOT NULL DEFAULT '',
  report TEXT,
  urgency_score INTEGER,
  urgency_level TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at %[1]s NOT NULL,
  updated_at %[1]s NOT NULL
)`, ts))
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS queue_items_status_idx ON queue_items (status)`)
	return err
}

func (r *SQLTriageRepository) Save(ctx context.Context, item *entity.QueueItem) error {
	var report sql.NullString
	if item.Report != nil {
		report = sql.NullString{String: *item.Report, Valid: true}
	}
	var score sql.NullInt64
	if item.UrgencyScore != nil {
		score = sql.NullInt64{Int64: int64(*item.UrgencyScore), Valid: true}
	}

	query, args, err := r.sb.Insert("queue_items").
		Columns(queueColumns...).
		Values(
			item.ID, item.FileName, item.FileSize, item.FileType, item.Notes,
			report, score, string(item.UrgencyLevel), string(item.Status),
			item.CreatedAt.UTC(), item.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

func (r *SQLTriageRepository) Get(ctx context.Context, id string) (*entity.QueueItem, error) {
	query, args, err := r.sb.Select(queueColumns...).
		From("queue_items").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	item, err := scanQueueItem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

func (r *SQLTriageRepository) List(ctx context.Context, limit int) ([]*entity.QueueItem, error) {
	b := r.sb.Select(queueColumns...).
		From("queue_items").
		OrderBy(
			"CASE WHEN urgency_score IS NULL THEN 1 ELSE 0 END",
			"urgency_score DESC",
			"created_at ASC",
			"id ASC",
		)
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var out []*entity.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLTriageRepository) UpdateStatus(ctx context.Context, id string, status entity.QueueStatus) error {
	query, args, err := r.sb.Update("queue_items").
		Set("status", string(status)).
		Set("updated_at", r.now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return port.ErrNotFound
	}
	return nil
}

// Close закрывает соединение с базой
func (r *SQLTriageRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row rowScanner) (*entity.QueueItem, error) {
	var (
		item   entity.QueueItem
		report sql.NullString
		score  sql.NullInt64
		level  string
		status string
	)
	err := row.Scan(
		&item.ID, &item.FileName, &item.FileSize, &item.FileType, &item.Notes,
		&report, &score, &level, &status, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if report.Valid {
		item.Report = &report.String
	}
	if score.Valid {
		v := int(score.Int64)
		item.UrgencyScore = &v
	}
	item.UrgencyLevel = entity.UrgencyLevel(level)
	item.Status = entity.QueueStatus(status)
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

var _ port.TriageRepository = (*SQLTriageRepository)(nil)
