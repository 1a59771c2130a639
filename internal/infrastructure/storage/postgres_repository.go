package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/pipeline"
	"github.com/teazle/autosocialai/internal/ports"
)

//go:embed schema.sql
var schema string

const pipelineTable = "content_pipeline"

var errNoDatabase = errors.New("postgres repository has no database")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var pipelineColumns = []string{
	"id", "client_id", "scheduled_at", "status",
	"hook", "caption_ig", "caption_fb", "caption_tt",
	"image_url", "image_model",
	"validation_status", "validation_result", "validation_issues", "validated_at",
	"editor_comments", "post_refs", "error_log", "retry_count",
	"created_at", "updated_at",
}

// PostgresRepository persists pipeline items, clients, accounts and settings.
type PostgresRepository struct {
	db          *sql.DB
	maxFailures int
	now         func() time.Time
}

var (
	_ ports.PipelineRepository = (*PostgresRepository)(nil)
	_ ports.ClientRepository   = (*PostgresRepository)(nil)
	_ ports.AccountRepository  = (*PostgresRepository)(nil)
	_ ports.SettingsRepository = (*PostgresRepository)(nil)
)

// NewPostgresRepository wires a sql.DB implementation. Failed items with
// fewer than maxPublishFailures failures are still listed as due.
func NewPostgresRepository(db *sql.DB, maxPublishFailures int) *PostgresRepository {
	if maxPublishFailures <= 0 {
		maxPublishFailures = pipeline.DefaultMaxPublishFailures
	}
	return &PostgresRepository{db: db, maxFailures: maxPublishFailures, now: time.Now}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema. It is safe to run repeatedly.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if r.db == nil {
		return errNoDatabase
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InsertItem stores a new pipeline item in one statement.
func (r *PostgresRepository) InsertItem(ctx context.Context, item domain.PipelineItem) error {
	if r.db == nil {
		return errNoDatabase
	}
	query, args, err := insertItemQuery(item, r.now())
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert pipeline item: %w", err)
	}
	return nil
}

// GetItem loads one pipeline item.
func (r *PostgresRepository) GetItem(ctx context.Context, id string) (domain.PipelineItem, error) {
	if r.db == nil {
		return domain.PipelineItem{}, errNoDatabase
	}
	query, args, err := psql.Select(pipelineColumns...).From(pipelineTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.PipelineItem{}, fmt.Errorf("build query: %w", err)
	}
	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PipelineItem{}, fmt.Errorf("pipeline item %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.PipelineItem{}, fmt.Errorf("get pipeline item: %w", err)
	}
	return item, nil
}

// UpdateItem applies a partial update in a single statement, so a crash
// never leaves a half-written row.
func (r *PostgresRepository) UpdateItem(ctx context.Context, id string, update domain.PipelineUpdate) error {
	if r.db == nil {
		return errNoDatabase
	}
	query, args, err := updateItemQuery(id, update, r.now())
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update pipeline item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pipeline item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListDue returns approved items whose publish time has passed.
func (r *PostgresRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.PipelineItem, error) {
	if r.db == nil {
		return nil, errNoDatabase
	}
	query, args, err := listDueQuery(now, limit, r.maxFailures)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query due items: %w", err)
	}
	return collect(rows, scanItem)
}

// ListScheduled returns the scheduled times of a client's items in [from, to).
func (r *PostgresRepository) ListScheduled(ctx context.Context, clientID string, from, to time.Time) ([]time.Time, error) {
	if r.db == nil {
		return nil, errNoDatabase
	}
	query, args, err := psql.Select("scheduled_at").From(pipelineTable).
		Where(sq.Eq{"client_id": clientID}).
		Where(sq.GtOrEq{"scheduled_at": from}).
		Where(sq.Lt{"scheduled_at": to}).
		OrderBy("scheduled_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scheduled: %w", err)
	}
	return collect(rows, func(row rowScanner) (time.Time, error) {
		var at time.Time
		err := row.Scan(&at)
		return at, err
	})
}

func insertItemQuery(item domain.PipelineItem, now time.Time) (string, []any, error) {
	var result any
	if item.ValidationResult != nil {
		raw, err := json.Marshal(item.ValidationResult)
		if err != nil {
			return "", nil, fmt.Errorf("marshal validation result: %w", err)
		}
		result = string(raw)
	}
	refs, err := json.Marshal(nonNilRefs(item.PostRefs))
	if err != nil {
		return "", nil, fmt.Errorf("marshal post refs: %w", err)
	}
	created := item.CreatedAt
	if created.IsZero() {
		created = now
	}
	status := item.Status
	if status == "" {
		status = domain.StatusPending
	}
	validationStatus := item.ValidationStatus
	if validationStatus == "" {
		validationStatus = domain.ValidationPending
	}

	query, args, err := psql.Insert(pipelineTable).Columns(pipelineColumns...).Values(
		item.ID, item.ClientID, item.ScheduledAt, string(status),
		item.Hook, item.CaptionIG, item.CaptionFB, item.CaptionTT,
		item.ImageURL, item.ImageModel,
		string(validationStatus), result, pq.Array(nonNilStrings(item.ValidationIssues)), item.ValidatedAt,
		item.EditorComments, string(refs), item.ErrorLog, item.RetryCount,
		created, now,
	).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert: %w", err)
	}
	return query, args, nil
}

func updateItemQuery(id string, u domain.PipelineUpdate, now time.Time) (string, []any, error) {
	b := psql.Update(pipelineTable).Set("updated_at", now)

	if u.Status != nil {
		b = b.Set("status", string(*u.Status))
	}
	if u.Hook != nil {
		b = b.Set("hook", *u.Hook)
	}
	if u.CaptionIG != nil {
		b = b.Set("caption_ig", *u.CaptionIG)
	}
	if u.CaptionFB != nil {
		b = b.Set("caption_fb", *u.CaptionFB)
	}
	if u.CaptionTT != nil {
		b = b.Set("caption_tt", *u.CaptionTT)
	}
	switch {
	case u.ClearImage:
		b = b.Set("image_url", nil).Set("image_model", nil)
	default:
		if u.ImageURL != nil {
			b = b.Set("image_url", *u.ImageURL)
		}
		if u.ImageModel != nil {
			b = b.Set("image_model", *u.ImageModel)
		}
	}
	if u.Validation != nil {
		raw, err := json.Marshal(u.Validation.Details)
		if err != nil {
			return "", nil, fmt.Errorf("marshal validation result: %w", err)
		}
		b = b.Set("validation_result", string(raw)).
			Set("validation_issues", pq.Array(nonNilStrings(u.Validation.IssueMessages())))
	}
	if u.ValidationStatus != nil {
		b = b.Set("validation_status", string(*u.ValidationStatus))
	}
	if u.ValidatedAt != nil {
		b = b.Set("validated_at", *u.ValidatedAt)
	}
	if len(u.PostRefs) > 0 {
		raw, err := json.Marshal(u.PostRefs)
		if err != nil {
			return "", nil, fmt.Errorf("marshal post refs: %w", err)
		}
		b = b.Set("post_refs", sq.Expr("post_refs || ?::jsonb", string(raw)))
	}
	if u.ErrorLog != nil {
		b = b.Set("error_log", *u.ErrorLog)
	}
	if u.RetryCount != nil {
		b = b.Set("retry_count", *u.RetryCount)
	}

	query, args, err := b.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update: %w", err)
	}
	return query, args, nil
}

func listDueQuery(now time.Time, limit, maxFailures int) (string, []any, error) {
	b := psql.Select(pipelineColumns...).From(pipelineTable).
		Where(sq.LtOrEq{"scheduled_at": now}).
		Where(sq.Eq{"validation_status": string(domain.ValidationApproved)}).
		Where(sq.Or{
			sq.Eq{"status": []string{string(domain.StatusPending), string(domain.StatusGenerated)}},
			sq.And{
				sq.Eq{"status": string(domain.StatusFailed)},
				sq.Lt{"retry_count": maxFailures},
			},
		}).
		OrderBy("scheduled_at ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build due query: %w", err)
	}
	return query, args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.PipelineItem, error) {
	var (
		item             domain.PipelineItem
		status           string
		validationStatus string
		imageURL         sql.NullString
		imageModel       sql.NullString
		result           []byte
		issues           pq.StringArray
		validatedAt      sql.NullTime
		refs             []byte
	)
	err := row.Scan(
		&item.ID, &item.ClientID, &item.ScheduledAt, &status,
		&item.Hook, &item.CaptionIG, &item.CaptionFB, &item.CaptionTT,
		&imageURL, &imageModel,
		&validationStatus, &result, &issues, &validatedAt,
		&item.EditorComments, &refs, &item.ErrorLog, &item.RetryCount,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return domain.PipelineItem{}, err
	}

	item.Status = domain.PipelineStatus(status)
	item.ValidationStatus = domain.ValidationStatus(validationStatus)
	item.ValidationIssues = []string(issues)
	if imageURL.Valid && imageURL.String != "" {
		item.ImageURL = &imageURL.String
	}
	if imageModel.Valid && imageModel.String != "" {
		item.ImageModel = &imageModel.String
	}
	if validatedAt.Valid {
		item.ValidatedAt = &validatedAt.Time
	}
	if len(result) > 0 {
		var details domain.ValidationDetails
		if err := json.Unmarshal(result, &details); err != nil {
			return domain.PipelineItem{}, fmt.Errorf("decode validation result: %w", err)
		}
		item.ValidationResult = &details
	}
	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &item.PostRefs); err != nil {
			return domain.PipelineItem{}, fmt.Errorf("decode post refs: %w", err)
		}
	}
	return item, nil
}

func collect[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return out, nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilRefs(in map[domain.Platform]string) map[domain.Platform]string {
	if in == nil {
		return map[domain.Platform]string{}
	}
	return in
}
