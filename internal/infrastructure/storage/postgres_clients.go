package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/teazle/autosocialai/internal/domain"
)

// Rules applied to clients that have no content_rules row yet.
var defaultRules = domain.ContentRules{
	PostsPerWeek: 3,
	PostingDays:  []int{1, 3, 5},
	PostingTime:  "10:00",
}

func clientQuery() sq.SelectBuilder {
	return psql.Select(
		"c.id", "c.name", "c.brand_voice", "c.company_description", "c.timezone", "c.status",
		"r.posts_per_week", "r.posting_days", "r.posting_time", "r.allow_auto_publish",
		"b.client_id", "b.color_hex", "b.banned_terms", "b.default_hashtags",
		"b.image_prompt_template", "b.negative_prompt_template", "b.industry", "b.target_audience",
	).
		From("clients c").
		LeftJoin("content_rules r ON r.client_id = c.id").
		LeftJoin("brand_assets b ON b.client_id = c.id")
}

// ListActiveClients returns every active client with rules and assets.
func (r *PostgresRepository) ListActiveClients(ctx context.Context) ([]domain.ClientProfile, error) {
	if r.db == nil {
		return nil, errNoDatabase
	}
	query, args, err := clientQuery().Where(sq.Eq{"c.status": string(domain.ClientActive)}).OrderBy("c.name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	return collect(rows, scanClient)
}

// GetClient loads one client regardless of status.
func (r *PostgresRepository) GetClient(ctx context.Context, id string) (domain.ClientProfile, error) {
	if r.db == nil {
		return domain.ClientProfile{}, errNoDatabase
	}
	query, args, err := clientQuery().Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return domain.ClientProfile{}, fmt.Errorf("build query: %w", err)
	}
	profile, err := scanClient(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ClientProfile{}, fmt.Errorf("client %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ClientProfile{}, fmt.Errorf("get client: %w", err)
	}
	return profile, nil
}

func scanClient(row rowScanner) (domain.ClientProfile, error) {
	var (
		c         domain.Client
		voice     string
		status    string
		perWeek   sql.NullInt64
		days      pq.Int64Array
		postTime  sql.NullString
		autoPost  sql.NullBool
		assetsID  sql.NullString
		colors    pq.StringArray
		banned    pq.StringArray
		hashtags  pq.StringArray
		imgPrompt sql.NullString
		negPrompt sql.NullString
		industry  sql.NullString
		audience  sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.Name, &voice, &c.CompanyDescription, &c.Timezone, &status,
		&perWeek, &days, &postTime, &autoPost,
		&assetsID, &colors, &banned, &hashtags,
		&imgPrompt, &negPrompt, &industry, &audience,
	)
	if err != nil {
		return domain.ClientProfile{}, err
	}
	c.BrandVoice = domain.BrandVoice(voice)
	c.Status = domain.ClientStatus(status)

	profile := domain.ClientProfile{Client: c, Rules: defaultRules}
	if perWeek.Valid {
		profile.Rules = domain.ContentRules{
			PostsPerWeek:     int(perWeek.Int64),
			PostingDays:      make([]int, 0, len(days)),
			PostingTime:      postTime.String,
			AllowAutoPublish: autoPost.Bool,
		}
		for _, d := range days {
			profile.Rules.PostingDays = append(profile.Rules.PostingDays, int(d))
		}
	}
	if assetsID.Valid {
		profile.Assets = &domain.BrandAssets{
			ColorHex:               []string(colors),
			BannedTerms:            []string(banned),
			DefaultHashtags:        []string(hashtags),
			ImagePromptTemplate:    imgPrompt.String,
			NegativePromptTemplate: negPrompt.String,
			Industry:               industry.String,
			TargetAudience:         audience.String,
		}
	}
	return profile, nil
}

// ListAccounts returns the connected platform accounts of a client.
func (r *PostgresRepository) ListAccounts(ctx context.Context, clientID string) ([]domain.SocialAccount, error) {
	if r.db == nil {
		return nil, errNoDatabase
	}
	query, args, err := psql.Select("id", "client_id", "platform", "business_id", "page_id", "token_encrypted", "token_expires_at").
		From("social_accounts").
		Where(sq.Eq{"client_id": clientID}).
		OrderBy("platform").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	return collect(rows, func(row rowScanner) (domain.SocialAccount, error) {
		var (
			a        domain.SocialAccount
			platform string
			expires  sql.NullTime
		)
		if err := row.Scan(&a.ID, &a.ClientID, &platform, &a.BusinessID, &a.PageID, &a.TokenEncrypted, &expires); err != nil {
			return domain.SocialAccount{}, err
		}
		a.Platform = domain.Platform(platform)
		if expires.Valid {
			a.TokenExpiresAt = &expires.Time
		}
		return a, nil
	})
}

// InsertPostLog records a successful publish.
func (r *PostgresRepository) InsertPostLog(ctx context.Context, log domain.PostLog) error {
	if r.db == nil {
		return errNoDatabase
	}
	query, args, err := psql.Insert("post_logs").
		Columns("pipeline_id", "platform", "post_id", "published_at").
		Values(log.PipelineID, string(log.Platform), log.PostID, log.PublishedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert post log: %w", err)
	}
	return nil
}

// GetSetting returns a system setting and whether it exists.
func (r *PostgresRepository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	if r.db == nil {
		return "", false, errNoDatabase
	}
	query, args, err := psql.Select("value").From("system_settings").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build query: %w", err)
	}
	var value string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return value, true, nil
}

// ListSettings returns every system setting ordered by key.
func (r *PostgresRepository) ListSettings(ctx context.Context) ([]domain.Setting, error) {
	if r.db == nil {
		return nil, errNoDatabase
	}
	query, args, err := psql.Select("key", "value", "description", "updated_at").From("system_settings").OrderBy("key").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	return collect(rows, func(row rowScanner) (domain.Setting, error) {
		var s domain.Setting
		err := row.Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedAt)
		return s, err
	})
}

// UpsertSetting inserts or replaces a system setting.
func (r *PostgresRepository) UpsertSetting(ctx context.Context, key, value string) error {
	if r.db == nil {
		return errNoDatabase
	}
	query, args, err := upsertSettingQuery(key, value, r.now())
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

func upsertSettingQuery(key, value string, now time.Time) (string, []any, error) {
	query, args, err := psql.Insert("system_settings").
		Columns("key", "value", "updated_at").
		Values(key, value, now).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build upsert: %w", err)
	}
	return query, args, nil
}
