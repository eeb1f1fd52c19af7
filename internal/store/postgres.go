package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lensview/insight/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS content_items (
	id                 TEXT PRIMARY KEY,
	url                TEXT NOT NULL,
	type               TEXT NOT NULL,
	owner_id           TEXT NOT NULL,
	title              TEXT NOT NULL DEFAULT '',
	raw_text           TEXT NOT NULL DEFAULT '',
	metadata           JSONB,
	tags               JSONB,
	tone               TEXT NOT NULL DEFAULT '',
	language           TEXT NOT NULL DEFAULT 'en',
	regeneration_count INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analysis_results (
	content_id    TEXT NOT NULL REFERENCES content_items(id),
	language      TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	model         TEXT NOT NULL DEFAULT '',
	input_tokens  BIGINT NOT NULL DEFAULT 0,
	output_tokens BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (content_id, language)
);

CREATE TABLE IF NOT EXISTS analysis_sections (
	content_id TEXT NOT NULL,
	language   TEXT NOT NULL,
	section    TEXT NOT NULL,
	body       TEXT NOT NULL,
	model      TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (content_id, language, section)
);

CREATE TABLE IF NOT EXISTS claims (
	id              TEXT PRIMARY KEY,
	content_id      TEXT NOT NULL,
	owner_id        TEXT NOT NULL,
	text            TEXT NOT NULL,
	normalized_text TEXT NOT NULL,
	status          TEXT NOT NULL,
	severity        TEXT NOT NULL DEFAULT '',
	sources         JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS domain_stats (
	domain            TEXT PRIMARY KEY,
	verified_count    BIGINT NOT NULL DEFAULT 0,
	disputed_count    BIGINT NOT NULL DEFAULT 0,
	unverified_count  BIGINT NOT NULL DEFAULT 0,
	false_count       BIGINT NOT NULL DEFAULT 0,
	analysis_count    BIGINT NOT NULL DEFAULT 0,
	quality_score_sum DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usage_counters (
	owner_id   TEXT NOT NULL,
	feature    TEXT NOT NULL,
	period     TEXT NOT NULL,
	used       INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner_id, feature, period)
);

CREATE TABLE IF NOT EXISTS owner_preferences (
	owner_id    TEXT PRIMARY KEY,
	preferences TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_content_items_url ON content_items(url);
CREATE INDEX IF NOT EXISTS idx_content_items_owner ON content_items(owner_id);
CREATE INDEX IF NOT EXISTS idx_claims_content ON claims(content_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateContentItem(ctx context.Context, item *model.ContentItem) error {
	metadata, err := jsonOrNil(item.StructuredMetadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metadata")
	}
	tags, err := jsonOrNil(item.Tags)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tags")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO content_items (id, url, type, owner_id, title, raw_text, metadata, tags, tone, language, regeneration_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		item.ID, item.URL, string(item.Type), item.OwnerID, item.Title, item.RawText,
		metadata, tags, item.Tone, item.AnalysisLanguage, item.RegenerationCount, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert content item %s", item.ID)
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

func (s *PostgresStore) GetContentItem(ctx context.Context, id string) (*model.ContentItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, url, type, owner_id, title, raw_text, metadata, tags, tone, language, regeneration_count, created_at, updated_at
		 FROM content_items WHERE id = $1`, id)
	item, err := scanPgContentItem(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get content item %s", id)
	}
	return item, nil
}

func (s *PostgresStore) UpdateContentAcquisition(ctx context.Context, id, title, text string, metadata map[string]string) error {
	metaJSON, err := jsonOrNil(metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metadata")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE content_items SET title = $1, raw_text = $2, metadata = $3, updated_at = $4 WHERE id = $5`,
		title, text, metaJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update acquisition %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkContentAcquisitionFailed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE content_items SET raw_text = $1, updated_at = $2 WHERE id = $3`,
		model.AcquisitionFailedSentinel(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark acquisition failed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetContentTags(ctx context.Context, id string, tags []string) error {
	tagsJSON, err := jsonOrNil(tags)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tags")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE content_items SET tags = $1, updated_at = $2 WHERE id = $3`,
		tagsJSON, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "postgres: set tags %s", id)
}

func (s *PostgresStore) SetContentTone(ctx context.Context, id, tone string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE content_items SET tone = $1, updated_at = $2 WHERE id = $3`,
		tone, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "postgres: set tone %s", id)
}

func (s *PostgresStore) IncrementRegeneration(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE content_items SET regeneration_count = regeneration_count + 1, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "postgres: increment regeneration %s", id)
}

func (s *PostgresStore) EnsureAnalysis(ctx context.Context, contentID, language string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_results (content_id, language, status) VALUES ($1, $2, $3)
		 ON CONFLICT (content_id, language) DO NOTHING`,
		contentID, language, string(model.StatusPending),
	)
	return eris.Wrapf(err, "postgres: ensure analysis %s/%s", contentID, language)
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, contentID, language string) (*model.AnalysisResult, error) {
	result := &model.AnalysisResult{Sections: make(map[model.SectionType]model.Section)}
	err := s.pool.QueryRow(ctx,
		`SELECT content_id, language, status, model, input_tokens, output_tokens, created_at, updated_at
		 FROM analysis_results WHERE content_id = $1 AND language = $2`,
		contentID, language,
	).Scan(
		&result.ContentID, &result.Language, &result.Status,
		&result.Provenance.Model, &result.Provenance.InputTokens, &result.Provenance.OutputTokens,
		&result.CreatedAt, &result.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis %s/%s", contentID, language)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT section, body, model, updated_at FROM analysis_sections WHERE content_id = $1 AND language = $2`,
		contentID, language,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get sections %s/%s", contentID, language)
	}
	defer rows.Close()

	for rows.Next() {
		var sec model.Section
		if err := rows.Scan(&sec.Type, &sec.Body, &sec.Model, &sec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan section")
		}
		result.Sections[sec.Type] = sec
	}
	return result, eris.Wrap(rows.Err(), "postgres: iterate sections")
}

func (s *PostgresStore) UpsertSection(ctx context.Context, contentID, language string, section model.Section) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_sections (content_id, language, section, body, model, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (content_id, language, section)
		 DO UPDATE SET body = EXCLUDED.body, model = EXCLUDED.model, updated_at = EXCLUDED.updated_at`,
		contentID, language, string(section.Type), section.Body, section.Model, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert section %s for %s/%s", section.Type, contentID, language)
}

func (s *PostgresStore) SetAnalysisStatus(ctx context.Context, contentID, language string, status model.ProcessingStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_results SET status = $1, updated_at = $2 WHERE content_id = $3 AND language = $4`,
		string(status), time.Now().UTC(), contentID, language,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set analysis status %s/%s", contentID, language)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddAnalysisProvenance(ctx context.Context, contentID, language string, prov model.Provenance) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE analysis_results
		 SET model = CASE WHEN $1 != '' THEN $1 ELSE model END,
		     input_tokens = input_tokens + $2,
		     output_tokens = output_tokens + $3,
		     updated_at = $4
		 WHERE content_id = $5 AND language = $6`,
		prov.Model, prov.InputTokens, prov.OutputTokens, time.Now().UTC(), contentID, language,
	)
	return eris.Wrapf(err, "postgres: add provenance %s/%s", contentID, language)
}

func (s *PostgresStore) ResetAnalysis(ctx context.Context, contentID, language string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM analysis_sections WHERE content_id = $1 AND language = $2`,
		contentID, language,
	); err != nil {
		return eris.Wrapf(err, "postgres: reset sections %s/%s", contentID, language)
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE analysis_results SET status = $1, model = '', input_tokens = 0, output_tokens = 0, updated_at = $2
		 WHERE content_id = $3 AND language = $4`,
		string(model.StatusPending), time.Now().UTC(), contentID, language,
	)
	return eris.Wrapf(err, "postgres: reset analysis %s/%s", contentID, language)
}

func (s *PostgresStore) ReplaceClaims(ctx context.Context, contentID string, claims []model.Claim) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin claims tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM claims WHERE content_id = $1`, contentID); err != nil {
		return eris.Wrapf(err, "postgres: delete claims %s", contentID)
	}

	for _, c := range claims {
		sources, err := jsonOrNil(c.Sources)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal claim sources")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO claims (id, content_id, owner_id, text, normalized_text, status, severity, sources, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID, c.ContentID, c.OwnerID, c.Text, c.NormalizedText, string(c.Status), c.Severity, sources, c.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert claim %s", c.ID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit claims")
}

func (s *PostgresStore) ListClaims(ctx context.Context, contentID string) ([]model.Claim, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content_id, owner_id, text, normalized_text, status, severity, sources, created_at
		 FROM claims WHERE content_id = $1 ORDER BY created_at`, contentID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list claims %s", contentID)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		var c model.Claim
		var sources []byte
		if err := rows.Scan(&c.ID, &c.ContentID, &c.OwnerID, &c.Text, &c.NormalizedText, &c.Status, &c.Severity, &sources, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan claim")
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &c.Sources); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal claim sources")
			}
		}
		claims = append(claims, c)
	}
	return claims, eris.Wrap(rows.Err(), "postgres: iterate claims")
}

func (s *PostgresStore) AccumulateDomainStat(ctx context.Context, delta model.DomainStatDelta) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO domain_stats (domain, verified_count, disputed_count, unverified_count, false_count, analysis_count, quality_score_sum, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
		 ON CONFLICT (domain) DO UPDATE SET
		   verified_count = domain_stats.verified_count + EXCLUDED.verified_count,
		   disputed_count = domain_stats.disputed_count + EXCLUDED.disputed_count,
		   unverified_count = domain_stats.unverified_count + EXCLUDED.unverified_count,
		   false_count = domain_stats.false_count + EXCLUDED.false_count,
		   analysis_count = domain_stats.analysis_count + 1,
		   quality_score_sum = domain_stats.quality_score_sum + EXCLUDED.quality_score_sum,
		   updated_at = EXCLUDED.updated_at`,
		delta.Domain, delta.Verified, delta.Disputed, delta.Unverified, delta.False,
		delta.QualityScore, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: accumulate domain stat %s", delta.Domain)
}

func (s *PostgresStore) GetDomainStat(ctx context.Context, domain string) (*model.DomainStat, error) {
	var d model.DomainStat
	err := s.pool.QueryRow(ctx,
		`SELECT domain, verified_count, disputed_count, unverified_count, false_count, analysis_count, quality_score_sum, updated_at
		 FROM domain_stats WHERE domain = $1`, domain,
	).Scan(&d.Domain, &d.VerifiedCount, &d.DisputedCount, &d.UnverifiedCount, &d.FalseCount, &d.AnalysisCount, &d.QualityScoreSum, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get domain stat %s", domain)
	}
	return &d, nil
}

func (s *PostgresStore) IncrementUsageWithCeiling(ctx context.Context, ownerID string, feature model.UsageFeature, period string, limit int) (bool, int, error) {
	// Atomic path: upsert with a ceiling guard and RETURNING.
	var used int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO usage_counters (owner_id, feature, period, used, updated_at)
		 VALUES ($1, $2, $3, 1, $4)
		 ON CONFLICT (owner_id, feature, period)
		 DO UPDATE SET used = usage_counters.used + 1, updated_at = EXCLUDED.updated_at
		 WHERE usage_counters.used < $5
		 RETURNING used`,
		ownerID, string(feature), period, time.Now().UTC(), limit,
	).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := s.GetUsage(ctx, ownerID, feature, period)
		if getErr != nil {
			return false, 0, getErr
		}
		return false, current, nil
	}
	if err != nil {
		// Atomic path unavailable; fall back to check-then-increment and
		// accept the small race window rather than failing closed.
		zap.L().Warn("postgres: atomic usage increment unavailable, falling back", zap.Error(err))
		return s.incrementUsageFallback(ctx, ownerID, feature, period, limit)
	}
	return true, used, nil
}

func (s *PostgresStore) incrementUsageFallback(ctx context.Context, ownerID string, feature model.UsageFeature, period string, limit int) (bool, int, error) {
	current, err := s.GetUsage(ctx, ownerID, feature, period)
	if err != nil {
		return false, 0, err
	}
	if current >= limit {
		return false, current, nil
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO usage_counters (owner_id, feature, period, used, updated_at)
		 VALUES ($1, $2, $3, 1, $4)
		 ON CONFLICT (owner_id, feature, period)
		 DO UPDATE SET used = usage_counters.used + 1, updated_at = EXCLUDED.updated_at`,
		ownerID, string(feature), period, time.Now().UTC(),
	)
	if err != nil {
		return false, current, eris.Wrap(err, "postgres: fallback usage increment")
	}
	return true, current + 1, nil
}

func (s *PostgresStore) DecrementUsage(ctx context.Context, ownerID string, feature model.UsageFeature, period string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE usage_counters SET used = used - 1, updated_at = $1
		 WHERE owner_id = $2 AND feature = $3 AND period = $4 AND used > 0`,
		time.Now().UTC(), ownerID, string(feature), period,
	)
	return eris.Wrapf(err, "postgres: decrement usage %s/%s/%s", ownerID, feature, period)
}

func (s *PostgresStore) GetOwnerPreferences(ctx context.Context, ownerID string) (string, error) {
	var prefs string
	err := s.pool.QueryRow(ctx,
		`SELECT preferences FROM owner_preferences WHERE owner_id = $1`, ownerID,
	).Scan(&prefs)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: get owner preferences %s", ownerID)
	}
	return prefs, nil
}

func (s *PostgresStore) SetOwnerPreferences(ctx context.Context, ownerID, preferences string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO owner_preferences (owner_id, preferences, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id)
		 DO UPDATE SET preferences = EXCLUDED.preferences, updated_at = EXCLUDED.updated_at`,
		ownerID, preferences, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: set owner preferences %s", ownerID)
}

func (s *PostgresStore) GetUsage(ctx context.Context, ownerID string, feature model.UsageFeature, period string) (int, error) {
	var used int
	err := s.pool.QueryRow(ctx,
		`SELECT used FROM usage_counters WHERE owner_id = $1 AND feature = $2 AND period = $3`,
		ownerID, string(feature), period,
	).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: get usage %s/%s/%s", ownerID, feature, period)
	}
	return used, nil
}

func (s *PostgresStore) FindCacheCandidates(ctx context.Context, filter CandidateFilter) ([]model.ContentItem, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, type, owner_id, title, raw_text, metadata, tags, tone, language, regeneration_count, created_at, updated_at
		 FROM content_items
		 WHERE url = $1 AND type = $2 AND owner_id != $3
		   AND raw_text != '' AND raw_text != $4
		   AND updated_at > $5
		 ORDER BY updated_at DESC
		 LIMIT $6`,
		filter.NormalizedURL, string(filter.Type), filter.ExcludeOwner,
		model.AcquisitionFailedSentinel(), filter.NewerThan.UTC(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find cache candidates")
	}
	defer rows.Close()

	var items []model.ContentItem
	for rows.Next() {
		item, err := scanPgContentItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, eris.Wrap(rows.Err(), "postgres: iterate candidates")
}

func (s *PostgresStore) CloneAnalysis(ctx context.Context, fromContentID, toContentID, language, newOwnerID string) error {
	return cloneAnalysis(ctx, s, fromContentID, toContentID, language, newOwnerID)
}

func scanPgContentItem(row pgx.Row) (*model.ContentItem, error) {
	var item model.ContentItem
	var ctype string
	var metadata, tags []byte

	err := row.Scan(
		&item.ID, &item.URL, &ctype, &item.OwnerID, &item.Title, &item.RawText,
		&metadata, &tags, &item.Tone, &item.AnalysisLanguage, &item.RegenerationCount,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan content item")
	}

	item.Type = model.ContentType(ctype)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &item.StructuredMetadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metadata")
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &item.Tags); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal tags")
		}
	}
	return &item, nil
}

// jsonOrNil marshals v to JSON, returning nil for empty values so the
// column stays NULL.
func jsonOrNil(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]string:
		if len(val) == 0 {
			return nil, nil
		}
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
