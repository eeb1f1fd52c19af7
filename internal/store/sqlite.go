package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/lensview/insight/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS content_items (
	id                 TEXT PRIMARY KEY,
	url                TEXT NOT NULL,
	type               TEXT NOT NULL,
	owner_id           TEXT NOT NULL,
	title              TEXT NOT NULL DEFAULT '',
	raw_text           TEXT NOT NULL DEFAULT '',
	metadata           TEXT,
	tags               TEXT,
	tone               TEXT NOT NULL DEFAULT '',
	language           TEXT NOT NULL DEFAULT 'en',
	regeneration_count INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analysis_results (
	content_id    TEXT NOT NULL REFERENCES content_items(id),
	language      TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	model         TEXT NOT NULL DEFAULT '',
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (content_id, language)
);

CREATE TABLE IF NOT EXISTS analysis_sections (
	content_id TEXT NOT NULL,
	language   TEXT NOT NULL,
	section    TEXT NOT NULL,
	body       TEXT NOT NULL,
	model      TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
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
	sources         TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS domain_stats (
	domain            TEXT PRIMARY KEY,
	verified_count    INTEGER NOT NULL DEFAULT 0,
	disputed_count    INTEGER NOT NULL DEFAULT 0,
	unverified_count  INTEGER NOT NULL DEFAULT 0,
	false_count       INTEGER NOT NULL DEFAULT 0,
	analysis_count    INTEGER NOT NULL DEFAULT 0,
	quality_score_sum REAL NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS usage_counters (
	owner_id   TEXT NOT NULL,
	feature    TEXT NOT NULL,
	period     TEXT NOT NULL,
	used       INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (owner_id, feature, period)
);

CREATE TABLE IF NOT EXISTS owner_preferences (
	owner_id    TEXT PRIMARY KEY,
	preferences TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_content_items_url ON content_items(url);
CREATE INDEX IF NOT EXISTS idx_content_items_owner ON content_items(owner_id);
CREATE INDEX IF NOT EXISTS idx_claims_content ON claims(content_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateContentItem(ctx context.Context, item *model.ContentItem) error {
	metadata, err := marshalNullable(item.StructuredMetadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metadata")
	}
	tags, err := marshalNullable(item.Tags)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tags")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO content_items (id, url, type, owner_id, title, raw_text, metadata, tags, tone, language, regeneration_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.URL, string(item.Type), item.OwnerID, item.Title, item.RawText,
		metadata, tags, item.Tone, item.AnalysisLanguage, item.RegenerationCount, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert content item %s", item.ID)
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetContentItem(ctx context.Context, id string) (*model.ContentItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, type, owner_id, title, raw_text, metadata, tags, tone, language, regeneration_count, created_at, updated_at
		 FROM content_items WHERE id = ?`, id)
	return scanContentItem(row)
}

func (s *SQLiteStore) UpdateContentAcquisition(ctx context.Context, id, title, text string, metadata map[string]string) error {
	metaJSON, err := marshalNullable(metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metadata")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE content_items SET title = ?, raw_text = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		title, text, metaJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update acquisition %s", id)
	}
	return checkAffected(res, id)
}

func (s *SQLiteStore) MarkContentAcquisitionFailed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE content_items SET raw_text = ?, updated_at = ? WHERE id = ?`,
		model.AcquisitionFailedSentinel(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark acquisition failed %s", id)
	}
	return checkAffected(res, id)
}

func (s *SQLiteStore) SetContentTags(ctx context.Context, id string, tags []string) error {
	tagsJSON, err := marshalNullable(tags)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tags")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE content_items SET tags = ?, updated_at = ? WHERE id = ?`,
		tagsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set tags %s", id)
	}
	return checkAffected(res, id)
}

func (s *SQLiteStore) SetContentTone(ctx context.Context, id, tone string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE content_items SET tone = ?, updated_at = ? WHERE id = ?`,
		tone, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set tone %s", id)
	}
	return checkAffected(res, id)
}

func (s *SQLiteStore) IncrementRegeneration(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE content_items SET regeneration_count = regeneration_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment regeneration %s", id)
	}
	return checkAffected(res, id)
}

func (s *SQLiteStore) EnsureAnalysis(ctx context.Context, contentID, language string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_results (content_id, language, status) VALUES (?, ?, ?)
		 ON CONFLICT (content_id, language) DO NOTHING`,
		contentID, language, string(model.StatusPending),
	)
	return eris.Wrapf(err, "sqlite: ensure analysis %s/%s", contentID, language)
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, contentID, language string) (*model.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT content_id, language, status, model, input_tokens, output_tokens, created_at, updated_at
		 FROM analysis_results WHERE content_id = ? AND language = ?`,
		contentID, language,
	)

	result := &model.AnalysisResult{Sections: make(map[model.SectionType]model.Section)}
	err := row.Scan(
		&result.ContentID, &result.Language, &result.Status,
		&result.Provenance.Model, &result.Provenance.InputTokens, &result.Provenance.OutputTokens,
		&result.CreatedAt, &result.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s/%s", contentID, language)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT section, body, model, updated_at FROM analysis_sections WHERE content_id = ? AND language = ?`,
		contentID, language,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get sections %s/%s", contentID, language)
	}
	defer rows.Close()

	for rows.Next() {
		var sec model.Section
		if err := rows.Scan(&sec.Type, &sec.Body, &sec.Model, &sec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan section")
		}
		result.Sections[sec.Type] = sec
	}
	return result, eris.Wrap(rows.Err(), "sqlite: iterate sections")
}

func (s *SQLiteStore) UpsertSection(ctx context.Context, contentID, language string, section model.Section) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_sections (content_id, language, section, body, model, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (content_id, language, section)
		 DO UPDATE SET body = excluded.body, model = excluded.model, updated_at = excluded.updated_at`,
		contentID, language, string(section.Type), section.Body, section.Model, now,
	)
	return eris.Wrapf(err, "sqlite: upsert section %s for %s/%s", section.Type, contentID, language)
}

func (s *SQLiteStore) SetAnalysisStatus(ctx context.Context, contentID, language string, status model.ProcessingStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_results SET status = ?, updated_at = ? WHERE content_id = ? AND language = ?`,
		string(status), time.Now().UTC(), contentID, language,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set analysis status %s/%s", contentID, language)
	}
	return checkAffected(res, contentID)
}

func (s *SQLiteStore) AddAnalysisProvenance(ctx context.Context, contentID, language string, prov model.Provenance) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_results
		 SET model = CASE WHEN ? != '' THEN ? ELSE model END,
		     input_tokens = input_tokens + ?,
		     output_tokens = output_tokens + ?,
		     updated_at = ?
		 WHERE content_id = ? AND language = ?`,
		prov.Model, prov.Model, prov.InputTokens, prov.OutputTokens, time.Now().UTC(), contentID, language,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: add provenance %s/%s", contentID, language)
	}
	return checkAffected(res, contentID)
}

func (s *SQLiteStore) ResetAnalysis(ctx context.Context, contentID, language string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM analysis_sections WHERE content_id = ? AND language = ?`,
		contentID, language,
	); err != nil {
		return eris.Wrapf(err, "sqlite: reset sections %s/%s", contentID, language)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE analysis_results SET status = ?, model = '', input_tokens = 0, output_tokens = 0, updated_at = ?
		 WHERE content_id = ? AND language = ?`,
		string(model.StatusPending), time.Now().UTC(), contentID, language,
	)
	return eris.Wrapf(err, "sqlite: reset analysis %s/%s", contentID, language)
}

func (s *SQLiteStore) ReplaceClaims(ctx context.Context, contentID string, claims []model.Claim) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin claims tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE content_id = ?`, contentID); err != nil {
		return eris.Wrapf(err, "sqlite: delete claims %s", contentID)
	}

	for _, c := range claims {
		sources, err := marshalNullable(c.Sources)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal claim sources")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO claims (id, content_id, owner_id, text, normalized_text, status, severity, sources, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.ContentID, c.OwnerID, c.Text, c.NormalizedText, string(c.Status), c.Severity, sources, c.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert claim %s", c.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit claims")
}

func (s *SQLiteStore) ListClaims(ctx context.Context, contentID string) ([]model.Claim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content_id, owner_id, text, normalized_text, status, severity, sources, created_at
		 FROM claims WHERE content_id = ? ORDER BY created_at`, contentID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list claims %s", contentID)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		var c model.Claim
		var sources sql.NullString
		if err := rows.Scan(&c.ID, &c.ContentID, &c.OwnerID, &c.Text, &c.NormalizedText, &c.Status, &c.Severity, &sources, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan claim")
		}
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &c.Sources); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal claim sources")
			}
		}
		claims = append(claims, c)
	}
	return claims, eris.Wrap(rows.Err(), "sqlite: iterate claims")
}

func (s *SQLiteStore) AccumulateDomainStat(ctx context.Context, delta model.DomainStatDelta) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domain_stats (domain, verified_count, disputed_count, unverified_count, false_count, analysis_count, quality_score_sum, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (domain) DO UPDATE SET
		   verified_count = verified_count + excluded.verified_count,
		   disputed_count = disputed_count + excluded.disputed_count,
		   unverified_count = unverified_count + excluded.unverified_count,
		   false_count = false_count + excluded.false_count,
		   analysis_count = analysis_count + 1,
		   quality_score_sum = quality_score_sum + excluded.quality_score_sum,
		   updated_at = excluded.updated_at`,
		delta.Domain, delta.Verified, delta.Disputed, delta.Unverified, delta.False,
		delta.QualityScore, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: accumulate domain stat %s", delta.Domain)
}

func (s *SQLiteStore) GetDomainStat(ctx context.Context, domain string) (*model.DomainStat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT domain, verified_count, disputed_count, unverified_count, false_count, analysis_count, quality_score_sum, updated_at
		 FROM domain_stats WHERE domain = ?`, domain)

	var d model.DomainStat
	err := row.Scan(&d.Domain, &d.VerifiedCount, &d.DisputedCount, &d.UnverifiedCount, &d.FalseCount, &d.AnalysisCount, &d.QualityScoreSum, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get domain stat %s", domain)
	}
	return &d, nil
}

func (s *SQLiteStore) IncrementUsageWithCeiling(ctx context.Context, ownerID string, feature model.UsageFeature, period string, limit int) (bool, int, error) {
	// Atomic path: upsert with a ceiling guard and RETURNING.
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO usage_counters (owner_id, feature, period, used, updated_at)
		 VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT (owner_id, feature, period)
		 DO UPDATE SET used = used + 1, updated_at = excluded.updated_at
		 WHERE usage_counters.used < ?
		 RETURNING used`,
		ownerID, string(feature), period, time.Now().UTC(), limit,
	)

	var used int
	err := row.Scan(&used)
	if err == sql.ErrNoRows {
		// Guard rejected the update: already at the ceiling.
		current, getErr := s.GetUsage(ctx, ownerID, feature, period)
		if getErr != nil {
			return false, 0, getErr
		}
		return false, current, nil
	}
	if err != nil {
		// Atomic path unavailable; fall back to check-then-increment and
		// accept the small race window rather than failing closed.
		zap.L().Warn("sqlite: atomic usage increment unavailable, falling back", zap.Error(err))
		return s.incrementUsageFallback(ctx, ownerID, feature, period, limit)
	}
	return true, used, nil
}

func (s *SQLiteStore) incrementUsageFallback(ctx context.Context, ownerID string, feature model.UsageFeature, period string, limit int) (bool, int, error) {
	current, err := s.GetUsage(ctx, ownerID, feature, period)
	if err != nil {
		return false, 0, err
	}
	if current >= limit {
		return false, current, nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO usage_counters (owner_id, feature, period, used, updated_at)
		 VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT (owner_id, feature, period)
		 DO UPDATE SET used = used + 1, updated_at = excluded.updated_at`,
		ownerID, string(feature), period, time.Now().UTC(),
	)
	if err != nil {
		return false, current, eris.Wrap(err, "sqlite: fallback usage increment")
	}
	return true, current + 1, nil
}

func (s *SQLiteStore) DecrementUsage(ctx context.Context, ownerID string, feature model.UsageFeature, period string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE usage_counters SET used = used - 1, updated_at = ?
		 WHERE owner_id = ? AND feature = ? AND period = ? AND used > 0`,
		time.Now().UTC(), ownerID, string(feature), period,
	)
	return eris.Wrapf(err, "sqlite: decrement usage %s/%s/%s", ownerID, feature, period)
}

func (s *SQLiteStore) GetOwnerPreferences(ctx context.Context, ownerID string) (string, error) {
	var prefs string
	err := s.db.QueryRowContext(ctx,
		`SELECT preferences FROM owner_preferences WHERE owner_id = ?`, ownerID,
	).Scan(&prefs)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: get owner preferences %s", ownerID)
	}
	return prefs, nil
}

func (s *SQLiteStore) SetOwnerPreferences(ctx context.Context, ownerID, preferences string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO owner_preferences (owner_id, preferences, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (owner_id)
		 DO UPDATE SET preferences = excluded.preferences, updated_at = excluded.updated_at`,
		ownerID, preferences, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: set owner preferences %s", ownerID)
}

func (s *SQLiteStore) GetUsage(ctx context.Context, ownerID string, feature model.UsageFeature, period string) (int, error) {
	var used int
	err := s.db.QueryRowContext(ctx,
		`SELECT used FROM usage_counters WHERE owner_id = ? AND feature = ? AND period = ?`,
		ownerID, string(feature), period,
	).Scan(&used)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: get usage %s/%s/%s", ownerID, feature, period)
	}
	return used, nil
}

func (s *SQLiteStore) FindCacheCandidates(ctx context.Context, filter CandidateFilter) ([]model.ContentItem, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, type, owner_id, title, raw_text, metadata, tags, tone, language, regeneration_count, created_at, updated_at
		 FROM content_items
		 WHERE url = ? AND type = ? AND owner_id != ?
		   AND raw_text != '' AND raw_text != ?
		   AND updated_at > ?
		 ORDER BY updated_at DESC
		 LIMIT ?`,
		filter.NormalizedURL, string(filter.Type), filter.ExcludeOwner,
		model.AcquisitionFailedSentinel(), filter.NewerThan.UTC(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find cache candidates")
	}
	defer rows.Close()

	var items []model.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: iterate candidates")
}

func (s *SQLiteStore) CloneAnalysis(ctx context.Context, fromContentID, toContentID, language, newOwnerID string) error {
	return cloneAnalysis(ctx, s, fromContentID, toContentID, language, newOwnerID)
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanContentItem(row rowScanner) (*model.ContentItem, error) {
	var item model.ContentItem
	var ctype string
	var metadata, tags sql.NullString

	err := row.Scan(
		&item.ID, &item.URL, &ctype, &item.OwnerID, &item.Title, &item.RawText,
		&metadata, &tags, &item.Tone, &item.AnalysisLanguage, &item.RegenerationCount,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan content item")
	}

	item.Type = model.ContentType(ctype)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &item.StructuredMetadata); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal metadata")
		}
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &item.Tags); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal tags")
		}
	}
	return &item, nil
}

func marshalNullable(v any) (sql.NullString, error) {
	switch val := v.(type) {
	case map[string]string:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
	case []string:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func checkAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "store: rows affected for %s", id)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
