package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/lensview/insight/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresIncrementUsage_Allowed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO usage_counters").
		WithArgs("owner-1", "analysis", "2026-08", pgxmock.AnyArg(), 100).
		WillReturnRows(pgxmock.NewRows([]string{"used"}).AddRow(5))

	allowed, used, err := s.IncrementUsageWithCeiling(context.Background(), "owner-1", model.FeatureAnalysis, "2026-08", 100)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed || used != 5 {
		t.Errorf("allowed=%v used=%d", allowed, used)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresIncrementUsage_DeniedAtCeiling(t *testing.T) {
	s, mock := newMockStore(t)

	// The guarded upsert matches no row once the counter hits the limit.
	mock.ExpectQuery("INSERT INTO usage_counters").
		WithArgs("owner-1", "analysis", "2026-08", pgxmock.AnyArg(), 100).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT used FROM usage_counters").
		WithArgs("owner-1", "analysis", "2026-08").
		WillReturnRows(pgxmock.NewRows([]string{"used"}).AddRow(100))

	allowed, used, err := s.IncrementUsageWithCeiling(context.Background(), "owner-1", model.FeatureAnalysis, "2026-08", 100)
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Error("increment at the ceiling must be denied")
	}
	if used != 100 {
		t.Errorf("denied response reports current usage, got %d", used)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresDecrementUsage(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE usage_counters SET used = used - 1").
		WithArgs(pgxmock.AnyArg(), "owner-1", "analysis", "2026-08").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := s.DecrementUsage(context.Background(), "owner-1", model.FeatureAnalysis, "2026-08"); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresGetOwnerPreferences_Missing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT preferences FROM owner_preferences").
		WithArgs("owner-1").
		WillReturnError(pgx.ErrNoRows)

	prefs, err := s.GetOwnerPreferences(context.Background(), "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if prefs != "" {
		t.Errorf("missing row must read as empty, got %q", prefs)
	}
}

func TestPostgresSetOwnerPreferences(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO owner_preferences").
		WithArgs("owner-1", "focus on financial impact", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := s.SetOwnerPreferences(context.Background(), "owner-1", "focus on financial impact"); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresGetContentItem_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM content_items WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetContentItem(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestPostgresUpdateContentAcquisition_NoRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE content_items SET title").
		WithArgs("t", "text", pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateContentAcquisition(context.Background(), "missing", "t", "text", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestPostgresUpsertSection(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO analysis_sections").
		WithArgs("c1", "en", "overview", `{"summary":"s"}`, "m", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertSection(context.Background(), "c1", "en", model.Section{
		Type:  model.SectionOverview,
		Body:  `{"summary":"s"}`,
		Model: "m",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresReplaceClaims_Transactional(t *testing.T) {
	s, mock := newMockStore(t)

	claim := model.Claim{
		ID: "claim-1", ContentID: "c1", OwnerID: "o1",
		Text: "text", NormalizedText: "text", Status: model.ClaimVerified,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM claims").
		WithArgs("c1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO claims").
		WithArgs(claim.ID, claim.ContentID, claim.OwnerID, claim.Text, claim.NormalizedText,
			"verified", "", pgxmock.AnyArg(), claim.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	if err := s.ReplaceClaims(context.Background(), "c1", []model.Claim{claim}); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresGetAnalysis_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM analysis_results").
		WithArgs("c1", "en").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetAnalysis(context.Background(), "c1", "en")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
