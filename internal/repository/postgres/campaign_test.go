package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/service/campaign"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func TestCampaignRepoGetReturnsErrNotFoundOnNoRows(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM warmup_campaigns").
		WithArgs("camp-missing").
		WillReturnError(sql.ErrNoRows)

	repo := NewCampaignRepo(db)
	_, err := repo.Get(context.Background(), "camp-missing")
	if err != campaign.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCampaignRepoGetUnmarshalsJSONBColumns(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	cols := []string{
		"id", "name", "template_names", "status", "created_by",
		"configuration", "progress", "plan",
		"started_at", "paused_at", "completed_at", "failed_at", "error_message",
		"created_at", "updated_at",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"camp-1", "Spring Launch", `["welcome"]`, domain.CampaignRunning, "alice",
		`{"email_list_source":"global"}`, `{"current_day":2}`, `{"daily_plans":[]}`,
		now, nil, nil, nil, "",
		now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM warmup_campaigns").
		WithArgs("camp-1").
		WillReturnRows(rows)

	repo := NewCampaignRepo(db)
	c, err := repo.Get(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Name != "Spring Launch" || len(c.TemplateNames) != 1 || c.TemplateNames[0] != "welcome" {
		t.Errorf("unexpected unmarshaled campaign: %+v", c)
	}
	if c.Progress.CurrentDay != 2 {
		t.Errorf("expected current day 2, got %d", c.Progress.CurrentDay)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCampaignRepoCreateGeneratesIDWhenMissing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO warmup_campaigns").
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewCampaignRepo(db)
	c := &domain.Campaign{Name: "New Campaign", TemplateNames: []string{"t1"}}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ID == "" {
		t.Error("expected Create to assign a generated ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCampaignRepoDeleteReturnsErrNotFoundWhenNoRowsAffected(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM warmup_campaigns").
		WithArgs("camp-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCampaignRepo(db)
	err := repo.Delete(context.Background(), "camp-gone")
	if err != campaign.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCampaignRepoIncrementProgressBuildsNestedJSONBSet(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE warmup_campaigns SET progress").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCampaignRepo(db)
	err := repo.IncrementProgress(context.Background(), "camp-1", campaign.ProgressDelta{Delivered: 1, Bounced: 1})
	if err != nil {
		t.Fatalf("IncrementProgress: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
