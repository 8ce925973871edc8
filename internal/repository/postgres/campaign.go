package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL. The
// mutable, independently-updated pieces of a campaign (configuration,
// progress, plan) are stored as JSONB columns so that every mutation in
// the Repository contract maps to one atomic jsonb_set UPDATE rather
// than a read-modify-write round trip — the same discipline the teacher
// applies to its own JSONB columns (internal/worker/campaign_scheduler.go's
// suppression-list-IDs column).
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var templateNames []byte
	var configuration, progress, plan []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, template_names, status, created_by,
		       configuration, progress, plan,
		       started_at, paused_at, completed_at, failed_at, COALESCE(error_message, ''),
		       created_at, updated_at
		FROM warmup_campaigns
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &templateNames, &c.Status, &c.CreatedBy,
		&configuration, &progress, &plan,
		&c.StartedAt, &c.PausedAt, &c.CompletedAt, &c.FailedAt, &c.ErrorMessage,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}

	if err := unmarshalCampaignColumns(c, templateNames, configuration, progress, plan); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepo) ListByStatus(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, template_names, status, created_by,
		       configuration, progress, plan,
		       started_at, paused_at, completed_at, failed_at, COALESCE(error_message, ''),
		       created_at, updated_at
		FROM warmup_campaigns
		WHERE status = $1
		ORDER BY created_at
	`, status)
	if err != nil {
		return nil, fmt.Errorf("list campaigns by status: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		var templateNames, configuration, progress, plan []byte
		if err := rows.Scan(
			&c.ID, &c.Name, &templateNames, &c.Status, &c.CreatedBy,
			&configuration, &progress, &plan,
			&c.StartedAt, &c.PausedAt, &c.CompletedAt, &c.FailedAt, &c.ErrorMessage,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		if err := unmarshalCampaignColumns(&c, templateNames, configuration, progress, plan); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	templateNames, err := json.Marshal(c.TemplateNames)
	if err != nil {
		return fmt.Errorf("create campaign: marshal template names: %w", err)
	}
	configuration, err := json.Marshal(c.Configuration)
	if err != nil {
		return fmt.Errorf("create campaign: marshal configuration: %w", err)
	}
	progress, err := json.Marshal(c.Progress)
	if err != nil {
		return fmt.Errorf("create campaign: marshal progress: %w", err)
	}
	plan, err := json.Marshal(c.Plan)
	if err != nil {
		return fmt.Errorf("create campaign: marshal plan: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO warmup_campaigns
			(id, name, template_names, status, created_by, configuration, progress, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, c.ID, c.Name, templateNames, c.Status, c.CreatedBy, configuration, progress, plan)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM warmup_campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus, fields campaign.StatusFields) error {
	sets := []string{"status = $1", "updated_at = NOW()"}
	args := []interface{}{status}
	idx := 2
	add := func(expr string, val interface{}) {
		sets = append(sets, fmt.Sprintf(expr, idx))
		args = append(args, val)
		idx++
	}

	if fields.StartedAt != nil {
		add("started_at = $%d", *fields.StartedAt)
		add("progress = jsonb_set(progress, '{started_on_utc_day}', to_jsonb($%d::text))", fields.StartedOnUTCDay)
	}
	if fields.PausedAt != nil {
		add("paused_at = $%d", *fields.PausedAt)
	}
	if fields.ClearPausedAt {
		sets = append(sets, "paused_at = NULL")
	}
	if fields.CompletedAt != nil {
		add("completed_at = $%d", *fields.CompletedAt)
	}
	if fields.FailedAt != nil {
		add("failed_at = $%d", *fields.FailedAt)
	}
	if fields.ErrorMessage != "" {
		add("error_message = $%d", fields.ErrorMessage)
	}

	q := fmt.Sprintf("UPDATE warmup_campaigns SET %s WHERE id = $%d", joinComma(sets), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) SetWarmupIndex(ctx context.Context, id string, index int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE warmup_campaigns
		SET configuration = jsonb_set(configuration, '{warmup_mode,current_index}', to_jsonb($1::int)),
		    updated_at = NOW()
		WHERE id = $2
	`, index, id)
	if err != nil {
		return fmt.Errorf("set warmup index: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) AppendDailyPlan(ctx context.Context, id string, plan domain.DailyPlan, totalRecipients int, emailListStats map[string]int) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("append daily plan: marshal plan: %w", err)
	}
	statsJSON, err := json.Marshal(emailListStats)
	if err != nil {
		return fmt.Errorf("append daily plan: marshal stats: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE warmup_campaigns
		SET plan = jsonb_set(
		        jsonb_set(
		            jsonb_set(plan, '{daily_plans}', (plan->'daily_plans') || $1::jsonb),
		            '{total_recipients}', to_jsonb($2::int)
		        ),
		        '{email_list_stats}', $3::jsonb
		    ),
		    updated_at = NOW()
		WHERE id = $4
	`, planJSON, totalRecipients, statsJSON, id)
	if err != nil {
		return fmt.Errorf("append daily plan: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) AdvanceDay(ctx context.Context, id string, day int, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE warmup_campaigns
		SET progress = jsonb_set(
		        jsonb_set(progress, '{current_day}', to_jsonb($1::int)),
		        '{last_day_transition_at}', to_jsonb($2::timestamptz)
		    ),
		    updated_at = NOW()
		WHERE id = $3
	`, day, at, id)
	if err != nil {
		return fmt.Errorf("advance day: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// IncrementProgress applies delta's non-zero counters with a single
// jsonb-arithmetic UPDATE so concurrent Delivery Queue workers and Event
// Ingestor webhook calls never clobber each other's counts (§5).
func (r *CampaignRepo) IncrementProgress(ctx context.Context, id string, delta campaign.ProgressDelta) error {
	stmt, args := buildIncrementProgressSQL(delta)
	res, err := r.db.ExecContext(ctx, stmt, append(args, id)...)
	if err != nil {
		return fmt.Errorf("increment progress: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// buildIncrementProgressSQL composes the nested jsonb_set UPDATE for
// IncrementProgress, each counter read-added-written in the same
// expression so postgres computes the increment atomically under row
// lock; optionally chains one more jsonb_set when LastSentAt is set.
// The final positional placeholder is always the campaign id.
func buildIncrementProgressSQL(delta campaign.ProgressDelta) (string, []interface{}) {
	counters := []struct {
		path string
		val  int
	}{
		{"total_sent", delta.Sent},
		{"total_delivered", delta.Delivered},
		{"total_failed", delta.Failed},
		{"total_bounced", delta.Bounced},
		{"total_opened", delta.Opened},
		{"total_clicked", delta.Clicked},
		{"total_unsubscribed", delta.Unsubscribed},
	}

	expr := "progress"
	var args []interface{}
	for _, c := range counters {
		args = append(args, c.val)
		expr = fmt.Sprintf(`jsonb_set(%s, '{%s}', to_jsonb((progress->>'%s')::int + $%d::int))`,
			expr, c.path, c.path, len(args))
	}

	if delta.LastSentAt != nil {
		args = append(args, *delta.LastSentAt)
		expr = fmt.Sprintf(`jsonb_set(%s, '{last_sent_at}', to_jsonb($%d::timestamptz))`, expr, len(args))
	}

	stmt := fmt.Sprintf(`
		UPDATE warmup_campaigns
		SET progress = %s,
		    updated_at = NOW()
		WHERE id = $%d
	`, expr, len(args)+1)
	return stmt, args
}

func unmarshalCampaignColumns(c *domain.Campaign, templateNames, configuration, progress, plan []byte) error {
	if len(templateNames) > 0 {
		if err := json.Unmarshal(templateNames, &c.TemplateNames); err != nil {
			return fmt.Errorf("unmarshal template names: %w", err)
		}
	}
	if len(configuration) > 0 {
		if err := json.Unmarshal(configuration, &c.Configuration); err != nil {
			return fmt.Errorf("unmarshal configuration: %w", err)
		}
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &c.Progress); err != nil {
			return fmt.Errorf("unmarshal progress: %w", err)
		}
	}
	if len(plan) > 0 {
		if err := json.Unmarshal(plan, &c.Plan); err != nil {
			return fmt.Errorf("unmarshal plan: %w", err)
		}
	}
	return nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
