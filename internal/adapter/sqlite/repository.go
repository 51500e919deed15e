package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/castmatch/campflow/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// CampaignRepository implements domain.CampaignRepository using SQLite.
// The campaigns row carries a version column used for optimistic
// concurrency; checklist marks and history records live in side tables.
type CampaignRepository struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*CampaignRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*CampaignRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &CampaignRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *CampaignRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river, analytics).
func (r *CampaignRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = time.RFC3339Nano

const (
	itemKindRequirement = "requirement"
	itemKindTask        = "task"
)

func (r *CampaignRepository) Create(ctx context.Context, c domain.Campaign) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO campaigns
		   (id, title, platform, budget_cents, deadline, creator_id, advertiser_id,
		    phase, delivery_url, rating, feedback, archived, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, string(c.Platform), c.BudgetCents,
		c.Deadline.UTC().Format(timeFormat),
		c.CreatorID, c.AdvertiserID, string(c.Phase),
		c.DeliveryURL, c.Rating, c.Feedback, c.Archived, c.Version,
		c.CreatedAt.Format(timeFormat),
		c.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (domain.Campaign, error) {
	c, err := r.scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT id, title, platform, budget_cents, deadline, creator_id, advertiser_id,
		        phase, delivery_url, rating, feedback, archived, version, created_at, updated_at
		 FROM campaigns WHERE id = ?`, id,
	))
	if err != nil {
		return domain.Campaign{}, err
	}

	if err := r.loadChecklist(ctx, &c); err != nil {
		return domain.Campaign{}, err
	}
	if err := r.loadHistory(ctx, &c); err != nil {
		return domain.Campaign{}, err
	}

	return c, nil
}

func (r *CampaignRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Campaign, error) {
	query := `SELECT id, title, platform, budget_cents, deadline, creator_id, advertiser_id,
	                 phase, delivery_url, rating, feedback, archived, version, created_at, updated_at
	          FROM campaigns`
	var args []any
	var conds []string

	if filter.Phase != nil {
		conds = append(conds, `phase = ?`)
		args = append(args, string(*filter.Phase))
	}
	if filter.ParticipantID != "" {
		conds = append(conds, `(creator_id = ? OR advertiser_id = ?)`)
		args = append(args, filter.ParticipantID, filter.ParticipantID)
	}
	for i, cond := range conds {
		if i == 0 {
			query += ` WHERE ` + cond
		} else {
			query += ` AND ` + cond
		}
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 || filter.Offset > 0 {
		// SQLite needs a LIMIT clause to accept an OFFSET; -1 means unbounded.
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		c, err := r.scanCampaignFromRows(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, rows.Err()
}

// Commit persists the campaign only if expectedVersion still matches
// the stored row, bumping the version on success. The row update, the
// checklist rewrite, and the history append happen in one transaction,
// so a lost race leaves nothing half-written.
func (r *CampaignRepository) Commit(ctx context.Context, c domain.Campaign, expectedVersion int64) (domain.Campaign, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("beginning commit: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE campaigns
		 SET phase = ?, delivery_url = ?, rating = ?, feedback = ?, archived = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(c.Phase), c.DeliveryURL, c.Rating, c.Feedback, c.Archived,
		c.UpdatedAt.Format(timeFormat), c.ID, expectedVersion,
	)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("updating campaign: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a stale version from a missing campaign.
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns WHERE id = ?`, c.ID).Scan(&exists)
		if err != nil {
			return domain.Campaign{}, fmt.Errorf("checking campaign existence: %w", err)
		}
		if exists == 0 {
			return domain.Campaign{}, domain.ErrCampaignNotFound
		}
		return domain.Campaign{}, domain.ErrVersionConflict
	}

	// Checklist marks are scoped to the current phase; rewrite them
	// wholesale so a phase change leaves no stale rows behind.
	if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_checklist WHERE campaign_id = ?`, c.ID); err != nil {
		return domain.Campaign{}, fmt.Errorf("clearing checklist: %w", err)
	}
	for id := range c.SatisfiedRequirements {
		if err := insertChecklistItem(ctx, tx, c, id, itemKindRequirement); err != nil {
			return domain.Campaign{}, err
		}
	}
	for id := range c.CompletedTasks {
		if err := insertChecklistItem(ctx, tx, c, id, itemKindTask); err != nil {
			return domain.Campaign{}, err
		}
	}

	// History is append-only: seq-keyed inserts, existing rows untouched.
	for seq, tr := range c.History {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO campaign_history
			   (campaign_id, seq, from_phase, to_phase, actor_id, occurred_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, seq, string(tr.From), string(tr.To), tr.TriggeredBy,
			tr.At.Format(timeFormat),
		)
		if err != nil {
			return domain.Campaign{}, fmt.Errorf("appending history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Campaign{}, fmt.Errorf("committing campaign: %w", err)
	}

	c.Version = expectedVersion + 1
	return c, nil
}

func insertChecklistItem(ctx context.Context, tx *sql.Tx, c domain.Campaign, itemID, kind string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO campaign_checklist (campaign_id, phase, item_id, kind) VALUES (?, ?, ?, ?)`,
		c.ID, string(c.Phase), itemID, kind,
	)
	if err != nil {
		return fmt.Errorf("inserting checklist item %q: %w", itemID, err)
	}
	return nil
}

func (r *CampaignRepository) loadChecklist(ctx context.Context, c *domain.Campaign) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, kind FROM campaign_checklist WHERE campaign_id = ? AND phase = ?`,
		c.ID, string(c.Phase),
	)
	if err != nil {
		return fmt.Errorf("loading checklist: %w", err)
	}
	defer rows.Close()

	c.SatisfiedRequirements = map[string]bool{}
	c.CompletedTasks = map[string]bool{}
	for rows.Next() {
		var itemID, kind string
		if err := rows.Scan(&itemID, &kind); err != nil {
			return fmt.Errorf("scanning checklist item: %w", err)
		}
		switch kind {
		case itemKindRequirement:
			c.SatisfiedRequirements[itemID] = true
		case itemKindTask:
			c.CompletedTasks[itemID] = true
		}
	}

	return rows.Err()
}

func (r *CampaignRepository) loadHistory(ctx context.Context, c *domain.Campaign) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT from_phase, to_phase, actor_id, occurred_at
		 FROM campaign_history WHERE campaign_id = ? ORDER BY seq`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var from, to, actor, at string
		if err := rows.Scan(&from, &to, &actor, &at); err != nil {
			return fmt.Errorf("scanning history row: %w", err)
		}
		tr := domain.PhaseTransition{
			From:        domain.Phase(from),
			To:          domain.Phase(to),
			TriggeredBy: actor,
		}
		tr.At, _ = time.Parse(timeFormat, at)
		c.History = append(c.History, tr)
	}

	return rows.Err()
}

// scanCampaign scans a single row from QueryRow into a domain.Campaign.
func (r *CampaignRepository) scanCampaign(row *sql.Row) (domain.Campaign, error) {
	var c domain.Campaign
	var platform, phase, deadline, createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.Title, &platform, &c.BudgetCents, &deadline,
		&c.CreatorID, &c.AdvertiserID, &phase, &c.DeliveryURL, &c.Rating,
		&c.Feedback, &c.Archived, &c.Version, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Campaign{}, domain.ErrCampaignNotFound
		}
		return domain.Campaign{}, fmt.Errorf("scanning campaign: %w", err)
	}

	c.Platform = domain.Platform(platform)
	c.Phase = domain.Phase(phase)
	c.Deadline, _ = time.Parse(timeFormat, deadline)
	c.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	c.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return c, nil
}

// scanCampaignFromRows scans a single row from Rows (used in List).
// List returns the campaign rows without checklist or history; callers
// that need the full state load by id.
func (r *CampaignRepository) scanCampaignFromRows(rows *sql.Rows) (domain.Campaign, error) {
	var c domain.Campaign
	var platform, phase, deadline, createdAt, updatedAt string

	err := rows.Scan(&c.ID, &c.Title, &platform, &c.BudgetCents, &deadline,
		&c.CreatorID, &c.AdvertiserID, &phase, &c.DeliveryURL, &c.Rating,
		&c.Feedback, &c.Archived, &c.Version, &createdAt, &updatedAt)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("scanning campaign row: %w", err)
	}

	c.Platform = domain.Platform(platform)
	c.Phase = domain.Phase(phase)
	c.Deadline, _ = time.Parse(timeFormat, deadline)
	c.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	c.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return c, nil
}
