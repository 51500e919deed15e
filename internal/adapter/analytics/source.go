// Package analytics resolves live metric values for campaigns from the
// shared SQLite database. Values arrive through the ingest endpoint;
// the workflow core only ever reads them.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/castmatch/campflow/internal/domain"
)

// Compile-time check: Source implements domain.MetricsSource.
var _ domain.MetricsSource = (*Source)(nil)

// Source reads and records campaign metric values.
type Source struct {
	db *sql.DB
}

// New creates a metrics source on an already-migrated database handle.
func New(db *sql.DB) *Source {
	return &Source{db: db}
}

// Values returns all recorded metric values for a campaign, keyed by
// metric id. Campaigns with no analytics yet yield an empty map.
func (s *Source) Values(ctx context.Context, campaignID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric_id, value FROM campaign_metrics WHERE campaign_id = ?`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying campaign metrics: %w", err)
	}
	defer rows.Close()

	values := map[string]float64{}
	for rows.Next() {
		var metricID string
		var value float64
		if err := rows.Scan(&metricID, &value); err != nil {
			return nil, fmt.Errorf("scanning metric row: %w", err)
		}
		values[metricID] = value
	}

	return values, rows.Err()
}

// Record upserts one metric value for a campaign.
func (s *Source) Record(ctx context.Context, campaignID, metricID string, value float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaign_metrics (campaign_id, metric_id, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (campaign_id, metric_id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		campaignID, metricID, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording metric %q: %w", metricID, err)
	}
	return nil
}
