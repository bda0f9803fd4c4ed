package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shipmentportal/internal/model"
)

// recentMilestoneWindow bounds the dashboard's recent_milestones counter.
const recentMilestoneWindow = 7 * 24 * time.Hour

type DashboardRepository struct {
	db *pgxpool.Pool
}

func NewDashboardRepository(db *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{db: db}
}

func (r *DashboardRepository) Stats(ctx context.Context, now time.Time) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{ByStatus: map[string]int{}}

	batch := &pgx.Batch{}
	batch.Queue(`SELECT COUNT(*) FROM shipments WHERE current_status != 'COMPLETED'`).
		QueryRow(func(row pgx.Row) error { return row.Scan(&stats.ActiveShipments) })
	batch.Queue(`SELECT current_status, COUNT(*) FROM shipments GROUP BY current_status`).
		Query(func(rows pgx.Rows) error {
			for rows.Next() {
				var (
					status string
					n      int
				)
				if err := rows.Scan(&status, &n); err != nil {
					return err
				}
				stats.ByStatus[status] = n
			}
			return rows.Err()
		})
	batch.Queue(`SELECT COUNT(*) FROM exceptions WHERE status != 'RESOLVED'`).
		QueryRow(func(row pgx.Row) error { return row.Scan(&stats.PendingExceptions) })
	batch.Queue(`SELECT COUNT(*) FROM milestones WHERE actual_date > $1`, now.Add(-recentMilestoneWindow)).
		QueryRow(func(row pgx.Row) error { return row.Scan(&stats.RecentMilestones) })

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return nil, err
	}
	return stats, nil
}
