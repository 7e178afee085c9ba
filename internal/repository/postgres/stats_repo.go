package postgres

import (
	"context"

	"github.com/openmunicipal/civicportal/internal/model"
)

// StatsRepo implements StatsRepository using PostgreSQL.
type StatsRepo struct{ db *DB }

// NewStatsRepo constructs a stats repository.
func NewStatsRepo(db *DB) *StatsRepo { return &StatsRepo{db: db} }

// Overview returns global counts by status and type plus average resolution time.
func (r *StatsRepo) Overview(ctx context.Context) (*model.StatsOverview, error) {
	ov := &model.StatsOverview{
		ByStatus: map[model.ComplaintStatus]int64{},
		ByType:   map[model.ComplaintType]int64{},
	}

	const qs = `SELECT status, count(*) FROM complaints GROUP BY status`
	rows, err := r.db.Pool.Query(ctx, qs)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, err
		}
		ov.ByStatus[model.ComplaintStatus(status)] = n
		ov.Total += n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	const qt = `SELECT type, count(*) FROM complaints GROUP BY type`
	trows, err := r.db.Pool.Query(ctx, qt)
	if err != nil {
		return nil, err
	}
	for trows.Next() {
		var typ string
		var n int64
		if err := trows.Scan(&typ, &n); err != nil {
			trows.Close()
			return nil, err
		}
		ov.ByType[model.ComplaintType(typ)] = n
	}
	if err := trows.Err(); err != nil {
		trows.Close()
		return nil, err
	}
	trows.Close()

	const qa = `
SELECT COALESCE(avg(EXTRACT(EPOCH FROM resolved_at - created_at) / 3600), 0)
FROM complaints WHERE resolved_at IS NOT NULL`
	if err := r.db.Pool.QueryRow(ctx, qa).Scan(&ov.AvgResolutionHrs); err != nil {
		return nil, err
	}
	return ov, nil
}

// ByWard returns per-ward rollups ordered by ward number.
func (r *StatsRepo) ByWard(ctx context.Context) ([]model.WardStats, error) {
	const q = `
SELECT w.id, w.number, w.name,
  count(c.id) AS total,
  count(c.id) FILTER (WHERE c.status IN ('REGISTERED','IN_PROGRESS','REOPENED')) AS open,
  count(c.id) FILTER (WHERE c.status IN ('RESOLVED','CLOSED')) AS resolved
FROM wards w
LEFT JOIN complaints c ON c.ward_id = w.id
GROUP BY w.id, w.number, w.name
ORDER BY w.number`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WardStats
	for rows.Next() {
		var ws model.WardStats
		if err := rows.Scan(&ws.WardID, &ws.WardNumber, &ws.WardName, &ws.Total, &ws.Open, &ws.Resolved); err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}
