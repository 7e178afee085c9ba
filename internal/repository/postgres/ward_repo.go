package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/openmunicipal/civicportal/internal/errs"
	"github.com/openmunicipal/civicportal/internal/model"
)

// WardRepo implements WardRepository using PostgreSQL.
type WardRepo struct{ db *DB }

// NewWardRepo constructs a ward repository.
func NewWardRepo(db *DB) *WardRepo { return &WardRepo{db: db} }

// ListWithSubZones returns all wards with embedded sub-zones ordered by number.
func (r *WardRepo) ListWithSubZones(ctx context.Context) ([]model.Ward, error) {
	const qw = `SELECT id, number, name FROM wards ORDER BY number`
	rows, err := r.db.Pool.Query(ctx, qw)
	if err != nil {
		return nil, err
	}
	var wards []model.Ward
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var w model.Ward
		if err := rows.Scan(&w.ID, &w.Number, &w.Name); err != nil {
			rows.Close()
			return nil, err
		}
		index[w.ID] = len(wards)
		wards = append(wards, w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	const qz = `SELECT id, ward_id, name FROM sub_zones ORDER BY name`
	zrows, err := r.db.Pool.Query(ctx, qz)
	if err != nil {
		return nil, err
	}
	defer zrows.Close()
	for zrows.Next() {
		var z model.SubZone
		if err := zrows.Scan(&z.ID, &z.WardID, &z.Name); err != nil {
			return nil, err
		}
		if i, ok := index[z.WardID]; ok {
			wards[i].SubZones = append(wards[i].SubZones, z)
		}
	}
	return wards, zrows.Err()
}

// GetByID loads a single ward without sub-zones.
func (r *WardRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Ward, error) {
	const q = `SELECT id, number, name FROM wards WHERE id=$1`
	var w model.Ward
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&w.ID, &w.Number, &w.Name); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &w, nil
}
