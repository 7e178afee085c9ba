package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/openmunicipal/civicportal/internal/errs"
	"github.com/openmunicipal/civicportal/internal/model"
	"github.com/openmunicipal/civicportal/internal/repository"
)

// ComplaintRepo implements ComplaintRepository using PostgreSQL.
type ComplaintRepo struct{ db *DB }

// NewComplaintRepo constructs a complaint repository.
func NewComplaintRepo(db *DB) *ComplaintRepo { return &ComplaintRepo{db: db} }

const complaintCols = `id, tracking_number, user_id, type, status, priority, description,
ward_id, sub_zone_id, area, landmark, address, latitude, longitude,
contact_name, contact_email, contact_phone, created_at, updated_at, resolved_at`

func scanComplaint(row pgx.Row) (*model.Complaint, error) {
	var c model.Complaint
	var typ, status, prio string
	err := row.Scan(&c.ID, &c.TrackingNumber, &c.UserID, &typ, &status, &prio, &c.Description,
		&c.WardID, &c.SubZoneID, &c.Area, &c.Landmark, &c.Address, &c.Latitude, &c.Longitude,
		&c.ContactName, &c.ContactEmail, &c.ContactPhone, &c.CreatedAt, &c.UpdatedAt, &c.ResolvedAt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	c.Type = model.ComplaintType(typ)
	c.Status = model.ComplaintStatus(status)
	c.Priority = model.Priority(prio)
	return &c, nil
}

// Create inserts the complaint and its attachment rows in one transaction.
func (r *ComplaintRepo) Create(ctx context.Context, c *model.Complaint) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const ins = `
INSERT INTO complaints (id, tracking_number, user_id, type, status, priority, description,
  ward_id, sub_zone_id, area, landmark, address, latitude, longitude,
  contact_name, contact_email, contact_phone)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	if _, err = tx.Exec(ctx, ins,
		c.ID, c.TrackingNumber, c.UserID, string(c.Type), string(c.Status), string(c.Priority), c.Description,
		c.WardID, c.SubZoneID, c.Area, c.Landmark, c.Address, c.Latitude, c.Longitude,
		c.ContactName, c.ContactEmail, c.ContactPhone); err != nil {
		if isUniqueViolation(err) {
			err = errs.ErrAlreadyExists
		}
		return err
	}

	const insAtt = `
INSERT INTO attachments (id, complaint_id, file_name, mime_type, size_bytes, storage_key)
VALUES ($1,$2,$3,$4,$5,$6)`
	for i := range c.Attachments {
		a := &c.Attachments[i]
		if _, err = tx.Exec(ctx, insAtt, a.ID, c.ID, a.FileName, a.MimeType, a.SizeBytes, a.StorageKey); err != nil {
			return err
		}
	}
	return nil
}

// GetByID selects a complaint with attachments.
func (r *ComplaintRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Complaint, error) {
	const q = `SELECT ` + complaintCols + ` FROM complaints WHERE id=$1`
	c, err := scanComplaint(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadAttachments(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetByTracking selects a complaint by tracking number with attachments.
func (r *ComplaintRepo) GetByTracking(ctx context.Context, trackingNumber string) (*model.Complaint, error) {
	const q = `SELECT ` + complaintCols + ` FROM complaints WHERE tracking_number=$1`
	c, err := scanComplaint(r.db.Pool.QueryRow(ctx, q, trackingNumber))
	if err != nil {
		return nil, err
	}
	if err := r.loadAttachments(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ComplaintRepo) loadAttachments(ctx context.Context, c *model.Complaint) error {
	const q = `
SELECT id, complaint_id, file_name, mime_type, size_bytes, storage_key, created_at
FROM attachments WHERE complaint_id=$1 ORDER BY created_at`
	rows, err := r.db.Pool.Query(ctx, q, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.ID, &a.ComplaintID, &a.FileName, &a.MimeType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt); err != nil {
			return err
		}
		c.Attachments = append(c.Attachments, a)
	}
	return rows.Err()
}

// ListByUser returns the user's complaints, newest first.
func (r *ComplaintRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Complaint, error) {
	const q = `SELECT ` + complaintCols + ` FROM complaints WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectComplaints(rows, nil)
}

// List returns complaints matching the filter plus the total match count.
func (r *ComplaintRepo) List(ctx context.Context, f repository.ComplaintFilter) ([]model.Complaint, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	const q = `
SELECT ` + complaintCols + `, count(*) OVER() AS total
FROM complaints
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR type = $2)
  AND ($3::uuid IS NULL OR ward_id = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`
	rows, err := r.db.Pool.Query(ctx, q, string(f.Status), string(f.Type), f.WardID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var total int64
	out, err := collectComplaints(rows, &total)
	return out, total, err
}

func collectComplaints(rows pgx.Rows, total *int64) ([]model.Complaint, error) {
	var out []model.Complaint
	for rows.Next() {
		var c model.Complaint
		var typ, status, prio string
		dest := []any{&c.ID, &c.TrackingNumber, &c.UserID, &typ, &status, &prio, &c.Description,
			&c.WardID, &c.SubZoneID, &c.Area, &c.Landmark, &c.Address, &c.Latitude, &c.Longitude,
			&c.ContactName, &c.ContactEmail, &c.ContactPhone, &c.CreatedAt, &c.UpdatedAt, &c.ResolvedAt}
		if total != nil {
			dest = append(dest, total)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		c.Type = model.ComplaintType(typ)
		c.Status = model.ComplaintStatus(status)
		c.Priority = model.Priority(prio)
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a complaint; resolved_at is stamped on RESOLVED
// and cleared when the complaint is reopened.
func (r *ComplaintRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ComplaintStatus) error {
	const q = `
UPDATE complaints
SET status=$2,
    updated_at=now(),
    resolved_at=CASE
      WHEN $2 = 'RESOLVED' THEN now()
      WHEN $2 = 'REOPENED' THEN NULL
      ELSE resolved_at
    END
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
