package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/himawari-tools/line-secretary/internal/model"
)

type warikans struct{ db *sql.DB }

func (r *warikans) Create(ctx context.Context, w *model.Warikan) (*model.Warikan, error) {
	out := *w
	if out.WarikanID == "" {
		out.WarikanID = uuid.New().String()
	}
	if out.Status == "" {
		out.Status = model.WarikanActive
	}
	if out.Currency == "" {
		out.Currency = "JPY"
	}
	out.Version = 1
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO warikans (warikan_id, created_by, group_id, status, version, settled_at, doc, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, out.WarikanID, out.CreatedBy, out.GroupID, out.Status, out.Version, out.SettledAt, doc, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *warikans) Get(ctx context.Context, warikanID string) (*model.Warikan, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM warikans WHERE warikan_id=$1`, warikanID).Scan(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return unmarshalWarikan(doc)
}

func (r *warikans) ListByCreator(ctx context.Context, userID string, status model.WarikanStatus, limit int) ([]*model.Warikan, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT doc FROM warikans WHERE created_by=$1 ORDER BY created_at DESC LIMIT $2`
	args := []interface{}{userID, limit}
	if status != "" {
		q = `SELECT doc FROM warikans WHERE created_by=$1 AND status=$2 ORDER BY created_at DESC LIMIT $3`
		args = []interface{}{userID, status, limit}
	}
	return r.queryWarikans(ctx, q, args...)
}

func (r *warikans) ListByGroup(ctx context.Context, groupID string, limit int) ([]*model.Warikan, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.queryWarikans(ctx,
		`SELECT doc FROM warikans WHERE group_id=$1 ORDER BY created_at DESC LIMIT $2`, groupID, limit)
}

func (r *warikans) MarkMemberPaid(ctx context.Context, warikanID, userID string, version int64, now time.Time) (*model.Warikan, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var doc []byte
	var stored int64
	if err := tx.QueryRowContext(ctx,
		`SELECT doc, version FROM warikans WHERE warikan_id=$1 FOR UPDATE`, warikanID).Scan(&doc, &stored); err != nil {
		return nil, notFound(err)
	}
	if stored != version {
		return nil, model.ErrConflict
	}
	w, err := unmarshalWarikan(doc)
	if err != nil {
		return nil, err
	}
	if w.Status.Terminal() {
		return nil, model.ErrConflict
	}
	member := w.Member(userID)
	if member == nil {
		return nil, model.ErrNotFound
	}
	if member.IsPaid {
		return nil, fmt.Errorf("%w: member already paid", model.ErrValidation)
	}

	at := now.UTC()
	member.IsPaid = true
	member.PaidAt = &at
	if w.PaidCount() == len(w.Members) {
		w.Status = model.WarikanSettled
		w.SettledAt = &at
	}
	w.Version = stored + 1
	w.UpdatedAt = at

	updated, err := marshalDoc(w)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `
        UPDATE warikans SET doc=$1, status=$2, version=$3, settled_at=$4, updated_at=$5
        WHERE warikan_id=$6 AND version=$7
    `, updated, w.Status, w.Version, w.SettledAt, at, warikanID, stored)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *warikans) UpdateStatus(ctx context.Context, warikanID string, status model.WarikanStatus, now time.Time) (*model.Warikan, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var doc []byte
	var stored int64
	if err := tx.QueryRowContext(ctx,
		`SELECT doc, version FROM warikans WHERE warikan_id=$1 FOR UPDATE`, warikanID).Scan(&doc, &stored); err != nil {
		return nil, notFound(err)
	}
	w, err := unmarshalWarikan(doc)
	if err != nil {
		return nil, err
	}
	if w.Status.Terminal() {
		return nil, model.ErrConflict
	}

	at := now.UTC()
	w.Status = status
	if status == model.WarikanSettled {
		w.SettledAt = &at
	}
	w.Version = stored + 1
	w.UpdatedAt = at

	updated, err := marshalDoc(w)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE warikans SET doc=$1, status=$2, version=$3, settled_at=$4, updated_at=$5
        WHERE warikan_id=$6
    `, updated, w.Status, w.Version, w.SettledAt, at, warikanID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *warikans) DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM warikans WHERE status=$1 AND settled_at < $2`,
		model.WarikanSettled, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *warikans) Delete(ctx context.Context, warikanID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM warikans WHERE warikan_id=$1`, warikanID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *warikans) queryWarikans(ctx context.Context, q string, args ...interface{}) ([]*model.Warikan, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Warikan
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		w, err := unmarshalWarikan(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func unmarshalWarikan(doc []byte) (*model.Warikan, error) {
	var w model.Warikan
	if err := json.Unmarshal(doc, &w); err != nil {
		return nil, fmt.Errorf("unmarshal warikan: %w", err)
	}
	return &w, nil
}
