package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/himawari-tools/line-secretary/internal/model"
)

type users struct{ db *sql.DB }

func (r *users) Create(ctx context.Context, u *model.User) (*model.User, error) {
	out := *u
	if out.UserID == "" {
		out.UserID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO users (user_id, line_user_id, doc, created_at, updated_at)
        VALUES (?,?,?,?,?)
    `, out.UserID, out.LineUserID, string(doc), fmtTime(out.CreatedAt), fmtTime(out.UpdatedAt))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM users WHERE user_id=?`, userID).Scan(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return unmarshalUser(doc)
}

func (r *users) GetByLineUserID(ctx context.Context, lineUserID string) (*model.User, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM users WHERE line_user_id=?`, lineUserID).Scan(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return unmarshalUser(doc)
}

func (r *users) Update(ctx context.Context, u *model.User) (*model.User, error) {
	out := *u
	out.UpdatedAt = time.Now().UTC()
	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE users SET doc=?, updated_at=? WHERE user_id=?
    `, string(doc), fmtTime(out.UpdatedAt), out.UserID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return &out, nil
}

func (r *users) IncrementAPIUsage(ctx context.Context, userID string, limits model.PlanLimits, now time.Time) (*model.UsageCounters, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var doc []byte
	if err := tx.QueryRowContext(ctx,
		`SELECT doc FROM users WHERE user_id=?`, userID).Scan(&doc); err != nil {
		return nil, notFound(err)
	}
	u, err := unmarshalUser(doc)
	if err != nil {
		return nil, err
	}

	u.Usage = rollUsage(u.Usage, now)
	if !limits.AllowsAPICall(u.Usage) {
		return nil, model.ErrQuotaExceeded
	}
	u.Usage.APICalls++
	u.Usage.MonthlyAPICalls++
	at := now.UTC()
	u.Usage.LastAPICall = &at
	u.UpdatedAt = at

	updated, err := marshalDoc(u)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET doc=?, updated_at=? WHERE user_id=?`, string(updated), fmtTime(at), userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	usage := u.Usage
	return &usage, nil
}

func rollUsage(u model.UsageCounters, now time.Time) model.UsageCounters {
	if u.LastAPICall == nil {
		return u
	}
	last := u.LastAPICall.UTC()
	now = now.UTC()
	if last.Year() != now.Year() || last.Month() != now.Month() {
		u.MonthlyAPICalls = 0
		u.APICalls = 0
		return u
	}
	if last.YearDay() != now.YearDay() {
		u.APICalls = 0
	}
	return u
}

func (r *users) ResetMonthlyUsage(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, doc FROM users ORDER BY user_id LIMIT ?`, limit)
	if err != nil {
		return 0, err
	}

	type pending struct {
		id  string
		doc string
	}
	var updates []pending
	now := time.Now().UTC()
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			_ = rows.Close()
			return 0, err
		}
		u, err := unmarshalUser(doc)
		if err != nil {
			_ = rows.Close()
			return 0, err
		}
		u.Usage.APICalls = 0
		u.Usage.MonthlyAPICalls = 0
		u.UpdatedAt = now
		b, err := marshalDoc(u)
		if err != nil {
			_ = rows.Close()
			return 0, err
		}
		updates = append(updates, pending{id: id, doc: string(b)})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	for _, p := range updates {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE users SET doc=?, updated_at=? WHERE user_id=?`, p.doc, fmtTime(now), p.id); err != nil {
			return 0, err
		}
	}
	return len(updates), nil
}

func (r *users) List(ctx context.Context, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT doc FROM users ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.User
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		u, err := unmarshalUser(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *users) Delete(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id=?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func unmarshalUser(doc []byte) (*model.User, error) {
	var u model.User
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}
