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
        VALUES ($1,$2,$3,$4,$5)
    `, out.UserID, out.LineUserID, doc, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *users) Get(ctx context.Context, userID string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT doc FROM users WHERE user_id=$1`, userID))
}

func (r *users) GetByLineUserID(ctx context.Context, lineUserID string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT doc FROM users WHERE line_user_id=$1`, lineUserID))
}

func (r *users) Update(ctx context.Context, u *model.User) (*model.User, error) {
	out := *u
	out.UpdatedAt = time.Now().UTC()
	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE users SET doc=$1, updated_at=$2 WHERE user_id=$3
    `, doc, out.UpdatedAt, out.UserID)
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
		`SELECT doc FROM users WHERE user_id=$1 FOR UPDATE`, userID).Scan(&doc); err != nil {
		return nil, notFound(err)
	}
	var u model.User
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
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

	updated, err := marshalDoc(&u)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET doc=$1, updated_at=$2 WHERE user_id=$3`, updated, at, userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	usage := u.Usage
	return &usage, nil
}

// rollUsage zeroes the daily counter when the last recorded call was on
// an earlier UTC day, and the monthly counter on an earlier month.
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
		`SELECT user_id, doc FROM users ORDER BY user_id LIMIT $1`, limit)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	type pending struct {
		id  string
		doc []byte
	}
	var updates []pending
	now := time.Now().UTC()
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return 0, err
		}
		var u model.User
		if err := json.Unmarshal(doc, &u); err != nil {
			return 0, fmt.Errorf("unmarshal user %s: %w", id, err)
		}
		u.Usage.APICalls = 0
		u.Usage.MonthlyAPICalls = 0
		u.UpdatedAt = now
		b, err := marshalDoc(&u)
		if err != nil {
			return 0, err
		}
		updates = append(updates, pending{id: id, doc: b})
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, p := range updates {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE users SET doc=$1, updated_at=$2 WHERE user_id=$3`, p.doc, now, p.id); err != nil {
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
		`SELECT doc FROM users ORDER BY created_at DESC LIMIT $1`, limit)
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
		var u model.User
		if err := json.Unmarshal(doc, &u); err != nil {
			return nil, fmt.Errorf("unmarshal user: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (r *users) Delete(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id=$1`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanUser(row rowScanner) (*model.User, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		return nil, notFound(err)
	}
	var u model.User
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}
