package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
)

// --- Personal memos ---

type personalMemos struct{ db *sql.DB }

func (r *personalMemos) Create(ctx context.Context, m *model.PersonalMemo) (*model.PersonalMemo, error) {
	out := *m
	if out.MemoID == "" {
		out.MemoID = uuid.New().String()
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	tags, err := marshalDoc(out.Tags)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO personal_memos (memo_id, user_id, title, content, tags, is_archived, doc, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, out.MemoID, out.UserID, out.Title, out.Content, tags, out.IsArchived, doc, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *personalMemos) Get(ctx context.Context, memoID string) (*model.PersonalMemo, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM personal_memos WHERE memo_id=$1`, memoID).Scan(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return unmarshalPersonalMemo(doc)
}

func (r *personalMemos) Update(ctx context.Context, m *model.PersonalMemo) (*model.PersonalMemo, error) {
	out := *m
	out.UpdatedAt = time.Now().UTC()
	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	tags, err := marshalDoc(out.Tags)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE personal_memos SET title=$1, content=$2, tags=$3, is_archived=$4, doc=$5, updated_at=$6
        WHERE memo_id=$7
    `, out.Title, out.Content, tags, out.IsArchived, doc, out.UpdatedAt, out.MemoID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return &out, nil
}

func (r *personalMemos) List(ctx context.Context, userID string, f store.PersonalMemoFilter) ([]*model.PersonalMemo, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT doc FROM personal_memos WHERE user_id=$1`
	args := []interface{}{userID}
	i := 2
	if !f.IncludeArchived {
		q += ` AND is_archived = FALSE`
	}
	if f.Tag != "" {
		q += fmt.Sprintf(` AND tags @> $%d`, i)
		tag, err := marshalDoc([]string{f.Tag})
		if err != nil {
			return nil, err
		}
		args = append(args, tag)
		i++
	}
	if f.Cursor != "" {
		q += fmt.Sprintf(` AND created_at < (SELECT created_at FROM personal_memos WHERE memo_id=$%d)`, i)
		args = append(args, f.Cursor)
		i++
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, i)
	args = append(args, limit)
	return r.queryPersonalMemos(ctx, q, args...)
}

func (r *personalMemos) Search(ctx context.Context, userID, keyword string, limit int) ([]*model.PersonalMemo, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + keyword + "%"
	return r.queryPersonalMemos(ctx, `
        SELECT doc FROM personal_memos
        WHERE user_id=$1 AND is_archived = FALSE AND (title ILIKE $2 OR content ILIKE $2)
        ORDER BY created_at DESC LIMIT $3
    `, userID, pattern, limit)
}

func (r *personalMemos) Delete(ctx context.Context, memoID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM personal_memos WHERE memo_id=$1`, memoID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *personalMemos) queryPersonalMemos(ctx context.Context, q string, args ...interface{}) ([]*model.PersonalMemo, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.PersonalMemo
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		m, err := unmarshalPersonalMemo(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func unmarshalPersonalMemo(doc []byte) (*model.PersonalMemo, error) {
	var m model.PersonalMemo
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("unmarshal personal memo: %w", err)
	}
	return &m, nil
}

// --- Shared memos ---

type sharedMemos struct{ db *sql.DB }

func (r *sharedMemos) Create(ctx context.Context, m *model.SharedMemo) (*model.SharedMemo, error) {
	out := *m
	if out.MemoID == "" {
		out.MemoID = uuid.New().String()
	}
	if out.Status == "" {
		out.Status = "active"
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
        INSERT INTO shared_memos (memo_id, group_id, created_by, title, content, version, doc, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, out.MemoID, out.GroupID, out.CreatedBy, out.Title, out.Content, out.Version, doc, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sharedMemos) Get(ctx context.Context, memoID string) (*model.SharedMemo, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM shared_memos WHERE memo_id=$1`, memoID).Scan(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return unmarshalSharedMemo(doc)
}

func (r *sharedMemos) Update(ctx context.Context, m *model.SharedMemo) (*model.SharedMemo, error) {
	out := *m
	stored := out.Version
	out.Version = stored + 1
	out.UpdatedAt = time.Now().UTC()

	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE shared_memos SET title=$1, content=$2, version=$3, doc=$4, updated_at=$5
        WHERE memo_id=$6 AND version=$7
    `, out.Title, out.Content, out.Version, doc, out.UpdatedAt, out.MemoID, stored)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Missing row and stale version look the same here; disambiguate.
		var exists int
		err := r.db.QueryRowContext(ctx,
			`SELECT 1 FROM shared_memos WHERE memo_id=$1`, out.MemoID).Scan(&exists)
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, model.ErrConflict
	}
	return &out, nil
}

func (r *sharedMemos) ListByGroup(ctx context.Context, groupID string, limit int) ([]*model.SharedMemo, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.querySharedMemos(ctx,
		`SELECT doc FROM shared_memos WHERE group_id=$1 ORDER BY created_at DESC LIMIT $2`, groupID, limit)
}

func (r *sharedMemos) Search(ctx context.Context, groupID, keyword string, limit int) ([]*model.SharedMemo, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + keyword + "%"
	return r.querySharedMemos(ctx, `
        SELECT doc FROM shared_memos
        WHERE group_id=$1 AND (title ILIKE $2 OR content ILIKE $2)
        ORDER BY created_at DESC LIMIT $3
    `, groupID, pattern, limit)
}

func (r *sharedMemos) Delete(ctx context.Context, memoID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shared_memos WHERE memo_id=$1`, memoID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *sharedMemos) querySharedMemos(ctx context.Context, q string, args ...interface{}) ([]*model.SharedMemo, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.SharedMemo
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		m, err := unmarshalSharedMemo(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func unmarshalSharedMemo(doc []byte) (*model.SharedMemo, error) {
	var m model.SharedMemo
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("unmarshal shared memo: %w", err)
	}
	return &m, nil
}

// --- Memo pages ---

type memoPages struct{ db *sql.DB }

func (r *memoPages) Create(ctx context.Context, p *model.MemoPage) (*model.MemoPage, error) {
	out := *p
	if out.PageID == "" {
		out.PageID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO memo_pages (page_id, user_id, parent_page_id, page_order, doc, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, out.PageID, out.UserID, out.ParentPageID, out.Order, doc, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *memoPages) Get(ctx context.Context, pageID string) (*model.MemoPage, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM memo_pages WHERE page_id=$1`, pageID).Scan(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return unmarshalMemoPage(doc)
}

func (r *memoPages) Update(ctx context.Context, p *model.MemoPage) (*model.MemoPage, error) {
	if p.ParentPageID != nil && *p.ParentPageID == p.PageID {
		return nil, fmt.Errorf("%w: page cannot be its own parent", model.ErrValidation)
	}
	out := *p
	out.UpdatedAt = time.Now().UTC()
	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE memo_pages SET parent_page_id=$1, page_order=$2, doc=$3, updated_at=$4
        WHERE page_id=$5
    `, out.ParentPageID, out.Order, doc, out.UpdatedAt, out.PageID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return &out, nil
}

func (r *memoPages) ListByUser(ctx context.Context, userID string) ([]*model.MemoPage, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT doc FROM memo_pages WHERE user_id=$1 ORDER BY page_order ASC, created_at ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.MemoPage
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		p, err := unmarshalMemoPage(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *memoPages) Delete(ctx context.Context, pageID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memo_pages WHERE page_id=$1`, pageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func unmarshalMemoPage(doc []byte) (*model.MemoPage, error) {
	var p model.MemoPage
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("unmarshal memo page: %w", err)
	}
	return &p, nil
}
