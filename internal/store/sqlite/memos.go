package sqlite

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
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO personal_memos (memo_id, user_id, title, content, is_archived, doc, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?)
    `, out.MemoID, out.UserID, out.Title, out.Content, out.IsArchived,
		string(doc), fmtTime(out.CreatedAt), fmtTime(out.UpdatedAt))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *personalMemos) Get(ctx context.Context, memoID string) (*model.PersonalMemo, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM personal_memos WHERE memo_id=?`, memoID).Scan(&doc)
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
	res, err := r.db.ExecContext(ctx, `
        UPDATE personal_memos SET title=?, content=?, is_archived=?, doc=?, updated_at=?
        WHERE memo_id=?
    `, out.Title, out.Content, out.IsArchived, string(doc), fmtTime(out.UpdatedAt), out.MemoID)
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
	q := `SELECT doc FROM personal_memos WHERE user_id=?`
	args := []interface{}{userID}
	if !f.IncludeArchived {
		q += ` AND is_archived = 0`
	}
	if f.Cursor != "" {
		q += ` AND created_at < (SELECT created_at FROM personal_memos WHERE memo_id=?)`
		args = append(args, f.Cursor)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	// Over-fetch when tag-filtering in Go below.
	fetch := limit
	if f.Tag != "" {
		fetch = limit * 4
	}
	args = append(args, fetch)

	memos, err := r.queryPersonalMemos(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if f.Tag == "" {
		return memos, nil
	}
	var out []*model.PersonalMemo
	for _, m := range memos {
		for _, tag := range m.Tags {
			if tag == f.Tag {
				out = append(out, m)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *personalMemos) Search(ctx context.Context, userID, keyword string, limit int) ([]*model.PersonalMemo, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + keyword + "%"
	return r.queryPersonalMemos(ctx, `
        SELECT doc FROM personal_memos
        WHERE user_id=? AND is_archived = 0 AND (title LIKE ? OR content LIKE ?)
        ORDER BY created_at DESC LIMIT ?
    `, userID, pattern, pattern, limit)
}

func (r *personalMemos) Delete(ctx context.Context, memoID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM personal_memos WHERE memo_id=?`, memoID)
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
        VALUES (?,?,?,?,?,?,?,?,?)
    `, out.MemoID, out.GroupID, out.CreatedBy, out.Title, out.Content, out.Version,
		string(doc), fmtTime(out.CreatedAt), fmtTime(out.UpdatedAt))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sharedMemos) Get(ctx context.Context, memoID string) (*model.SharedMemo, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM shared_memos WHERE memo_id=?`, memoID).Scan(&doc)
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
        UPDATE shared_memos SET title=?, content=?, version=?, doc=?, updated_at=?
        WHERE memo_id=? AND version=?
    `, out.Title, out.Content, out.Version, string(doc), fmtTime(out.UpdatedAt), out.MemoID, stored)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx,
			`SELECT 1 FROM shared_memos WHERE memo_id=?`, out.MemoID).Scan(&exists)
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
		`SELECT doc FROM shared_memos WHERE group_id=? ORDER BY created_at DESC LIMIT ?`, groupID, limit)
}

func (r *sharedMemos) Search(ctx context.Context, groupID, keyword string, limit int) ([]*model.SharedMemo, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + keyword + "%"
	return r.querySharedMemos(ctx, `
        SELECT doc FROM shared_memos
        WHERE group_id=? AND (title LIKE ? OR content LIKE ?)
        ORDER BY created_at DESC LIMIT ?
    `, groupID, pattern, pattern, limit)
}

func (r *sharedMemos) Delete(ctx context.Context, memoID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shared_memos WHERE memo_id=?`, memoID)
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
        VALUES (?,?,?,?,?,?,?)
    `, out.PageID, out.UserID, out.ParentPageID, out.Order,
		string(doc), fmtTime(out.CreatedAt), fmtTime(out.UpdatedAt))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *memoPages) Get(ctx context.Context, pageID string) (*model.MemoPage, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM memo_pages WHERE page_id=?`, pageID).Scan(&doc)
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
        UPDATE memo_pages SET parent_page_id=?, page_order=?, doc=?, updated_at=?
        WHERE page_id=?
    `, out.ParentPageID, out.Order, string(doc), fmtTime(out.UpdatedAt), out.PageID)
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
        SELECT doc FROM memo_pages WHERE user_id=? ORDER BY page_order ASC, created_at ASC
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM memo_pages WHERE page_id=?`, pageID)
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
