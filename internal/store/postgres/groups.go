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

type groups struct{ db *sql.DB }

func (r *groups) Create(ctx context.Context, g *model.Group) (*model.Group, error) {
	out := *g
	if out.GroupID == "" {
		out.GroupID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO groups (group_id, line_group_id, doc, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5)
    `, out.GroupID, out.LineGroupID, doc, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *groups) Get(ctx context.Context, groupID string) (*model.Group, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM groups WHERE group_id=$1`, groupID).Scan(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return unmarshalGroup(doc)
}

func (r *groups) GetByLineGroupID(ctx context.Context, lineGroupID string) (*model.Group, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM groups WHERE line_group_id=$1`, lineGroupID).Scan(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return unmarshalGroup(doc)
}

func (r *groups) Update(ctx context.Context, g *model.Group) (*model.Group, error) {
	out := *g
	out.UpdatedAt = time.Now().UTC()
	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE groups SET line_group_id=$1, doc=$2, updated_at=$3 WHERE group_id=$4
    `, out.LineGroupID, doc, out.UpdatedAt, out.GroupID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return &out, nil
}

func (r *groups) ListByMember(ctx context.Context, userID string, limit int) ([]*model.Group, error) {
	if limit <= 0 {
		limit = 50
	}
	// Membership lives inside the document; match on the members array.
	member, err := marshalDoc(map[string]interface{}{
		"members": []map[string]string{{"userId": userID}},
	})
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT doc FROM groups WHERE doc @> $1 ORDER BY created_at DESC LIMIT $2
    `, member, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Group
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		g, err := unmarshalGroup(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *groups) Delete(ctx context.Context, groupID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE group_id=$1`, groupID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func unmarshalGroup(doc []byte) (*model.Group, error) {
	var g model.Group
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, fmt.Errorf("unmarshal group: %w", err)
	}
	return &g, nil
}
