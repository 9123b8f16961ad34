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

type schedules struct{ db *sql.DB }

func (r *schedules) Create(ctx context.Context, s *model.Schedule) (*model.Schedule, error) {
	out := *s
	if out.ScheduleID == "" {
		out.ScheduleID = uuid.New().String()
	}
	if out.Status == "" {
		out.Status = model.SchedulePending
	}
	now := time.Now().UTC()
	out.StartTime = out.StartTime.UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO schedules (schedule_id, user_id, group_id, status, start_time, all_day, reminder_sent_at, doc, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `, out.ScheduleID, out.UserID, out.GroupID, out.Status, out.StartTime, out.AllDay, out.ReminderSentAt, doc, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *schedules) Get(ctx context.Context, scheduleID string) (*model.Schedule, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM schedules WHERE schedule_id=$1`, scheduleID).Scan(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return unmarshalSchedule(doc)
}

func (r *schedules) Update(ctx context.Context, s *model.Schedule) (*model.Schedule, error) {
	out := *s
	out.UpdatedAt = time.Now().UTC()
	doc, err := marshalDoc(&out)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE schedules SET doc=$1, status=$2, start_time=$3, all_day=$4, reminder_sent_at=$5, updated_at=$6
        WHERE schedule_id=$7
    `, doc, out.Status, out.StartTime.UTC(), out.AllDay, out.ReminderSentAt, out.UpdatedAt, out.ScheduleID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return &out, nil
}

func (r *schedules) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Schedule, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.querySchedules(ctx,
		`SELECT doc FROM schedules WHERE user_id=$1 ORDER BY start_time ASC LIMIT $2`, userID, limit)
}

func (r *schedules) ListInRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Schedule, error) {
	return r.querySchedules(ctx, `
        SELECT doc FROM schedules
        WHERE user_id=$1 AND start_time >= $2 AND start_time < $3
        ORDER BY start_time ASC
    `, userID, from.UTC(), to.UTC())
}

func (r *schedules) ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.Schedule, error) {
	return r.querySchedules(ctx, `
        SELECT doc FROM schedules
        WHERE start_time >= $1 AND start_time < $2
          AND all_day = FALSE
          AND reminder_sent_at IS NULL
          AND status NOT IN ($3, $4)
        ORDER BY start_time ASC
    `, from.UTC(), to.UTC(), model.ScheduleCompleted, model.ScheduleCancelled)
}

func (r *schedules) MarkReminderSent(ctx context.Context, scheduleID string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var doc []byte
	if err := tx.QueryRowContext(ctx,
		`SELECT doc FROM schedules WHERE schedule_id=$1 FOR UPDATE`, scheduleID).Scan(&doc); err != nil {
		return notFound(err)
	}
	s, err := unmarshalSchedule(doc)
	if err != nil {
		return err
	}
	sent := at.UTC()
	s.ReminderSentAt = &sent
	s.UpdatedAt = sent

	updated, err := marshalDoc(s)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE schedules SET doc=$1, reminder_sent_at=$2, updated_at=$3 WHERE schedule_id=$4
    `, updated, sent, sent, scheduleID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *schedules) UpdateStatus(ctx context.Context, scheduleID string, status model.ScheduleStatus, now time.Time) (*model.Schedule, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var doc []byte
	if err := tx.QueryRowContext(ctx,
		`SELECT doc FROM schedules WHERE schedule_id=$1 FOR UPDATE`, scheduleID).Scan(&doc); err != nil {
		return nil, notFound(err)
	}
	s, err := unmarshalSchedule(doc)
	if err != nil {
		return nil, err
	}
	if s.Status.Terminal() {
		return nil, model.ErrConflict
	}

	at := now.UTC()
	s.Status = status
	s.UpdatedAt = at

	updated, err := marshalDoc(s)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE schedules SET doc=$1, status=$2, updated_at=$3 WHERE schedule_id=$4
    `, updated, s.Status, at, scheduleID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *schedules) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM schedules WHERE status=$1 AND start_time < $2`,
		model.ScheduleCompleted, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *schedules) Delete(ctx context.Context, scheduleID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE schedule_id=$1`, scheduleID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *schedules) querySchedules(ctx context.Context, q string, args ...interface{}) ([]*model.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Schedule
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		s, err := unmarshalSchedule(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func unmarshalSchedule(doc []byte) (*model.Schedule, error) {
	var s model.Schedule
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}
	return &s, nil
}
