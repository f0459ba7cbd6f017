package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/eduflow/stms/core/study"
)

type studyRepository struct {
	db *sqlx.DB
}

var _ study.Repository = (*studyRepository)(nil)

func NewStudyRepository(db *sql.DB) *studyRepository {
	return &studyRepository{db: sqlx.NewDb(db, "postgres")}
}

// ------------------------------------------------------------------ subjects

func (repo *studyRepository) CreateSubject(ctx context.Context, sub study.Subject) (study.Subject, error) {
	const query = `
INSERT INTO subjects (user_id, subject_name, subject_code, color_code, description,
                      target_hours_per_week, priority, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`
	err := repo.db.QueryRowxContext(
		ctx, query,
		sub.UserID, sub.SubjectName, sub.SubjectCode, sub.ColorCode, sub.Description,
		sub.TargetHoursPerWeek, sub.Priority, sub.IsActive, sub.CreatedAt, sub.UpdatedAt,
	).Scan(&sub.ID)
	if err != nil {
		return study.Subject{}, errors.Wrap(err, "creating subject")
	}
	return sub, nil
}

func (repo *studyRepository) QuerySubjects(ctx context.Context, ownerID int) ([]study.Subject, error) {
	var subs []study.Subject
	const query = `SELECT * FROM subjects WHERE user_id = $1 ORDER BY subject_name`
	if err := repo.db.SelectContext(ctx, &subs, query, ownerID); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return subs, nil
}

func (repo *studyRepository) GetSubjectByID(ctx context.Context, ownerID, id int) (study.Subject, error) {
	var sub study.Subject
	const query = `SELECT * FROM subjects WHERE id = $1 AND user_id = $2`
	if err := repo.db.GetContext(ctx, &sub, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return study.Subject{}, study.ErrNotFound
		}
		return study.Subject{}, errors.Wrap(err, "getting subject")
	}
	return sub, nil
}

func (repo *studyRepository) UpdateSubject(ctx context.Context, sub study.Subject) (study.Subject, error) {
	const query = `
UPDATE subjects
SET subject_name = $1, subject_code = $2, color_code = $3, description = $4,
    target_hours_per_week = $5, priority = $6, is_active = $7, updated_at = $8
WHERE id = $9 AND user_id = $10`
	res, err := repo.db.ExecContext(
		ctx, query,
		sub.SubjectName, sub.SubjectCode, sub.ColorCode, sub.Description,
		sub.TargetHoursPerWeek, sub.Priority, sub.IsActive, sub.UpdatedAt,
		sub.ID, sub.UserID,
	)
	if err != nil {
		return study.Subject{}, errors.Wrap(err, "updating subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return study.Subject{}, study.ErrNotFound
	}
	return sub, nil
}

func (repo *studyRepository) DeleteSubject(ctx context.Context, ownerID, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return study.ErrNotFound
	}
	return nil
}

// --------------------------------------------------------------------- tasks

func (repo *studyRepository) CreateTask(ctx context.Context, task study.Task) (study.Task, error) {
	const query = `
INSERT INTO tasks (user_id, subject_id, created_by, title, description, task_type, priority,
                   difficulty, due_date, estimated_duration, status, completion_percentage,
                   created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id`
	err := repo.db.QueryRowxContext(
		ctx, query,
		task.UserID, task.SubjectID, task.CreatedBy, task.Title, task.Description,
		task.TaskType, task.Priority, task.Difficulty, task.DueDate, task.EstimatedDuration,
		task.Status, task.CompletionPercentage, task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ID)
	if err != nil {
		return study.Task{}, errors.Wrap(err, "creating task")
	}
	return task, nil
}

func (repo *studyRepository) QueryTasks(ctx context.Context, ownerID int, filter study.TaskFilter) ([]study.Task, error) {
	query := `SELECT * FROM tasks WHERE user_id = ?`
	args := []interface{}{ownerID}
	if filter.SubjectID != nil {
		query += ` AND subject_id = ?`
		args = append(args, *filter.SubjectID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, filter.Priority)
	}
	if orderings := study.TaskOrderings(filter.Orderings); len(orderings) > 0 {
		clauses := make([]string, 0, len(orderings))
		for _, ord := range orderings {
			clauses = append(clauses, ord.String())
		}
		query += ` ORDER BY ` + strings.Join(clauses, ", ")
	} else {
		query += ` ORDER BY due_date NULLS LAST, created_at DESC`
	}

	var tasks []study.Task
	if err := repo.db.SelectContext(ctx, &tasks, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	return tasks, nil
}

func (repo *studyRepository) GetTaskByID(ctx context.Context, ownerID, id int) (study.Task, error) {
	var task study.Task
	const query = `SELECT * FROM tasks WHERE id = $1 AND user_id = $2`
	if err := repo.db.GetContext(ctx, &task, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return study.Task{}, study.ErrNotFound
		}
		return study.Task{}, errors.Wrap(err, "getting task")
	}
	return task, nil
}

func (repo *studyRepository) UpdateTask(ctx context.Context, task study.Task) (study.Task, error) {
	const query = `
UPDATE tasks
SET subject_id = $1, title = $2, description = $3, task_type = $4, priority = $5,
    difficulty = $6, due_date = $7, estimated_duration = $8, actual_duration = $9,
    status = $10, completion_date = $11, completion_percentage = $12, updated_at = $13
WHERE id = $14 AND user_id = $15`
	res, err := repo.db.ExecContext(
		ctx, query,
		task.SubjectID, task.Title, task.Description, task.TaskType, task.Priority,
		task.Difficulty, task.DueDate, task.EstimatedDuration, task.ActualDuration,
		task.Status, task.CompletionDate, task.CompletionPercentage, task.UpdatedAt,
		task.ID, task.UserID,
	)
	if err != nil {
		return study.Task{}, errors.Wrap(err, "updating task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return study.Task{}, study.ErrNotFound
	}
	return task, nil
}

func (repo *studyRepository) DeleteTask(ctx context.Context, ownerID, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return study.ErrNotFound
	}
	return nil
}

// ----------------------------------------------------------------- schedules

func (repo *studyRepository) CreateSchedule(ctx context.Context, sch study.Schedule) (study.Schedule, error) {
	const query = `
INSERT INTO schedules (user_id, subject_id, created_by, title, description, start_time, end_time,
                       location, is_recurring, recurrence_pattern, recurrence_days,
                       recurrence_end_date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING id`
	err := repo.db.QueryRowxContext(
		ctx, query,
		sch.UserID, sch.SubjectID, sch.CreatedBy, sch.Title, sch.Description,
		sch.StartTime, sch.EndTime, sch.Location, sch.IsRecurring, sch.RecurrencePattern,
		sch.RecurrenceDays, sch.RecurrenceEndDate, sch.Status, sch.CreatedAt, sch.UpdatedAt,
	).Scan(&sch.ID)
	if err != nil {
		return study.Schedule{}, errors.Wrap(err, "creating schedule")
	}
	return sch, nil
}

func (repo *studyRepository) QuerySchedules(ctx context.Context, ownerID int, filter study.ScheduleFilter) ([]study.Schedule, error) {
	query := `SELECT * FROM schedules WHERE user_id = ?`
	args := []interface{}{ownerID}
	if !filter.From.IsZero() {
		query += ` AND end_time >= ?`
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		query += ` AND start_time <= ?`
		args = append(args, filter.To)
	}
	query += ` ORDER BY start_time`

	var schedules []study.Schedule
	if err := repo.db.SelectContext(ctx, &schedules, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying schedules")
	}
	return schedules, nil
}

func (repo *studyRepository) GetScheduleByID(ctx context.Context, ownerID, id int) (study.Schedule, error) {
	var sch study.Schedule
	const query = `SELECT * FROM schedules WHERE id = $1 AND user_id = $2`
	if err := repo.db.GetContext(ctx, &sch, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return study.Schedule{}, study.ErrNotFound
		}
		return study.Schedule{}, errors.Wrap(err, "getting schedule")
	}
	return sch, nil
}

func (repo *studyRepository) UpdateSchedule(ctx context.Context, sch study.Schedule) (study.Schedule, error) {
	const query = `
UPDATE schedules
SET subject_id = $1, title = $2, description = $3, start_time = $4, end_time = $5,
    location = $6, is_recurring = $7, recurrence_pattern = $8, recurrence_days = $9,
    recurrence_end_date = $10, status = $11, updated_at = $12
WHERE id = $13 AND user_id = $14`
	res, err := repo.db.ExecContext(
		ctx, query,
		sch.SubjectID, sch.Title, sch.Description, sch.StartTime, sch.EndTime,
		sch.Location, sch.IsRecurring, sch.RecurrencePattern, sch.RecurrenceDays,
		sch.RecurrenceEndDate, sch.Status, sch.UpdatedAt,
		sch.ID, sch.UserID,
	)
	if err != nil {
		return study.Schedule{}, errors.Wrap(err, "updating schedule")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return study.Schedule{}, study.ErrNotFound
	}
	return sch, nil
}

func (repo *studyRepository) DeleteSchedule(ctx context.Context, ownerID, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return study.ErrNotFound
	}
	return nil
}

// ------------------------------------------------------------- notifications

func (repo *studyRepository) CreateNotification(ctx context.Context, notif study.Notification) (study.Notification, error) {
	const query = `
INSERT INTO notifications (user_id, sender_id, notification_type, title, message, link_url,
                           priority, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`
	err := repo.db.QueryRowxContext(
		ctx, query,
		notif.UserID, notif.SenderID, notif.NotificationType, notif.Title, notif.Message,
		notif.LinkURL, notif.Priority, notif.IsRead, notif.CreatedAt,
	).Scan(&notif.ID)
	if err != nil {
		return study.Notification{}, errors.Wrap(err, "creating notification")
	}
	return notif, nil
}

func (repo *studyRepository) QueryNotifications(ctx context.Context, ownerID int, unreadOnly bool) ([]study.Notification, error) {
	conds := []string{"user_id = $1"}
	if unreadOnly {
		conds = append(conds, "is_read = FALSE")
	}
	query := `SELECT * FROM notifications WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at DESC`

	var notifs []study.Notification
	if err := repo.db.SelectContext(ctx, &notifs, query, ownerID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	return notifs, nil
}

func (repo *studyRepository) MarkNotificationRead(ctx context.Context, ownerID, id int, at time.Time) (study.Notification, error) {
	const query = `
UPDATE notifications SET is_read = TRUE, read_at = $1
WHERE id = $2 AND user_id = $3 AND is_read = FALSE`
	if _, err := repo.db.ExecContext(ctx, query, at, id, ownerID); err != nil {
		return study.Notification{}, errors.Wrap(err, "marking notification read")
	}

	var notif study.Notification
	if err := repo.db.GetContext(ctx, &notif, `SELECT * FROM notifications WHERE id = $1 AND user_id = $2`, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return study.Notification{}, study.ErrNotFound
		}
		return study.Notification{}, errors.Wrap(err, "getting notification")
	}
	return notif, nil
}
