package study

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/eduflow/stms/core"
)

var (
	// errors
	ErrNotFound       = errors.New("not found")
	ErrSubjectInvalid = errors.New("invalid subject selection")
	ErrScheduleTimes  = errors.New("end_time must be after start_time")

	// for mocking
	NowFunc = time.Now
)

type (
	// Repository scopes every lookup and mutation to an owner. A row owned
	// by someone else is indistinguishable from a missing row; repos return
	// ErrNotFound for both.
	Repository interface {
		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		QuerySubjects(ctx context.Context, ownerID int) ([]Subject, error)
		GetSubjectByID(ctx context.Context, ownerID, id int) (Subject, error)
		UpdateSubject(ctx context.Context, sub Subject) (Subject, error)
		DeleteSubject(ctx context.Context, ownerID, id int) error

		CreateTask(ctx context.Context, task Task) (Task, error)
		QueryTasks(ctx context.Context, ownerID int, filter TaskFilter) ([]Task, error)
		GetTaskByID(ctx context.Context, ownerID, id int) (Task, error)
		UpdateTask(ctx context.Context, task Task) (Task, error)
		DeleteTask(ctx context.Context, ownerID, id int) error

		CreateSchedule(ctx context.Context, sch Schedule) (Schedule, error)
		QuerySchedules(ctx context.Context, ownerID int, filter ScheduleFilter) ([]Schedule, error)
		GetScheduleByID(ctx context.Context, ownerID, id int) (Schedule, error)
		UpdateSchedule(ctx context.Context, sch Schedule) (Schedule, error)
		DeleteSchedule(ctx context.Context, ownerID, id int) error

		CreateNotification(ctx context.Context, notif Notification) (Notification, error)
		QueryNotifications(ctx context.Context, ownerID int, unreadOnly bool) ([]Notification, error)
		MarkNotificationRead(ctx context.Context, ownerID, id int, at time.Time) (Notification, error)
	}

	Service interface {
		CreateSubject(ctx context.Context, ownerID int, ns NewSubject) (Subject, error)
		Subjects(ctx context.Context, ownerID int) ([]Subject, error)
		GetSubject(ctx context.Context, ownerID, id int) (Subject, error)
		UpdateSubject(ctx context.Context, ownerID, id int, us UpdateSubject) (Subject, error)
		DeleteSubject(ctx context.Context, ownerID, id int) error

		CreateTask(ctx context.Context, ownerID int, nt NewTask) (Task, error)
		Tasks(ctx context.Context, ownerID int, filter TaskFilter) ([]Task, error)
		GetTask(ctx context.Context, ownerID, id int) (Task, error)
		UpdateTask(ctx context.Context, ownerID, id int, ut UpdateTask) (Task, error)
		DeleteTask(ctx context.Context, ownerID, id int) error

		CreateSchedule(ctx context.Context, ownerID int, ns NewSchedule) (Schedule, error)
		Schedules(ctx context.Context, ownerID int, filter ScheduleFilter) ([]Schedule, error)
		GetSchedule(ctx context.Context, ownerID, id int) (Schedule, error)
		UpdateSchedule(ctx context.Context, ownerID, id int, us UpdateSchedule) (Schedule, error)
		DeleteSchedule(ctx context.Context, ownerID, id int) error

		Notify(ctx context.Context, nn NewNotification) (Notification, error)
		Notifications(ctx context.Context, ownerID int, unreadOnly bool) ([]Notification, error)
		MarkNotificationRead(ctx context.Context, ownerID, id int) (Notification, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// checkSubjectOwnership rejects subject references the owner cannot see.
// Unlike direct lookups this is a payload problem, not a routing one, so it
// surfaces as a field error rather than a missing resource.
func (svc *service) checkSubjectOwnership(ctx context.Context, ownerID, subjectID int) error {
	if _, err := svc.repo.GetSubjectByID(ctx, ownerID, subjectID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(
				ErrSubjectInvalid,
				core.FieldError{Field: "subject_id", Error: ErrSubjectInvalid.Error()},
			)
		}
		return err
	}
	return nil
}

// ------------------------------------------------------------------ subjects

func (svc *service) CreateSubject(ctx context.Context, ownerID int, ns NewSubject) (Subject, error) {
	now := NowFunc().UTC()
	sub := Subject{
		UserID:             ownerID,
		SubjectName:        ns.SubjectName,
		SubjectCode:        ns.SubjectCode,
		ColorCode:          ns.ColorCode,
		Description:        ns.Description,
		TargetHoursPerWeek: ns.TargetHoursPerWeek,
		Priority:           ns.Priority,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if sub.ColorCode == "" {
		sub.ColorCode = "#3b82f6"
	}
	if sub.TargetHoursPerWeek == 0 {
		sub.TargetHoursPerWeek = 5
	}
	if sub.Priority == "" {
		sub.Priority = "medium"
	}
	return svc.repo.CreateSubject(ctx, sub)
}

func (svc *service) Subjects(ctx context.Context, ownerID int) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, ownerID)
}

func (svc *service) GetSubject(ctx context.Context, ownerID, id int) (Subject, error) {
	return svc.repo.GetSubjectByID(ctx, ownerID, id)
}

func (svc *service) UpdateSubject(ctx context.Context, ownerID, id int, us UpdateSubject) (Subject, error) {
	sub, err := svc.repo.GetSubjectByID(ctx, ownerID, id)
	if err != nil {
		return Subject{}, err
	}
	if us.SubjectName != nil {
		sub.SubjectName = *us.SubjectName
	}
	if us.SubjectCode != nil {
		sub.SubjectCode = *us.SubjectCode
	}
	if us.ColorCode != nil {
		sub.ColorCode = *us.ColorCode
	}
	if us.Description != nil {
		sub.Description = *us.Description
	}
	if us.TargetHoursPerWeek != nil {
		sub.TargetHoursPerWeek = *us.TargetHoursPerWeek
	}
	if us.Priority != nil {
		sub.Priority = *us.Priority
	}
	if us.IsActive != nil {
		sub.IsActive = *us.IsActive
	}
	sub.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateSubject(ctx, sub)
}

func (svc *service) DeleteSubject(ctx context.Context, ownerID, id int) error {
	return svc.repo.DeleteSubject(ctx, ownerID, id)
}

// --------------------------------------------------------------------- tasks

func (svc *service) CreateTask(ctx context.Context, ownerID int, nt NewTask) (Task, error) {
	if nt.SubjectID != nil {
		if err := svc.checkSubjectOwnership(ctx, ownerID, *nt.SubjectID); err != nil {
			return Task{}, err
		}
	}

	now := NowFunc().UTC()
	task := Task{
		UserID:      ownerID,
		CreatedBy:   ownerID,
		Title:       nt.Title,
		Description: nt.Description,
		TaskType:    nt.TaskType,
		Priority:    nt.Priority,
		Difficulty:  nt.Difficulty,
		Status:      TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nt.SubjectID != nil {
		task.SubjectID.SetValid(*nt.SubjectID)
	}
	if nt.DueDate != nil {
		task.DueDate.SetValid(nt.DueDate.UTC())
	}
	if nt.EstimatedDuration != nil {
		task.EstimatedDuration.SetValid(*nt.EstimatedDuration)
	}
	if task.TaskType == "" {
		task.TaskType = "assignment"
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	if task.Difficulty == "" {
		task.Difficulty = "medium"
	}
	return svc.repo.CreateTask(ctx, task)
}

func (svc *service) Tasks(ctx context.Context, ownerID int, filter TaskFilter) ([]Task, error) {
	return svc.repo.QueryTasks(ctx, ownerID, filter)
}

func (svc *service) GetTask(ctx context.Context, ownerID, id int) (Task, error) {
	return svc.repo.GetTaskByID(ctx, ownerID, id)
}

func (svc *service) UpdateTask(ctx context.Context, ownerID, id int, ut UpdateTask) (Task, error) {
	task, err := svc.repo.GetTaskByID(ctx, ownerID, id)
	if err != nil {
		return Task{}, err
	}
	if ut.SubjectID != nil {
		if err = svc.checkSubjectOwnership(ctx, ownerID, *ut.SubjectID); err != nil {
			return Task{}, err
		}
		task.SubjectID.SetValid(*ut.SubjectID)
	}
	if ut.Title != nil {
		task.Title = *ut.Title
	}
	if ut.Description != nil {
		task.Description = *ut.Description
	}
	if ut.TaskType != nil {
		task.TaskType = *ut.TaskType
	}
	if ut.Priority != nil {
		task.Priority = *ut.Priority
	}
	if ut.Difficulty != nil {
		task.Difficulty = *ut.Difficulty
	}
	if ut.DueDate != nil {
		task.DueDate.SetValid(ut.DueDate.UTC())
	}
	if ut.EstimatedDuration != nil {
		task.EstimatedDuration.SetValid(*ut.EstimatedDuration)
	}
	if ut.ActualDuration != nil {
		task.ActualDuration.SetValid(*ut.ActualDuration)
	}
	if ut.CompletionPercentage != nil {
		task.CompletionPercentage = *ut.CompletionPercentage
	}

	now := NowFunc().UTC()
	if ut.Status != nil && *ut.Status != task.Status {
		task.Status = *ut.Status
		if task.Status == TaskStatusCompleted {
			task.CompletionDate.SetValid(now)
			task.CompletionPercentage = 100
		}
	}
	task.UpdatedAt = now
	return svc.repo.UpdateTask(ctx, task)
}

func (svc *service) DeleteTask(ctx context.Context, ownerID, id int) error {
	return svc.repo.DeleteTask(ctx, ownerID, id)
}

// ----------------------------------------------------------------- schedules

func (svc *service) CreateSchedule(ctx context.Context, ownerID int, ns NewSchedule) (Schedule, error) {
	if err := svc.checkSubjectOwnership(ctx, ownerID, ns.SubjectID); err != nil {
		return Schedule{}, err
	}

	now := NowFunc().UTC()
	sch := Schedule{
		UserID:      ownerID,
		SubjectID:   ns.SubjectID,
		CreatedBy:   ownerID,
		Title:       ns.Title,
		Description: ns.Description,
		StartTime:   ns.StartTime.UTC(),
		EndTime:     ns.EndTime.UTC(),
		Location:    ns.Location,
		IsRecurring: ns.IsRecurring,
		Status:      ScheduleStatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ns.RecurrencePattern != "" {
		sch.RecurrencePattern.SetValid(ns.RecurrencePattern)
	}
	if ns.RecurrenceDays != "" {
		sch.RecurrenceDays.SetValid(ns.RecurrenceDays)
	}
	if ns.RecurrenceEndDate != nil {
		sch.RecurrenceEndDate.SetValid(ns.RecurrenceEndDate.UTC())
	}
	return svc.repo.CreateSchedule(ctx, sch)
}

func (svc *service) Schedules(ctx context.Context, ownerID int, filter ScheduleFilter) ([]Schedule, error) {
	return svc.repo.QuerySchedules(ctx, ownerID, filter)
}

func (svc *service) GetSchedule(ctx context.Context, ownerID, id int) (Schedule, error) {
	return svc.repo.GetScheduleByID(ctx, ownerID, id)
}

func (svc *service) UpdateSchedule(ctx context.Context, ownerID, id int, us UpdateSchedule) (Schedule, error) {
	sch, err := svc.repo.GetScheduleByID(ctx, ownerID, id)
	if err != nil {
		return Schedule{}, err
	}
	if us.SubjectID != nil {
		if err = svc.checkSubjectOwnership(ctx, ownerID, *us.SubjectID); err != nil {
			return Schedule{}, err
		}
		sch.SubjectID = *us.SubjectID
	}
	if us.Title != nil {
		sch.Title = *us.Title
	}
	if us.Description != nil {
		sch.Description = *us.Description
	}
	if us.StartTime != nil {
		sch.StartTime = us.StartTime.UTC()
	}
	if us.EndTime != nil {
		sch.EndTime = us.EndTime.UTC()
	}
	if !sch.EndTime.After(sch.StartTime) {
		return Schedule{}, core.NewValidationError(
			ErrScheduleTimes,
			core.FieldError{Field: "end_time", Error: ErrScheduleTimes.Error()},
		)
	}
	if us.Location != nil {
		sch.Location = *us.Location
	}
	if us.IsRecurring != nil {
		sch.IsRecurring = *us.IsRecurring
	}
	if us.RecurrencePattern != nil {
		sch.RecurrencePattern.SetValid(*us.RecurrencePattern)
	}
	if us.RecurrenceDays != nil {
		sch.RecurrenceDays.SetValid(*us.RecurrenceDays)
	}
	if us.RecurrenceEndDate != nil {
		sch.RecurrenceEndDate.SetValid(us.RecurrenceEndDate.UTC())
	}
	if us.Status != nil {
		sch.Status = *us.Status
	}
	sch.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateSchedule(ctx, sch)
}

func (svc *service) DeleteSchedule(ctx context.Context, ownerID, id int) error {
	return svc.repo.DeleteSchedule(ctx, ownerID, id)
}

// ------------------------------------------------------------- notifications

func (svc *service) Notify(ctx context.Context, nn NewNotification) (Notification, error) {
	notif := Notification{
		UserID:           nn.UserID,
		NotificationType: nn.NotificationType,
		Title:            nn.Title,
		Message:          nn.Message,
		Priority:         nn.Priority,
		CreatedAt:        NowFunc().UTC(),
	}
	if nn.SenderID != nil {
		notif.SenderID.SetValid(*nn.SenderID)
	}
	if nn.LinkURL != "" {
		notif.LinkURL.SetValid(nn.LinkURL)
	}
	if notif.Priority == "" {
		notif.Priority = "medium"
	}
	return svc.repo.CreateNotification(ctx, notif)
}

func (svc *service) Notifications(ctx context.Context, ownerID int, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, ownerID, unreadOnly)
}

func (svc *service) MarkNotificationRead(ctx context.Context, ownerID, id int) (Notification, error) {
	return svc.repo.MarkNotificationRead(ctx, ownerID, id, NowFunc().UTC())
}
