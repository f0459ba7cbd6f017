package study

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/eduflow/stms/core"
)

// Task lifecycle states.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// Schedule lifecycle states.
const (
	ScheduleStatusScheduled = "scheduled"
	ScheduleStatusCompleted = "completed"
	ScheduleStatusCancelled = "cancelled"
	ScheduleStatusMissed    = "missed"
)

type Subject struct {
	ID                 int       `json:"id" db:"id"`
	UserID             int       `json:"user_id" db:"user_id"`
	SubjectName        string    `json:"subject_name" db:"subject_name"`
	SubjectCode        string    `json:"subject_code" db:"subject_code"`
	ColorCode          string    `json:"color_code" db:"color_code"`
	Description        string    `json:"description" db:"description"`
	TargetHoursPerWeek int       `json:"target_hours_per_week" db:"target_hours_per_week"`
	Priority           string    `json:"priority" db:"priority"`
	IsActive           bool      `json:"is_active" db:"is_active"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type Task struct {
	ID                   int       `json:"id" db:"id"`
	UserID               int       `json:"user_id" db:"user_id"`
	SubjectID            null.Int  `json:"subject_id" db:"subject_id"`
	CreatedBy            int       `json:"created_by" db:"created_by"`
	Title                string    `json:"title" db:"title"`
	Description          string    `json:"description" db:"description"`
	TaskType             string    `json:"task_type" db:"task_type"`
	Priority             string    `json:"priority" db:"priority"`
	Difficulty           string    `json:"difficulty" db:"difficulty"`
	DueDate              null.Time `json:"due_date" db:"due_date"`
	EstimatedDuration    null.Int  `json:"estimated_duration" db:"estimated_duration"`
	ActualDuration       null.Int  `json:"actual_duration" db:"actual_duration"`
	Status               string    `json:"status" db:"status"`
	CompletionDate       null.Time `json:"completion_date" db:"completion_date"`
	CompletionPercentage int       `json:"completion_percentage" db:"completion_percentage"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

type Schedule struct {
	ID                int         `json:"id" db:"id"`
	UserID            int         `json:"user_id" db:"user_id"`
	SubjectID         int         `json:"subject_id" db:"subject_id"`
	CreatedBy         int         `json:"created_by" db:"created_by"`
	Title             string      `json:"title" db:"title"`
	Description       string      `json:"description" db:"description"`
	StartTime         time.Time   `json:"start_time" db:"start_time"`
	EndTime           time.Time   `json:"end_time" db:"end_time"`
	Location          string      `json:"location" db:"location"`
	IsRecurring       bool        `json:"is_recurring" db:"is_recurring"`
	RecurrencePattern null.String `json:"recurrence_pattern" db:"recurrence_pattern"`
	RecurrenceDays    null.String `json:"recurrence_days" db:"recurrence_days"`
	RecurrenceEndDate null.Time   `json:"recurrence_end_date" db:"recurrence_end_date"`
	Status            string      `json:"status" db:"status"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
}

type Notification struct {
	ID               int         `json:"id" db:"id"`
	UserID           int         `json:"user_id" db:"user_id"`
	SenderID         null.Int    `json:"sender_id" db:"sender_id"`
	NotificationType string      `json:"notification_type" db:"notification_type"`
	Title            string      `json:"title" db:"title"`
	Message          string      `json:"message" db:"message"`
	LinkURL          null.String `json:"link_url" db:"link_url"`
	Priority         string      `json:"priority" db:"priority"`
	IsRead           bool        `json:"is_read" db:"is_read"`
	ReadAt           null.Time   `json:"read_at" db:"read_at"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
}

// NewSubject contains information needed to create a Subject for its owner.
type NewSubject struct {
	SubjectName        string `json:"subject_name" validate:"required"`
	SubjectCode        string `json:"subject_code"`
	ColorCode          string `json:"color_code" validate:"omitempty,hexcolor"`
	Description        string `json:"description"`
	TargetHoursPerWeek int    `json:"target_hours_per_week" validate:"omitempty,min=1,max=100"`
	Priority           string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

func (ns *NewSubject) Validate() error {
	ns.SubjectName = core.CleanString(ns.SubjectName)
	ns.SubjectCode = core.CleanString(ns.SubjectCode)
	return core.Validate.Struct(ns)
}

// UpdateSubject defines what may be modified on an existing Subject.
// Nil pointers leave the corresponding field untouched.
type UpdateSubject struct {
	SubjectName        *string `json:"subject_name"`
	SubjectCode        *string `json:"subject_code"`
	ColorCode          *string `json:"color_code" validate:"omitempty,hexcolor"`
	Description        *string `json:"description"`
	TargetHoursPerWeek *int    `json:"target_hours_per_week" validate:"omitempty,min=1,max=100"`
	Priority           *string `json:"priority" validate:"omitempty,oneof=low medium high"`
	IsActive           *bool   `json:"is_active"`
}

func (us *UpdateSubject) Validate() error {
	if us.SubjectName != nil {
		*us.SubjectName = core.CleanString(*us.SubjectName)
	}
	return core.Validate.Struct(us)
}

type NewTask struct {
	Title             string     `json:"title" validate:"required"`
	Description       string     `json:"description"`
	SubjectID         *int       `json:"subject_id"`
	TaskType          string     `json:"task_type" validate:"omitempty,oneof=assignment homework exam_prep project reading practice revision other"`
	Priority          string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Difficulty        string     `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	DueDate           *time.Time `json:"due_date"`
	EstimatedDuration *int       `json:"estimated_duration" validate:"omitempty,min=1"`
}

func (nt *NewTask) Validate() error {
	nt.Title = core.CleanString(nt.Title)
	return core.Validate.Struct(nt)
}

type UpdateTask struct {
	Title                *string    `json:"title"`
	Description          *string    `json:"description"`
	SubjectID            *int       `json:"subject_id"`
	TaskType             *string    `json:"task_type" validate:"omitempty,oneof=assignment homework exam_prep project reading practice revision other"`
	Priority             *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Difficulty           *string    `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	DueDate              *time.Time `json:"due_date"`
	EstimatedDuration    *int       `json:"estimated_duration" validate:"omitempty,min=1"`
	ActualDuration       *int       `json:"actual_duration" validate:"omitempty,min=0"`
	Status               *string    `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	CompletionPercentage *int       `json:"completion_percentage" validate:"omitempty,min=0,max=100"`
}

func (ut *UpdateTask) Validate() error {
	if ut.Title != nil {
		*ut.Title = core.CleanString(*ut.Title)
	}
	return core.Validate.Struct(ut)
}

type NewSchedule struct {
	Title             string     `json:"title" validate:"required"`
	Description       string     `json:"description"`
	SubjectID         int        `json:"subject_id" validate:"required"`
	StartTime         time.Time  `json:"start_time" validate:"required"`
	EndTime           time.Time  `json:"end_time" validate:"required"`
	Location          string     `json:"location"`
	IsRecurring       bool       `json:"is_recurring"`
	RecurrencePattern string     `json:"recurrence_pattern" validate:"omitempty,oneof=daily weekly biweekly monthly"`
	RecurrenceDays    string     `json:"recurrence_days"`
	RecurrenceEndDate *time.Time `json:"recurrence_end_date"`
}

func (ns *NewSchedule) Validate() error {
	ns.Title = core.CleanString(ns.Title)
	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	if !ns.EndTime.After(ns.StartTime) {
		return core.NewValidationError(
			ErrScheduleTimes,
			core.FieldError{Field: "end_time", Error: ErrScheduleTimes.Error()},
		)
	}
	return nil
}

type UpdateSchedule struct {
	Title             *string    `json:"title"`
	Description       *string    `json:"description"`
	SubjectID         *int       `json:"subject_id"`
	StartTime         *time.Time `json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
	Location          *string    `json:"location"`
	IsRecurring       *bool      `json:"is_recurring"`
	RecurrencePattern *string    `json:"recurrence_pattern" validate:"omitempty,oneof=daily weekly biweekly monthly"`
	RecurrenceDays    *string    `json:"recurrence_days"`
	RecurrenceEndDate *time.Time `json:"recurrence_end_date"`
	Status            *string    `json:"status" validate:"omitempty,oneof=scheduled completed cancelled missed"`
}

func (us *UpdateSchedule) Validate() error {
	if us.Title != nil {
		*us.Title = core.CleanString(*us.Title)
	}
	return core.Validate.Struct(us)
}

// NewNotification is produced internally, never bound from requests.
type NewNotification struct {
	UserID           int
	SenderID         *int
	NotificationType string
	Title            string
	Message          string
	LinkURL          string
	Priority         string
}

// TaskFilter narrows task listings; zero values are ignored.
type TaskFilter struct {
	SubjectID *int   `query:"subject_id"`
	Status    string `query:"status"`
	Priority  string `query:"priority"`

	// Orderings are set from the "ordering" query param; fields outside
	// taskOrderingFields are ignored.
	Orderings []core.DBOrdering `query:"-"`
}

var taskOrderingFields = map[string]bool{
	"due_date":   true,
	"priority":   true,
	"status":     true,
	"title":      true,
	"created_at": true,
}

// TaskOrderings keeps only orderings on known columns.
func TaskOrderings(orderings []core.DBOrdering) []core.DBOrdering {
	var kept []core.DBOrdering
	for _, ord := range orderings {
		if taskOrderingFields[ord.Field] {
			kept = append(kept, ord)
		}
	}
	return kept
}

func (tf *TaskFilter) IsEmpty() bool {
	return tf.SubjectID == nil && tf.Status == "" && tf.Priority == ""
}

// ScheduleFilter narrows schedule listings to a time window.
type ScheduleFilter struct {
	From time.Time `query:"from"`
	To   time.Time `query:"to"`
}

func (sf *ScheduleFilter) IsEmpty() bool { return sf.From.IsZero() && sf.To.IsZero() }
