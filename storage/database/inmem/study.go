package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/eduflow/stms/core/study"
)

var (
	subjectPKCount      int
	taskPKCount         int
	schedulePKCount     int
	notificationPKCount int
)

type studyRepository struct {
	subjects      *subjectTable
	tasks         *taskTable
	schedules     *scheduleTable
	notifications *notificationTable
}

var _ study.Repository = (*studyRepository)(nil)

func NewStudyRepository(db *DB) study.Repository {
	return &studyRepository{
		subjects:      db.subjects,
		tasks:         db.tasks,
		schedules:     db.schedules,
		notifications: db.notifications,
	}
}

// ------------------------------------------------------------------ subjects

func (repo *studyRepository) CreateSubject(_ context.Context, sub study.Subject) (study.Subject, error) {
	repo.subjects.mutex.Lock()
	defer repo.subjects.mutex.Unlock()

	subjectPKCount++
	sub.ID = subjectPKCount
	repo.subjects.table[sub.ID] = &sub
	return sub, nil
}

func (repo *studyRepository) QuerySubjects(_ context.Context, ownerID int) ([]study.Subject, error) {
	repo.subjects.mutex.RLock()
	defer repo.subjects.mutex.RUnlock()

	var subs []study.Subject
	for _, sub := range repo.subjects.table {
		if sub.UserID == ownerID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubjectName < subs[j].SubjectName })
	return subs, nil
}

func (repo *studyRepository) GetSubjectByID(_ context.Context, ownerID, id int) (study.Subject, error) {
	repo.subjects.mutex.RLock()
	defer repo.subjects.mutex.RUnlock()

	if sub, ok := repo.subjects.table[id]; ok && sub.UserID == ownerID {
		return *sub, nil
	}
	return study.Subject{}, study.ErrNotFound
}

func (repo *studyRepository) UpdateSubject(_ context.Context, sub study.Subject) (study.Subject, error) {
	repo.subjects.mutex.Lock()
	defer repo.subjects.mutex.Unlock()

	if orig, ok := repo.subjects.table[sub.ID]; ok && orig.UserID == sub.UserID {
		repo.subjects.table[sub.ID] = &sub
		return sub, nil
	}
	return study.Subject{}, study.ErrNotFound
}

func (repo *studyRepository) DeleteSubject(_ context.Context, ownerID, id int) error {
	repo.subjects.mutex.Lock()
	defer repo.subjects.mutex.Unlock()

	if sub, ok := repo.subjects.table[id]; ok && sub.UserID == ownerID {
		delete(repo.subjects.table, id)
		return nil
	}
	return study.ErrNotFound
}

// --------------------------------------------------------------------- tasks

func (repo *studyRepository) CreateTask(_ context.Context, task study.Task) (study.Task, error) {
	repo.tasks.mutex.Lock()
	defer repo.tasks.mutex.Unlock()

	taskPKCount++
	task.ID = taskPKCount
	repo.tasks.table[task.ID] = &task
	return task, nil
}

func (repo *studyRepository) QueryTasks(_ context.Context, ownerID int, filter study.TaskFilter) ([]study.Task, error) {
	repo.tasks.mutex.RLock()
	defer repo.tasks.mutex.RUnlock()

	var tasks []study.Task
	for _, task := range repo.tasks.table {
		if task.UserID != ownerID {
			continue
		}
		if filter.SubjectID != nil && (!task.SubjectID.Valid || task.SubjectID.Int != *filter.SubjectID) {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && task.Priority != filter.Priority {
			continue
		}
		tasks = append(tasks, *task)
	}
	sortTasks(tasks, filter)
	return tasks, nil
}

func sortTasks(tasks []study.Task, filter study.TaskFilter) {
	orderings := study.TaskOrderings(filter.Orderings)
	if len(orderings) == 0 {
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
		return
	}
	ord := orderings[0] // single-field ordering is enough for the dev store
	sort.Slice(tasks, func(i, j int) bool {
		var less bool
		switch ord.Field {
		case "due_date":
			less = tasks[i].DueDate.Time.Before(tasks[j].DueDate.Time)
		case "priority":
			less = tasks[i].Priority < tasks[j].Priority
		case "status":
			less = tasks[i].Status < tasks[j].Status
		case "title":
			less = tasks[i].Title < tasks[j].Title
		default:
			less = tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		if !ord.Ascending {
			return !less
		}
		return less
	})
}

func (repo *studyRepository) GetTaskByID(_ context.Context, ownerID, id int) (study.Task, error) {
	repo.tasks.mutex.RLock()
	defer repo.tasks.mutex.RUnlock()

	if task, ok := repo.tasks.table[id]; ok && task.UserID == ownerID {
		return *task, nil
	}
	return study.Task{}, study.ErrNotFound
}

func (repo *studyRepository) UpdateTask(_ context.Context, task study.Task) (study.Task, error) {
	repo.tasks.mutex.Lock()
	defer repo.tasks.mutex.Unlock()

	if orig, ok := repo.tasks.table[task.ID]; ok && orig.UserID == task.UserID {
		repo.tasks.table[task.ID] = &task
		return task, nil
	}
	return study.Task{}, study.ErrNotFound
}

func (repo *studyRepository) DeleteTask(_ context.Context, ownerID, id int) error {
	repo.tasks.mutex.Lock()
	defer repo.tasks.mutex.Unlock()

	if task, ok := repo.tasks.table[id]; ok && task.UserID == ownerID {
		delete(repo.tasks.table, id)
		return nil
	}
	return study.ErrNotFound
}

// ----------------------------------------------------------------- schedules

func (repo *studyRepository) CreateSchedule(_ context.Context, sch study.Schedule) (study.Schedule, error) {
	repo.schedules.mutex.Lock()
	defer repo.schedules.mutex.Unlock()

	schedulePKCount++
	sch.ID = schedulePKCount
	repo.schedules.table[sch.ID] = &sch
	return sch, nil
}

func (repo *studyRepository) QuerySchedules(_ context.Context, ownerID int, filter study.ScheduleFilter) ([]study.Schedule, error) {
	repo.schedules.mutex.RLock()
	defer repo.schedules.mutex.RUnlock()

	var schedules []study.Schedule
	for _, sch := range repo.schedules.table {
		if sch.UserID != ownerID {
			continue
		}
		if !filter.From.IsZero() && sch.EndTime.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && sch.StartTime.After(filter.To) {
			continue
		}
		schedules = append(schedules, *sch)
	}
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].StartTime.Before(schedules[j].StartTime) })
	return schedules, nil
}

func (repo *studyRepository) GetScheduleByID(_ context.Context, ownerID, id int) (study.Schedule, error) {
	repo.schedules.mutex.RLock()
	defer repo.schedules.mutex.RUnlock()

	if sch, ok := repo.schedules.table[id]; ok && sch.UserID == ownerID {
		return *sch, nil
	}
	return study.Schedule{}, study.ErrNotFound
}

func (repo *studyRepository) UpdateSchedule(_ context.Context, sch study.Schedule) (study.Schedule, error) {
	repo.schedules.mutex.Lock()
	defer repo.schedules.mutex.Unlock()

	if orig, ok := repo.schedules.table[sch.ID]; ok && orig.UserID == sch.UserID {
		repo.schedules.table[sch.ID] = &sch
		return sch, nil
	}
	return study.Schedule{}, study.ErrNotFound
}

func (repo *studyRepository) DeleteSchedule(_ context.Context, ownerID, id int) error {
	repo.schedules.mutex.Lock()
	defer repo.schedules.mutex.Unlock()

	if sch, ok := repo.schedules.table[id]; ok && sch.UserID == ownerID {
		delete(repo.schedules.table, id)
		return nil
	}
	return study.ErrNotFound
}

// ------------------------------------------------------------- notifications

func (repo *studyRepository) CreateNotification(_ context.Context, notif study.Notification) (study.Notification, error) {
	repo.notifications.mutex.Lock()
	defer repo.notifications.mutex.Unlock()

	notificationPKCount++
	notif.ID = notificationPKCount
	repo.notifications.table[notif.ID] = &notif
	return notif, nil
}

func (repo *studyRepository) QueryNotifications(_ context.Context, ownerID int, unreadOnly bool) ([]study.Notification, error) {
	repo.notifications.mutex.RLock()
	defer repo.notifications.mutex.RUnlock()

	var notifs []study.Notification
	for _, notif := range repo.notifications.table {
		if notif.UserID != ownerID {
			continue
		}
		if unreadOnly && notif.IsRead {
			continue
		}
		notifs = append(notifs, *notif)
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].ID > notifs[j].ID })
	return notifs, nil
}

func (repo *studyRepository) MarkNotificationRead(_ context.Context, ownerID, id int, at time.Time) (study.Notification, error) {
	repo.notifications.mutex.Lock()
	defer repo.notifications.mutex.Unlock()

	notif, ok := repo.notifications.table[id]
	if !ok || notif.UserID != ownerID {
		return study.Notification{}, study.ErrNotFound
	}
	if !notif.IsRead {
		notif.IsRead = true
		notif.ReadAt.SetValid(at)
	}
	return *notif, nil
}
