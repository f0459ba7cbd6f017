package inmemdb

import (
	"sync"

	"github.com/eduflow/stms/core/study"
	"github.com/eduflow/stms/core/user"
)

type (
	// DB is a process-local store backing the CLI and tests; it mirrors the
	// SQL schema closely enough that repos are interchangeable.
	DB struct {
		user          *userTable
		roles         *roleTable
		subjects      *subjectTable
		tasks         *taskTable
		schedules     *scheduleTable
		notifications *notificationTable
	}

	userTable struct {
		table       map[int]*user.User
		assignments []user.RoleAssignment
		mutex       sync.RWMutex
	}

	roleTable struct {
		table map[int]*user.Role
		mutex sync.RWMutex
	}

	subjectTable struct {
		table map[int]*study.Subject
		mutex sync.RWMutex
	}

	taskTable struct {
		table map[int]*study.Task
		mutex sync.RWMutex
	}

	scheduleTable struct {
		table map[int]*study.Schedule
		mutex sync.RWMutex
	}

	notificationTable struct {
		table map[int]*study.Notification
		mutex sync.RWMutex
	}
)

func Open() *DB {
	db := &DB{
		user:          &userTable{table: make(map[int]*user.User)},
		roles:         &roleTable{table: make(map[int]*user.Role)},
		subjects:      &subjectTable{table: make(map[int]*study.Subject)},
		tasks:         &taskTable{table: make(map[int]*study.Task)},
		schedules:     &scheduleTable{table: make(map[int]*study.Schedule)},
		notifications: &notificationTable{table: make(map[int]*study.Notification)},
	}
	db.seedRoles()
	return db
}

// seedRoles mirrors the seed migration.
func (db *DB) seedRoles() {
	for i, name := range []string{user.RoleAdmin, user.RoleParent, user.RoleStudent} {
		db.roles.table[i+1] = &user.Role{ID: i + 1, Name: name, Level: i + 1}
	}
}
