package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/eduflow/stms/core/study"
	"github.com/eduflow/stms/core/user"
)

func createSubject(t *testing.T, ownerID int, name string) study.Subject {
	t.Helper()

	svc := study.NewService(studyRepo)
	sub, err := svc.CreateSubject(context.Background(), ownerID, study.NewSubject{SubjectName: name})
	if err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return sub
}

func Test_subjectApi_ownerScoping(t *testing.T) {
	app := setup(t)

	alice := createUser(t, "Alice A", "alice", "alice@test.cd", "", []string{user.RoleStudent}, true, true)
	bob := createUser(t, "Bob B", "bob", "bob@test.cd", "", []string{user.RoleStudent}, true, true)
	aliceToken := getToken(t, alice)
	bobToken := getToken(t, bob)

	maths := createSubject(t, alice.ID, "Maths")
	physics := createSubject(t, bob.ID, "Physics")

	detail := func(id int) string { return fmt.Sprintf("/v1/subjects/%d", id) }

	tests := []httpTest{
		{
			name: "owner sees own list", path: "/v1/subjects", token: aliceToken,
			wantData: marchallList(t, maths),
		},
		{
			name: "list never mixes owners", path: "/v1/subjects", token: bobToken,
			wantData: marchallList(t, physics),
		},
		{
			name: "owner retrieves own", path: detail(maths.ID), token: aliceToken,
			wantData: marchallObj(t, maths),
		},
		{
			name: "foreign subject reads as missing", path: detail(physics.ID), token: aliceToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "unknown id", path: detail(999), token: aliceToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("cross-owner delete reads as missing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, detail(physics.ID), aliceToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusNotFound)
		}

		// bob's subject is intact
		if _, err := studyRepo.GetSubjectByID(context.Background(), bob.ID, physics.ID); err != nil {
			t.Errorf("subject gone after foreign delete attempt: %v", err)
		}
	})

	t.Run("create stamps the owner", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/subjects", aliceToken,
			marchallObj(t, map[string]interface{}{"subject_name": "Chemistry", "user_id": bob.ID}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		var got study.Subject
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if got.UserID != alice.ID {
			t.Errorf("user_id = %d; want the caller %d", got.UserID, alice.ID)
		}
		if got.ColorCode == "" || got.TargetHoursPerWeek == 0 || got.Priority == "" {
			t.Errorf("defaults not applied: %+v", got)
		}
	})
}

func Test_taskApi(t *testing.T) {
	app := setup(t)

	alice := createUser(t, "Alice A", "alice", "alice@test.cd", "", []string{user.RoleStudent}, true, true)
	bob := createUser(t, "Bob B", "bob", "bob@test.cd", "", []string{user.RoleStudent}, true, true)
	aliceToken := getToken(t, alice)

	maths := createSubject(t, alice.ID, "Maths")
	physics := createSubject(t, bob.ID, "Physics")

	t.Run("create with foreign subject is a field error", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/tasks", aliceToken,
			marchallObj(t, map[string]interface{}{"title": "Revise", "subject_id": physics.ID}))
		app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subject_id": "invalid subject selection"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	var taskID int
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/tasks", aliceToken,
			marchallObj(t, map[string]interface{}{"title": "Revise algebra", "subject_id": maths.ID}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		var got study.Task
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if got.Status != study.TaskStatusPending {
			t.Errorf("status = %q; want %q", got.Status, study.TaskStatusPending)
		}
		if got.UserID != alice.ID || got.CreatedBy != alice.ID {
			t.Errorf("owner not stamped: %+v", got)
		}
		taskID = got.ID
	})

	t.Run("completing stamps completion date", func(t *testing.T) {
		frozen := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
		study.NowFunc = func() time.Time { return frozen }
		defer func() { study.NowFunc = time.Now }()

		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/tasks/%d", taskID), aliceToken,
			marchallObj(t, map[string]interface{}{"status": "completed"}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		var got study.Task
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if !got.CompletionDate.Valid || !got.CompletionDate.Time.Equal(frozen) {
			t.Errorf("completion_date = %v; want %v", got.CompletionDate, frozen)
		}
		if got.CompletionPercentage != 100 {
			t.Errorf("completion_percentage = %d; want 100", got.CompletionPercentage)
		}
	})

	t.Run("ordering ignores unknown fields", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/tasks", aliceToken,
			marchallObj(t, map[string]interface{}{"title": "Write essay"}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		// "password" is not an orderable column; only "-title" survives
		req, rec = newAuthRequest(http.MethodGet, "/v1/tasks?ordering=password,-title", aliceToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		var got []study.Task
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d; want 2", len(got))
		}
		if got[0].Title != "Write essay" || got[1].Title != "Revise algebra" {
			t.Errorf("order = [%q, %q]; want title descending", got[0].Title, got[1].Title)
		}
	})

	t.Run("retargeting to a foreign subject is a field error", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/tasks/%d", taskID), aliceToken,
			marchallObj(t, map[string]interface{}{"subject_id": physics.ID}))
		app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subject_id": "invalid subject selection"}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_scheduleApi(t *testing.T) {
	app := setup(t)

	alice := createUser(t, "Alice A", "alice", "alice@test.cd", "", []string{user.RoleStudent}, true, true)
	bob := createUser(t, "Bob B", "bob", "bob@test.cd", "", []string{user.RoleStudent}, true, true)
	aliceToken := getToken(t, alice)

	maths := createSubject(t, alice.ID, "Maths")
	physics := createSubject(t, bob.ID, "Physics")

	start := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	body := func(subjectID int, start, end time.Time) []byte {
		return marchallObj(t, map[string]interface{}{
			"title":      "Study session",
			"subject_id": subjectID,
			"start_time": start.Format(time.RFC3339),
			"end_time":   end.Format(time.RFC3339),
		})
	}

	t.Run("end before start is a field error", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/schedules", aliceToken,
			body(maths.ID, start, start.Add(-time.Hour)))
		app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"end_time": "end_time must be after start_time"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("foreign subject is a field error", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/schedules", aliceToken,
			body(physics.ID, start, start.Add(time.Hour)))
		app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subject_id": "invalid subject selection"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("create and window filter", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/schedules", aliceToken,
			body(maths.ID, start, start.Add(time.Hour)))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		var sch study.Schedule
		if err := json.Unmarshal(rec.Body.Bytes(), &sch); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if sch.Status != study.ScheduleStatusScheduled {
			t.Errorf("status = %q; want %q", sch.Status, study.ScheduleStatusScheduled)
		}

		in := httpTest{wantData: marchallList(t, sch)}
		req, rec = newAuthRequest(http.MethodGet,
			"/v1/schedules?from="+start.Add(-time.Hour).Format(time.RFC3339)+
				"&to="+start.Add(2*time.Hour).Format(time.RFC3339), aliceToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, in, rec)

		out := httpTest{wantData: []byte("null")}
		req, rec = newAuthRequest(http.MethodGet,
			"/v1/schedules?from="+start.Add(2*time.Hour).Format(time.RFC3339), aliceToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, out, rec)
	})
}

func Test_notificationApi(t *testing.T) {
	app := setup(t)

	alice := createUser(t, "Alice A", "alice", "alice@test.cd", "", []string{user.RoleStudent}, true, true)
	bob := createUser(t, "Bob B", "bob", "bob@test.cd", "", []string{user.RoleStudent}, true, true)
	aliceToken := getToken(t, alice)

	svc := study.NewService(studyRepo)
	notif, err := svc.Notify(context.Background(), study.NewNotification{
		UserID: alice.ID, NotificationType: "task_due", Title: "Task due soon", Message: "Revise algebra is due tomorrow",
	})
	if err != nil {
		t.Fatalf("creating notification: %v", err)
	}
	if _, err = svc.Notify(context.Background(), study.NewNotification{
		UserID: bob.ID, NotificationType: "task_due", Title: "Not for alice", Message: "x",
	}); err != nil {
		t.Fatalf("creating notification: %v", err)
	}

	t.Run("list is owner scoped", func(t *testing.T) {
		tt := httpTest{wantData: marchallList(t, notif)}
		req, rec := newAuthRequest(http.MethodGet, "/v1/notifications", aliceToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("mark read", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/notifications/%d/read", notif.ID), aliceToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		var got study.Notification
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if !got.IsRead || !got.ReadAt.Valid {
			t.Errorf("notification not marked read: %+v", got)
		}

		// unread filter is now empty
		tt := httpTest{wantData: []byte("null")}
		req, rec = newAuthRequest(http.MethodGet, "/v1/notifications?unread=true", aliceToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("cannot read someone else's", func(t *testing.T) {
		bobNotifs, err := studyRepo.QueryNotifications(context.Background(), bob.ID, false)
		if err != nil || len(bobNotifs) == 0 {
			t.Fatalf("getting bob's notifications: %v", err)
		}
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/notifications/%d/read", bobNotifs[0].ID), aliceToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
