package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/eduflow/stms/api/echo"
	"github.com/eduflow/stms/core"
	"github.com/eduflow/stms/core/study"
	"github.com/eduflow/stms/core/user"
	emailsvc "github.com/eduflow/stms/services/email"
	logsvc "github.com/eduflow/stms/services/logger"
	inmemdb "github.com/eduflow/stms/storage/database/inmem"
)

var (
	usrRepo   user.Repository
	studyRepo study.Repository

	errAuthRequired = httpErr{Error: "authentication required"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

func setup(t *testing.T) Server {
	t.Helper()

	conf := testConfig()
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	studyRepo = inmemdb.NewStudyRepository(db)

	emailsvc.ClearSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)

	usrSvc := user.NewServiceMock(usrRepo, mailSvc, logger)
	studySvc := study.NewService(studyRepo)

	return NewServer(
		&Options{
			DisableReqLogs: true,
			Conf:           conf,
			Logger:         logger,
			UserSvc:        usrSvc,
			StudySvc:       studySvc,
		},
	)
}

func testConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		Debug:     false,
		TestMode:  true,
		AppName:   "EduFlow",
		SecretKey: []byte("secret"),
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func createUser(t *testing.T, name, uname, email, pwd string, roles []string, active, verified bool) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Name:       name,
		Username:   uname,
		Email:      email,
		IsActive:   active,
		IsVerified: verified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if pwd == "" {
		pwd = "password"
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}

	ctx := context.Background()
	usr, err := usrRepo.CreateUser(ctx, usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	for _, name := range roles {
		role, err := usrRepo.GetRoleByName(ctx, name)
		if err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
		if err = usrRepo.AssignRole(ctx, usr.ID, role.ID, nil); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr.Roles = roles
	return usr
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()

	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

// nolint
func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if tt.wantCode == 0 {
		tt.wantCode = http.StatusOK
	}
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
