package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/eduflow/stms/api/echo"
	"github.com/eduflow/stms/core/user"
	emailsvc "github.com/eduflow/stms/services/email"
)

func Test_authApi_register(t *testing.T) {
	app := setup(t)

	body := func(uname, email, pwd, name, role string) []byte {
		return marchallObj(t, map[string]string{
			"username": uname, "email": email, "password": pwd, "full_name": name, "role": role,
		})
	}

	createUser(t, "Taken", "taken", "taken@test.cd", "", []string{user.RoleStudent}, true, true)

	tests := []httpTest{
		{
			name: "empty payload", method: http.MethodPost, path: "/v1/auth/register",
			body: marchallObj(t, map[string]string{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username":  "this field is required",
				"email":     "this field is required",
				"password":  "this field is required",
				"full_name": "this field is required",
				"role":      "this field is required",
			}),
		},
		{
			name: "bad email", method: http.MethodPost, path: "/v1/auth/register",
			body:     body("alice", "not-an-email", "pw123", "Alice A", "student"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "numeric password", method: http.MethodPost, path: "/v1/auth/register",
			body:     body("alice", "alice@test.cd", "123456", "Alice A", "student"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "password cannot be entirely numeric"}),
		},
		{
			name: "password too close to username", method: http.MethodPost, path: "/v1/auth/register",
			body:     body("alice", "alice@test.cd", "alice1", "Alice A", "student"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "password cannot be similar to user attributes"}),
		},
		{
			name: "bad role", method: http.MethodPost, path: "/v1/auth/register",
			body:     body("alice", "alice@test.cd", "pw123", "Alice A", "teacher"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "invalid role selection"}),
		},
		{
			name: "admin cannot self-register", method: http.MethodPost, path: "/v1/auth/register",
			body:     body("alice", "alice@test.cd", "pw123", "Alice A", "admin"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "invalid role selection"}),
		},
		{
			name: "username taken", method: http.MethodPost, path: "/v1/auth/register",
			body:     body("taken", "new@test.cd", "pw123", "New User", "student"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "a user with this username already exists"}),
		},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/auth/register",
			body:     body("newuser", "taken@test.cd", "pw123", "New User", "student"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/register",
			body("alice", "alice@test.cd", "pw123", "Alice A", "student"))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}

		var got user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if got.IsVerified {
			t.Error("new registration must start unverified")
		}
		if !got.IsActive {
			t.Error("new registration must start active")
		}
		if len(got.Roles) != 1 || got.Roles[0] != user.RoleStudent {
			t.Errorf("roles = %v; want [student]", got.Roles)
		}
		if strings.Contains(rec.Body.String(), "otp") {
			t.Error("OTP code leaked in response")
		}

		// OTP mail went out with the stored code
		usr, err := usrRepo.GetUserByUsername(context.Background(), "alice")
		if err != nil {
			t.Fatalf("getting user: %v", err)
		}
		if !usr.OTPCode.Valid || len(usr.OTPCode.String) != 6 {
			t.Fatalf("stored OTP code = %v; want 6 digits", usr.OTPCode)
		}
		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("sent messages = %d; want 1", len(emailsvc.SentMessages))
		}
		if msg := emailsvc.SentMessages[0]; !strings.Contains(msg.TextContent, usr.OTPCode.String) {
			t.Error("OTP mail does not contain the stored code")
		}
	})
}

func Test_authApi_verifyOTP(t *testing.T) {
	app := setup(t)

	// register through the API so an OTP is issued
	req, rec := newRequest(http.MethodPost, "/v1/auth/register", marchallObj(t, map[string]string{
		"username": "alice", "email": "alice@test.cd", "password": "pw123",
		"full_name": "Alice A", "role": "student",
	}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %s", rec.Body.String())
	}

	usr, err := usrRepo.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("getting user: %v", err)
	}
	code := usr.OTPCode.String
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	body := func(uname, code string) []byte {
		return marchallObj(t, map[string]string{"username": uname, "otp_code": code})
	}

	tests := []httpTest{
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/auth/verify-otp",
			body: body("nobody", code), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name: "malformed code", method: http.MethodPost, path: "/v1/auth/verify-otp",
			body: body("alice", "12ab"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"otp_code": "otp_code must be 6 characters in length"}),
		},
		{
			name: "wrong code", method: http.MethodPost, path: "/v1/auth/verify-otp",
			body: body("alice", wrong), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid OTP code"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("correct code verifies", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/verify-otp", body("alice", code))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		usr, err := usrRepo.GetUserByUsername(context.Background(), "alice")
		if err != nil {
			t.Fatalf("getting user: %v", err)
		}
		if !usr.IsVerified {
			t.Error("user not verified after correct OTP")
		}
		if usr.OTPCode.Valid {
			t.Error("OTP code not cleared after use")
		}
	})

	t.Run("consumed code cannot be replayed", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/verify-otp", body("alice", code))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid OTP code"}),
		}, rec)
	})

	t.Run("any code fails once verified", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/verify-otp", body("alice", wrong))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid OTP code"}),
		}, rec)
	})
}

func Test_authApi_login(t *testing.T) {
	app := setup(t)

	createUser(t, "Alice A", "alice", "alice@test.cd", "pw123", []string{user.RoleStudent}, true, true)
	createUser(t, "Unverified", "pending", "pending@test.cd", "pw123", []string{user.RoleParent}, true, false)
	createUser(t, "Gone", "gone", "gone@test.cd", "pw123", []string{user.RoleStudent}, false, true)

	body := func(uname, pwd string) []byte {
		return marchallObj(t, map[string]string{"username": uname, "password": pwd})
	}

	tests := []httpTest{
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/auth/login",
			body: body("nobody", "pw123"), wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "incorrect username or password"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/auth/login",
			body: body("alice", "nope"), wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "incorrect username or password"}),
		},
		{
			name: "wrong password does not reveal unverified", method: http.MethodPost, path: "/v1/auth/login",
			body: body("pending", "nope"), wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "incorrect username or password"}),
		},
		{
			name: "unverified account", method: http.MethodPost, path: "/v1/auth/login",
			body: body("pending", "pw123"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account not verified"}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/v1/auth/login",
			body: body("gone", "pw123"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/login", body("alice", "pw123"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		var res echoapi.LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if res.TokenType != "bearer" {
			t.Errorf("token_type = %q; want %q", res.TokenType, "bearer")
		}
		if res.Username != "alice" {
			t.Errorf("username = %q; want %q", res.Username, "alice")
		}

		claims := new(echoapi.Claims)
		_, err := jwt.ParseWithClaims(res.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte("secret"), nil
		})
		if err != nil {
			t.Fatalf("parsing token: %v", err)
		}
		if claims.Subject != "alice" {
			t.Errorf("sub = %q; want %q", claims.Subject, "alice")
		}
		if claims.UserID == 0 {
			t.Error("uid claim not set")
		}
		if len(claims.Roles) != 1 || claims.Roles[0] != user.RoleStudent {
			t.Errorf("roles = %v; want [student]", claims.Roles)
		}

		// login also works with the email address
		req, rec = newRequest(http.MethodPost, "/v1/auth/login", body("alice@test.cd", "pw123"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("email login code = %v; body %s", rec.Code, rec.Body.String())
		}

		usr, err := usrRepo.GetUserByUsername(context.Background(), "alice")
		if err != nil {
			t.Fatalf("getting user: %v", err)
		}
		if !usr.LastLogin.Valid {
			t.Error("last_login not stamped")
		}
	})
}

func Test_authApi_tokenChecks(t *testing.T) {
	app := setup(t)

	usr := createUser(t, "Alice A", "alice", "alice@test.cd", "pw123", []string{user.RoleStudent}, true, true)

	expiredClaims := echoapi.GetUserClaims(usr)
	expiredClaims.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	expiredToken, err := echoapi.GenerateToken(expiredClaims)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	tests := []httpTest{
		{
			name: "no token", path: "/v1/subjects", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errAuthRequired),
		},
		{
			name: "garbage token", path: "/v1/subjects", token: "lol.nope.nah",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errAuthRequired),
		},
		{
			name: "expired token", path: "/v1/subjects", token: expiredToken,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errAuthRequired),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
