package echoapi

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/eduflow/stms/core"
	"github.com/eduflow/stms/core/user"
)

func TestTokenRoundTrip(t *testing.T) {
	ConfigureAuth(&core.Config{
		AppName:   "EduFlow",
		SecretKey: []byte("secret"),
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	})

	usr := user.User{
		ID:       7,
		Username: "alice",
		Roles:    []string{user.RoleStudent},
	}

	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil {
		t.Fatalf("parsing token: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("token not valid")
	}

	if claims.Subject != "alice" {
		t.Errorf("sub = %q, want %q", claims.Subject, "alice")
	}
	if claims.UserID != 7 {
		t.Errorf("uid = %d, want 7", claims.UserID)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != user.RoleStudent {
		t.Errorf("roles = %v, want [student]", claims.Roles)
	}
	if claims.Issuer != "EduFlow" {
		t.Errorf("iss = %q, want %q", claims.Issuer, "EduFlow")
	}

	ttl := time.Unix(claims.ExpiresAt, 0).Sub(time.Unix(claims.IssuedAt, 0))
	if ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ttl)
	}

	// tampering with the signature fails verification
	if _, err = jwt.ParseWithClaims(token[:len(token)-2], new(Claims), func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	}); err == nil {
		t.Error("tampered token accepted")
	}
}
