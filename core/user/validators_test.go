package user

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/eduflow/stms/core"
)

func Test_passwordPolicy(t *testing.T) {
	newUsr := func(pwd string) NewUser {
		return NewUser{
			Name:     "John Doe",
			Username: "jdoe",
			Email:    "jdoe@test.cd",
			Password: pwd,
		}
	}

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "short but valid", pwd: "pw123"},
		{name: "no whitespace", pwd: "pw 123", wantTag: pwdNoSpaceTag},
		{name: "not all numeric", pwd: "12345678", wantTag: pwdNotAllNumTag},
		{name: "not similar to username", pwd: "jdoe1", wantTag: pwdAttrSimTag},
		{name: "not similar to email", pwd: "jdoe@test.cd1", wantTag: pwdAttrSimTag},
		{name: "unrelated password ok", pwd: "zyxwvu9!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := core.Validate.Struct(newUsr(tt.pwd))
			if tt.wantTag == "" {
				if err != nil {
					t.Fatalf("Validate() failed: %v", err)
				}
				return
			}

			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("Validate() = %v; want ValidationErrors", err)
			}
			for _, vErr := range vErrs {
				if vErr.Tag() == tt.wantTag {
					return
				}
			}
			t.Errorf("Validate() = %v; want tag %q", vErrs, tt.wantTag)
		})
	}
}
