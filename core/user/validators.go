package user

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/eduflow/stms/core"
)

var (
	accountRolesTag  = "accountroles"
	accountRolesText = "invalid roles"

	selfRolesTag  = "selfroles"
	selfRolesText = "invalid role selection"

	// password policy
	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"
)

func init() {
	_ = core.Validate.RegisterValidation(accountRolesTag, accountRolesValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, accountRolesTag, accountRolesText)

	_ = core.Validate.RegisterValidation(selfRolesTag, selfRolesValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, selfRolesTag, selfRolesText)

	core.Validate.RegisterStructValidation(userStructValidation, NewRegistration{}, NewUser{}, UpdateUser{})
	core.RegisterCustomTranslation(core.Validate, core.Translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(core.Validate, core.Translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(core.Validate, core.Translator, pwdAttrSimTag, pwdAttrSimText)
}

// accountRolesValidation checks that all provided roles are known.
func accountRolesValidation(fl validator.FieldLevel) bool {
	if roles, ok := fl.Field().Interface().([]string); ok {
		for _, role := range roles {
			if !contains(AllRoles, role) {
				return false
			}
		}
		return true
	}
	return false
}

// selfRolesValidation checks that a self-registration picks a role open
// to the public.
func selfRolesValidation(fl validator.FieldLevel) bool {
	return contains(SelfRegisterRoles, fl.Field().String())
}

// userStructValidation applies the password policy to every payload that
// carries a password.
func userStructValidation(sl validator.StructLevel) {
	switch obj := sl.Current().Interface().(type) {
	case NewRegistration:
		validatePassword(obj.Password, obj.FullName, obj.Username, obj.Email, sl)
	case NewUser:
		validatePassword(obj.Password, obj.Name, obj.Username, obj.Email, sl)
	case UpdateUser:
		validatePassword(obj.Password, obj.Name, obj.Username, obj.Email, sl)
	}
}

// validatePassword applies the password policy to the provided password:
// - no whitespace
// - not all numeric
// - no user attrs similarity
func validatePassword(pwd, name, uname, email string, sl validator.StructLevel) {
	if pwd == "" { // the required tag handles this one
		return
	}
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	var digitCount int
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	if digitCount == len(pwd) {
		reportErr(pwdNotAllNumTag)
		return
	}

	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(usrAttr, "")).QuickRatio()
	}
	if getRatio(pwd, name) >= pwdMaxSim ||
		getRatio(pwd, uname) >= pwdMaxSim ||
		getRatio(pwd, email) >= pwdMaxSim {
		reportErr(pwdAttrSimTag)
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
