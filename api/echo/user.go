package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eduflow/stms/core"
	"github.com/eduflow/stms/core/user"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token     string   `json:"token"`
		TokenType string   `json:"token_type"`
		Username  string   `json:"username"`
		Roles     []string `json:"roles"`
	}

	userApi struct {
		service user.Service
	}
)

func (lr *LoginRequest) Validate() error {
	return core.Validate.Struct(lr)
}

// registerAuthAPI mounts the anonymous account endpoints.
func registerAuthAPI(g *echo.Group, svc user.Service) {
	api := userApi{service: svc}

	ag := g.Group("/auth")
	ag.POST("/register", api.authRegister)
	ag.POST("/login", api.authLogin)
	ag.POST("/verify-otp", api.authVerifyOTP)
}

// registerUserAPI mounts the account administration endpoints.
func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc user.Service) {
	api := userApi{service: svc}

	ug := g.Group("/users", jwt)
	ug.POST("", api.userCreate, adminMiddleware())
	ug.GET("", api.userQuery, adminMiddleware())
	ug.DELETE("", api.userDestroyMultiple, adminMiddleware())
	ug.GET("/roles", api.userQueryRoles, adminMiddleware())

	// detail endpoints
	dg := ug.Group("/:id", ctxUserOrAdminMiddleware(api.service))
	dg.GET("", api.userRetrieve)
	dg.PUT("", api.userUpdate)
	dg.DELETE("", api.userDestroy, adminMiddleware())
}

// Handlers

func (api *userApi) authRegister(ctx echo.Context) error {
	data := new(user.NewRegistration)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(ctx.Request().Context(), api.service); err != nil {
		return err
	}

	usr, err := api.service.Register(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) authLogin(ctx echo.Context) error {
	data := new(LoginRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := authenticate(ctx.Request().Context(), data.Username, data.Password, api.service)
	if err != nil {
		return err
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		TokenType: "bearer",
		Username:  usr.Username,
		Roles:     usr.Roles,
	})
}

func (api *userApi) authVerifyOTP(ctx echo.Context) error {
	data := new(user.OTPVerification)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := api.service.VerifyOTP(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) userCreate(ctx echo.Context) error {
	data := new(user.NewUser)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(ctx.Request().Context(), api.service); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := api.service.Create(ctx.Request().Context(), *data, &claims.UserID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) userQuery(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}

	users, err := api.service.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) userQueryRoles(ctx echo.Context) error {
	roles, err := api.service.Roles(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (api *userApi) userRetrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errUsrNotFoundInCtx
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) userUpdate(ctx echo.Context) error {
	origUsr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errUsrNotFoundInCtx
	}

	data := new(user.UpdateUser)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(ctx.Request().Context(), origUsr, api.service); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	// only admins may change roles or active state
	if !hasRole(claims.Roles, user.RoleAdmin) {
		data.Roles = nil
		data.IsActive = nil
	}

	usr, err := api.service.Update(ctx.Request().Context(), origUsr.ID, *data, &claims.UserID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) userDestroy(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errUsrNotFoundInCtx
	}
	if err := api.service.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) userDestroyMultiple(ctx echo.Context) error {
	var ids []int
	for _, raw := range core.SplitAndTrim(ctx.QueryParam("ids")) {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid ids")
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.service.Delete(ctx.Request().Context(), ids...); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
