package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eduflow/stms/core/study"
)

type subjectApi struct {
	service study.Service
}

func registerSubjectAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc study.Service) {
	api := subjectApi{service: svc}

	sg := g.Group("/subjects", jwt)
	sg.POST("", api.subjectCreate)
	sg.GET("", api.subjectQuery)
	sg.GET("/:id", api.subjectRetrieve)
	sg.PUT("/:id", api.subjectUpdate)
	sg.DELETE("/:id", api.subjectDestroy)
}

// ownerID resolves the authenticated account every study endpoint is scoped to.
func ownerID(ctx echo.Context) (int, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "getting context claims")
	}
	return claims.UserID, nil
}

func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

func (api *subjectApi) subjectCreate(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	data := new(study.NewSubject)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}

	sub, err := api.service.CreateSubject(ctx.Request().Context(), owner, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *subjectApi) subjectQuery(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	subs, err := api.service.Subjects(ctx.Request().Context(), owner)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *subjectApi) subjectRetrieve(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	sub, err := api.service.GetSubject(ctx.Request().Context(), owner, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *subjectApi) subjectUpdate(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	data := new(study.UpdateSubject)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}

	sub, err := api.service.UpdateSubject(ctx.Request().Context(), owner, id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *subjectApi) subjectDestroy(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err = api.service.DeleteSubject(ctx.Request().Context(), owner, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
