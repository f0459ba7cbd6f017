package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eduflow/stms/core/study"
)

type scheduleApi struct {
	service study.Service
}

func registerScheduleAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc study.Service) {
	api := scheduleApi{service: svc}

	sg := g.Group("/schedules", jwt)
	sg.POST("", api.scheduleCreate)
	sg.GET("", api.scheduleQuery)
	sg.GET("/:id", api.scheduleRetrieve)
	sg.PUT("/:id", api.scheduleUpdate)
	sg.DELETE("/:id", api.scheduleDestroy)
}

func (api *scheduleApi) scheduleCreate(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	data := new(study.NewSchedule)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}

	sch, err := api.service.CreateSchedule(ctx.Request().Context(), owner, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *scheduleApi) scheduleQuery(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	filter := new(study.ScheduleFilter)
	if err = ctx.Bind(filter); err != nil {
		return err
	}

	schedules, err := api.service.Schedules(ctx.Request().Context(), owner, *filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, schedules)
}

func (api *scheduleApi) scheduleRetrieve(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	sch, err := api.service.GetSchedule(ctx.Request().Context(), owner, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *scheduleApi) scheduleUpdate(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	data := new(study.UpdateSchedule)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}

	sch, err := api.service.UpdateSchedule(ctx.Request().Context(), owner, id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *scheduleApi) scheduleDestroy(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err = api.service.DeleteSchedule(ctx.Request().Context(), owner, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
