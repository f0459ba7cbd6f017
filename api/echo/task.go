package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eduflow/stms/core/study"
)

type taskApi struct {
	service study.Service
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc study.Service) {
	api := taskApi{service: svc}

	tg := g.Group("/tasks", jwt)
	tg.POST("", api.taskCreate)
	tg.GET("", api.taskQuery)
	tg.GET("/:id", api.taskRetrieve)
	tg.PUT("/:id", api.taskUpdate)
	tg.DELETE("/:id", api.taskDestroy)
}

func (api *taskApi) taskCreate(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	data := new(study.NewTask)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}

	task, err := api.service.CreateTask(ctx.Request().Context(), owner, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, task)
}

func (api *taskApi) taskQuery(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}

	filter := new(study.TaskFilter)
	if err = ctx.Bind(filter); err != nil {
		return err
	}
	ord := new(Ordering)
	ord.Bind(ctx)
	filter.Orderings = ord.Orderings

	tasks, err := api.service.Tasks(ctx.Request().Context(), owner, *filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) taskRetrieve(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	task, err := api.service.GetTask(ctx.Request().Context(), owner, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, task)
}

func (api *taskApi) taskUpdate(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	data := new(study.UpdateTask)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}

	task, err := api.service.UpdateTask(ctx.Request().Context(), owner, id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, task)
}

func (api *taskApi) taskDestroy(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err = api.service.DeleteTask(ctx.Request().Context(), owner, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
