package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eduflow/stms/core/study"
)

type notificationApi struct {
	service study.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc study.Service) {
	api := notificationApi{service: svc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.notificationQuery)
	ng.POST("/:id/read", api.notificationMarkRead)
}

func (api *notificationApi) notificationQuery(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	unreadOnly := ctx.QueryParam("unread") == "true"

	notifs, err := api.service.Notifications(ctx.Request().Context(), owner, unreadOnly)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) notificationMarkRead(ctx echo.Context) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	notif, err := api.service.MarkNotificationRead(ctx.Request().Context(), owner, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, notif)
}
