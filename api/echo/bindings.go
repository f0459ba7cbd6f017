package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eduflow/stms/core"
)

var orderingParam = "ordering"

// Ordering binds the "ordering" query param, a comma-separated field list
// where a "-" prefix flips the direction: `?ordering=due_date,-priority`.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	for _, field := range core.SplitAndTrim(ctx.QueryParam(orderingParam)) {
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:]
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}
