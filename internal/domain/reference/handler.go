package reference

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medoffice/practice/internal/platform/wire"
	"github.com/medoffice/practice/pkg/pagination"
)

// Handler serves list and create for every lookup kind. There are no
// update or delete routes.
type Handler struct {
	services []*Service
}

func NewHandler(services ...*Service) *Handler {
	return &Handler{services: services}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	for _, svc := range h.services {
		api.GET(svc.Kind().Path, h.List(svc))
		api.POST(svc.Kind().Path, h.Create(svc))
	}
}

func (h *Handler) List(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		pg := pagination.FromContext(c)
		items, total, err := svc.List(c.Request().Context(), c.QueryParam("search"), pg)
		if err != nil {
			return err
		}
		return pagination.Render(c, pg, items, total)
	}
}

func (h *Handler) Create(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var w ItemWrite
		if err := wire.Bind(c, &w); err != nil {
			return err
		}
		item, err := svc.Create(c.Request().Context(), w)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, item)
	}
}
