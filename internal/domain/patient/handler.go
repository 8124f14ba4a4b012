package patient

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medoffice/practice/internal/platform/wire"
	"github.com/medoffice/practice/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the patient endpoints. Deletion is not exposed.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.PATCH("/patients/:id", h.PatchPatient)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("search"), pg)
	if err != nil {
		return err
	}
	return pagination.Render(c, pg, ToReadList(items), total)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var w PatientWrite
	if err := wire.Bind(c, &w); err != nil {
		return err
	}
	p, err := h.svc.Create(c.Request().Context(), w)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p.ToRead())
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := wire.PathID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p.ToRead())
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := wire.PathID(c)
	if err != nil {
		return err
	}
	var w PatientWrite
	if err := wire.Bind(c, &w); err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), id, w)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p.ToRead())
}

func (h *Handler) PatchPatient(c echo.Context) error {
	id, err := wire.PathID(c)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	p, err := h.svc.Patch(c.Request().Context(), id, func(w *PatientWrite) error {
		return wire.Decode(body, w)
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p.ToRead())
}
