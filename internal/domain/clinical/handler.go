package clinical

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

// RegisterRoutes mounts the progress note endpoints. Notes are never
// deleted directly; they go with their patient.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/progress_notes", h.ListProgressNotes)
	api.POST("/progress_notes", h.CreateProgressNote)
	api.GET("/progress_notes/:id", h.GetProgressNote)
	api.PUT("/progress_notes/:id", h.UpdateProgressNote)
	api.PATCH("/progress_notes/:id", h.PatchProgressNote)
}

func (h *Handler) ListProgressNotes(c echo.Context) error {
	patientID, err := wire.QueryID(c, "patient")
	if err != nil {
		return err
	}
	f := Filter{PatientID: patientID, Ordering: c.QueryParam("ordering")}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg)
	if err != nil {
		return err
	}
	return pagination.Render(c, pg, items, total)
}

func (h *Handler) CreateProgressNote(c echo.Context) error {
	var w ProgressNoteWrite
	if err := wire.Bind(c, &w); err != nil {
		return err
	}
	n, err := h.svc.Create(c.Request().Context(), w)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) GetProgressNote(c echo.Context) error {
	id, err := wire.PathID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) UpdateProgressNote(c echo.Context) error {
	id, err := wire.PathID(c)
	if err != nil {
		return err
	}
	var w ProgressNoteWrite
	if err := wire.Bind(c, &w); err != nil {
		return err
	}
	n, err := h.svc.Update(c.Request().Context(), id, w)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) PatchProgressNote(c echo.Context) error {
	id, err := wire.PathID(c)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	n, err := h.svc.Patch(c.Request().Context(), id, func(w *ProgressNoteWrite) error {
		return wire.Decode(body, w)
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}
