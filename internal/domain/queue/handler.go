package queue

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hmis/hmis/internal/platform/auth"
	"github.com/hmis/hmis/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "nurse", "registrar", "cashier", "pharmacist", "physician", "lab_tech"))
	read.GET("/queue", h.List)
	read.GET("/queue/history", h.ListHistory)
	read.GET("/queue/:id", h.Get)
	read.GET("/queue/:id/time-summary", h.TimeSummary)

	write := api.Group("", auth.RequireRole("admin", "nurse", "registrar", "cashier", "pharmacist", "physician", "lab_tech"))
	write.POST("/queue", h.Create)
	write.PATCH("/queue/:id/status", h.UpdateStatus)
	write.DELETE("/queue/:id", h.Delete)
	write.POST("/queue/:id/archive", h.Archive)
	write.POST("/queue/archive-completed", h.BatchArchive)
	write.POST("/queue/chain", h.Chain)
	write.POST("/queue/cleanup/:servicePoint", h.Cleanup)
	write.POST("/queue/cashier/reconcile/:patientId", h.ReconcileCashier)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.CreatedBy = auth.UserIDFromContext(c.Request().Context())

	entry, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return queueError(err)
	}
	if entry.Duplicate {
		return c.JSON(http.StatusOK, entry)
	}
	return c.JSON(http.StatusCreated, entry)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entry, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return queueError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	filter := ListFilter{
		ServicePoint: ServicePoint(c.QueryParam("service_point")),
		Status:       Status(c.QueryParam("status")),
	}
	if pid := c.QueryParam("patient_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		filter.PatientID = id
	}

	entries, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	entry, err := h.svc.UpdateStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return queueError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return queueError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Archive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	hist, err := h.svc.Archive(c.Request().Context(), id)
	if err != nil {
		return queueError(err)
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) BatchArchive(c echo.Context) error {
	count, err := h.svc.BatchArchiveCompleted(c.Request().Context())
	if err != nil {
		return queueError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"archived": count})
}

func (h *Handler) Chain(c echo.Context) error {
	var req ChainRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.CreatedBy = auth.UserIDFromContext(c.Request().Context())

	result, err := h.svc.ChainTransition(c.Request().Context(), req)
	if err != nil {
		return queueError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) Cleanup(c echo.Context) error {
	sp := ServicePoint(c.Param("servicePoint"))
	removed, kept, err := h.svc.CleanupStale(c.Request().Context(), sp)
	if err != nil {
		return queueError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"removed": removed, "kept": kept})
}

func (h *Handler) TimeSummary(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ts, err := h.svc.TimeSummary(c.Request().Context(), id)
	if err != nil {
		return queueError(err)
	}
	return c.JSON(http.StatusOK, ts)
}

func (h *Handler) ReconcileCashier(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	completed, err := h.svc.CheckAndCompleteCashier(c.Request().Context(), patientID)
	if err != nil {
		return queueError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"completed": completed})
}

func (h *Handler) ListHistory(c echo.Context) error {
	pg := pagination.FromContext(c)
	sp := ServicePoint(c.QueryParam("service_point"))

	items, total, err := h.svc.ListHistory(c.Request().Context(), sp, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// queueError maps service errors to HTTP status codes: gate failures are 422,
// state conflicts 409, unknown ids 404, anything else 400/500.
func queueError(err error) error {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoPendingBills),
		errors.Is(err, ErrNoPendingPrescriptions),
		errors.Is(err, ErrPendingBills):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrTerminalEntry),
		errors.Is(err, ErrNotTerminal):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
