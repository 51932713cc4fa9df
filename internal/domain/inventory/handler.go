package inventory

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

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
	g := api.Group("", auth.RequireRole("admin", "pharmacist", "storekeeper"))
	g.POST("/inventory/items", h.CreateItem)
	g.GET("/inventory/items", h.ListItems)
	g.GET("/inventory/items/low-stock", h.ListLowStock)
	g.GET("/inventory/items/:id", h.GetItem)
	g.PUT("/inventory/items/:id", h.UpdateItem)
	g.GET("/inventory/items/:id/transactions", h.ListItemTransactions)
	g.POST("/inventory/transactions", h.RecordTransaction)
	g.GET("/inventory/transactions", h.ListTransactions)
	g.DELETE("/inventory/transactions/:id", h.ReverseTransaction)
}

type createItemBody struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Category     *string         `json:"category,omitempty"`
	Unit         string          `json:"unit"`
	ReorderLevel int             `json:"reorder_level"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	OpeningStock int             `json:"opening_stock"`
}

func (h *Handler) CreateItem(c echo.Context) error {
	var body createItemBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	item := &Item{
		SKU:          body.SKU,
		Name:         body.Name,
		Category:     body.Category,
		Unit:         body.Unit,
		ReorderLevel: body.ReorderLevel,
		UnitCost:     body.UnitCost,
		ExpiryDate:   body.ExpiryDate,
	}
	performedBy := auth.UserIDFromContext(c.Request().Context())

	item, err := h.svc.CreateItem(c.Request().Context(), item, body.OpeningStock, performedBy)
	if err != nil {
		return inventoryError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return inventoryError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return inventoryError(err)
	}
	if err := c.Bind(item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item.ID = id
	if err := h.svc.UpdateItem(c.Request().Context(), item); err != nil {
		return inventoryError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListItems(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ListFilter{
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
	}

	items, total, err := h.svc.ListItems(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return inventoryError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListLowStock(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListLowStock(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return inventoryError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) RecordTransaction(c echo.Context) error {
	var req RecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.PerformedBy = auth.UserIDFromContext(c.Request().Context())

	txn, err := h.svc.RecordTransaction(c.Request().Context(), req)
	if err != nil {
		return inventoryError(err)
	}
	return c.JSON(http.StatusCreated, txn)
}

func (h *Handler) ReverseTransaction(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.ReverseTransaction(c.Request().Context(), id); err != nil {
		return inventoryError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListTransactions(c echo.Context) error {
	pg := pagination.FromContext(c)

	var itemID uuid.UUID
	if raw := c.QueryParam("item_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid item_id")
		}
		itemID = id
	}

	txns, total, err := h.svc.ListTransactions(c.Request().Context(), itemID, pg.Limit, pg.Offset)
	if err != nil {
		return inventoryError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(txns, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListItemTransactions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)

	txns, total, err := h.svc.ListTransactions(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return inventoryError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(txns, total, pg.Limit, pg.Offset))
}

func inventoryError(err error) error {
	switch {
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrTransactionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateSKU):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInsufficientStock):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
