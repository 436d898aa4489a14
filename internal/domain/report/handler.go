package report

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/carehub/hms/internal/platform/auth"
	"github.com/carehub/hms/pkg/apperror"
	"github.com/carehub/hms/pkg/dateutil"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireCapability(auth.ViewReports))
	g.GET("/inventory", h.Inventory)
	g.GET("/inventory.xlsx", h.InventoryXLSX)
	g.GET("/expiring", h.Expiring)
}

func (h *Handler) Inventory(c echo.Context) error {
	r, err := h.svc.Inventory(c.Request().Context())
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) InventoryXLSX(c echo.Context) error {
	r, err := h.svc.Inventory(c.Request().Context())
	if err != nil {
		return apperror.ToHTTP(err)
	}
	var buf bytes.Buffer
	if err := WriteInventory(&buf, r); err != nil {
		return err
	}
	name := "inventory-" + r.GeneratedAt.Format(dateutil.DateLayout) + ".xlsx"
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

func (h *Handler) Expiring(c echo.Context) error {
	days := 0
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
		days = n
	}
	r, err := h.svc.Expiring(c.Request().Context(), days)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}
