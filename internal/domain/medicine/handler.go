package medicine

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/platform/auth"
	"github.com/carehub/hms/pkg/apperror"
	"github.com/carehub/hms/pkg/dateutil"
	"github.com/carehub/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireCapability(auth.ViewMedicines))
	read.GET("/medicines", h.List)
	read.GET("/medicines/:id", h.Get)
	read.GET("/medicines/:id/movements", h.Movements)

	api.GET("/medicines/inventory", h.Inventory, auth.RequireCapability(auth.ViewInventory))
	api.POST("/medicines/receive", h.Receive, auth.RequireCapability(auth.AddMedicines))

	edit := api.Group("", auth.RequireCapability(auth.EditMedicines))
	edit.PUT("/medicines/:id", h.UpdateDetails)
	edit.PUT("/medicines/:id/batches/:batch", h.UpdateBatch)

	api.DELETE("/medicines/:id/batches/:batch", h.RemoveBatch, auth.RequireCapability(auth.DeleteMedicines))
}

type receiveRequest struct {
	Name          string          `json:"name"`
	GenericName   string          `json:"generic_name"`
	Brand         string          `json:"brand"`
	Manufacturer  string          `json:"manufacturer"`
	DosageForm    string          `json:"dosage_form"`
	Strength      string          `json:"strength"`
	Category      string          `json:"category"`
	MinStockLevel *int            `json:"min_stock_level"`
	BatchNumber   string          `json:"batch_number"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ExpiryDate    string          `json:"expiry_date"`
	PurchaseDate  string          `json:"purchase_date"`
	Supplier      string          `json:"supplier"`
}

func (r receiveRequest) toInput() (ReceiveInput, error) {
	expiry, err := dateutil.Parse(r.ExpiryDate)
	if err != nil {
		return ReceiveInput{}, apperror.Validation("expiry_date: %v", err)
	}
	purchased, err := dateutil.ParseOr(r.PurchaseDate, time.Time{})
	if err != nil {
		return ReceiveInput{}, apperror.Validation("purchase_date: %v", err)
	}
	return ReceiveInput{
		Name:          r.Name,
		GenericName:   r.GenericName,
		Brand:         r.Brand,
		Manufacturer:  r.Manufacturer,
		DosageForm:    r.DosageForm,
		Strength:      r.Strength,
		Category:      r.Category,
		MinStockLevel: r.MinStockLevel,
		Batch: Batch{
			BatchNumber:  strings.TrimSpace(r.BatchNumber),
			Quantity:     r.Quantity,
			UnitPrice:    r.UnitPrice,
			ExpiryDate:   expiry,
			PurchaseDate: purchased,
			Supplier:     r.Supplier,
		},
	}, nil
}

func (h *Handler) Receive(c echo.Context) error {
	var req receiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in, err := req.toInput()
	if err != nil {
		return apperror.ToHTTP(err)
	}
	res, err := h.svc.Receive(c.Request().Context(), in)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	status := http.StatusOK
	if res.Outcome == ReceiveCreated {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Query:       c.QueryParam("q"),
		InStockOnly: c.QueryParam("in_stock") == "true",
		LowStock:    c.QueryParam("low_stock") == "true",
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Inventory(c echo.Context) error {
	items, err := h.svc.Inventory(c.Request().Context())
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"medicines": items,
		"count":     len(items),
	})
}

func (h *Handler) UpdateDetails(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var d Details
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.UpdateDetails(c.Request().Context(), id, d)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

type batchUpdateRequest struct {
	Quantity   *int             `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
	ExpiryDate *string          `json:"expiry_date"`
	Supplier   *string          `json:"supplier"`
}

func (h *Handler) UpdateBatch(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req batchUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patch := BatchPatch{Quantity: req.Quantity, UnitPrice: req.UnitPrice, Supplier: req.Supplier}
	if req.ExpiryDate != nil {
		exp, err := dateutil.Parse(*req.ExpiryDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "expiry_date: "+err.Error())
		}
		patch.ExpiryDate = &exp
	}
	m, err := h.svc.UpdateBatch(c.Request().Context(), id, c.Param("batch"), patch)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) RemoveBatch(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.RemoveBatch(c.Request().Context(), id, c.Param("batch"))
	if err != nil {
		return apperror.ToHTTP(err)
	}
	if m == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"deleted": true})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": false, "medicine": m})
}

func (h *Handler) Movements(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Movements(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
