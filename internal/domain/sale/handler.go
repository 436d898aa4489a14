package sale

import (
	"net/http"
	"strconv"
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
	g := api.Group("", auth.RequireCapability(auth.OutdoorSales))
	g.GET("/outdoor-sales", h.List)
	g.POST("/outdoor-sales", h.Create)
	g.GET("/outdoor-sales/:id", h.Get)
	g.GET("/outdoor-sales/by-number/:number", h.GetByNumber)
}

type createRequest struct {
	SaleDate      string          `json:"sale_date"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	Medicines     []Item          `json:"medicines"`
	Discount      decimal.Decimal `json:"discount"`
	Paid          decimal.Decimal `json:"paid"`
	PaymentMethod string          `json:"payment_method"`
	Remarks       string          `json:"remarks"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := dateutil.ParseOr(req.SaleDate, time.Time{})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "sale_date: "+err.Error())
	}
	ctx := c.Request().Context()
	s, err := h.svc.Create(ctx, CreateInput{
		SaleDate:      date,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Items:         req.Medicines,
		Discount:      req.Discount,
		Paid:          req.Paid,
		PaymentMethod: req.PaymentMethod,
		SoldBy:        auth.UserIDFromContext(ctx),
		Remarks:       req.Remarks,
	})
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) GetByNumber(c echo.Context) error {
	n, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil || n <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bill number")
	}
	s, err := h.svc.GetByNumber(c.Request().Context(), n)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, s)
}

// List accepts start_date and end_date as calendar days; both are inclusive.
func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f ListFilter
	if v := c.QueryParam("start_date"); v != "" {
		t, err := dateutil.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "start_date: "+err.Error())
		}
		from := dateutil.StartOfDay(t)
		f.From = &from
	}
	if v := c.QueryParam("end_date"); v != "" {
		t, err := dateutil.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "end_date: "+err.Error())
		}
		to := dateutil.StartOfDay(t).AddDate(0, 0, 1)
		f.To = &to
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
