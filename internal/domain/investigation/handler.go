package investigation

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/domain/billing"
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
	read := api.Group("", auth.RequireCapability(auth.ViewInvestigations, auth.CreateInvestigations))
	read.GET("/investigations", h.List)
	read.GET("/investigations/:id", h.Get)
	read.GET("/investigations/:id/payments", h.Payments)

	write := api.Group("", auth.RequireCapability(auth.CreateInvestigations))
	write.POST("/investigations", h.Create)
	write.PUT("/investigations/:id/report", h.UpdateReport)

	api.POST("/investigations/:id/payments", h.AddPayment, auth.RequireCapability(auth.CollectPayments))
}

type createRequest struct {
	PatientID     uuid.UUID       `json:"patient_id"`
	ConsultantID  uuid.UUID       `json:"consultant_id"`
	BillDate      string          `json:"bill_date"`
	DeliveryDate  string          `json:"delivery_date"`
	Services      []Item          `json:"services"`
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
	billDate, err := dateutil.ParseOr(req.BillDate, time.Time{})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bill_date: "+err.Error())
	}
	delivery, err := dateutil.ParseOr(req.DeliveryDate, time.Time{})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "delivery_date: "+err.Error())
	}
	ctx := c.Request().Context()
	b, err := h.svc.Create(ctx, CreateInput{
		PatientID:     req.PatientID,
		ConsultantID:  req.ConsultantID,
		BillDate:      billDate,
		DeliveryDate:  delivery,
		Items:         req.Services,
		Discount:      req.Discount,
		Paid:          req.Paid,
		PaymentMethod: req.PaymentMethod,
		ReceivedBy:    auth.UserIDFromContext(ctx),
		Remarks:       req.Remarks,
	})
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

// titleCase accepts filters written as "pending" or "Pending".
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		PaymentStatus: billing.PaymentStatus(titleCase(c.QueryParam("status"))),
		ReportStatus:  ReportStatus(titleCase(c.QueryParam("report_status"))),
		HasDue:        c.QueryParam("has_due") == "true",
	}
	switch f.PaymentStatus {
	case "", billing.StatusPending, billing.StatusPartial, billing.StatusPaid:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "status must be pending, partial or paid")
	}
	if _, ok := reportRank[f.ReportStatus]; f.ReportStatus != "" && !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "report_status must be pending, ready or delivered")
	}
	if p := c.QueryParam("patient_id"); p != "" {
		pid, err := uuid.Parse(p)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &pid
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) AddPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Amount        decimal.Decimal `json:"amount"`
		PaymentMethod string          `json:"payment_method"`
		Remarks       string          `json:"remarks"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	b, err := h.svc.AddPayment(ctx, id, PaymentInput{
		Amount:     req.Amount,
		Method:     req.PaymentMethod,
		ReceivedBy: auth.UserIDFromContext(ctx),
		Remarks:    req.Remarks,
	})
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) Payments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	payments, err := h.svc.Payments(c.Request().Context(), id)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"payments": payments})
}

func (h *Handler) UpdateReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		ReportStatus string  `json:"report_status"`
		Remarks      *string `json:"remarks"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	b, err := h.svc.UpdateReport(ctx, id, ReportStatus(titleCase(req.ReportStatus)), auth.UserIDFromContext(ctx), req.Remarks)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}
