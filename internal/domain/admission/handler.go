package admission

import (
	"net/http"
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
	read := api.Group("", auth.RequireCapability(auth.ViewAdmissions, auth.ManageAdmissions))
	read.GET("/admissions", h.List)
	read.GET("/admissions/:id", h.Get)
	read.GET("/admissions/:id/charges", h.Charges)
	read.GET("/admissions/:id/discharge", h.GetDischarge)

	manage := api.Group("", auth.RequireCapability(auth.ManageAdmissions))
	manage.POST("/admissions", h.Admit)
	manage.POST("/admissions/:id/bed-change", h.ChangeBed)
	manage.POST("/admissions/:id/services", h.AddService)

	api.POST("/admissions/:id/medicines", h.AddMedicine, auth.RequireCapability(auth.IndoorSales))
	api.POST("/admissions/:id/payments", h.AddPayment, auth.RequireCapability(auth.CollectPayments))
	api.POST("/admissions/:id/discharge", h.Discharge, auth.RequireCapability(auth.DischargePatients))
}

func admissionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type admitRequest struct {
	PatientID          uuid.UUID       `json:"patient_id"`
	ConsultantID       *uuid.UUID      `json:"consultant_id"`
	ReferredBy         string          `json:"referred_by"`
	ContactPersonName  string          `json:"contact_person_name"`
	ContactPersonPhone string          `json:"contact_person_phone"`
	BedID              uuid.UUID       `json:"bed_id"`
	AdmissionDate      string          `json:"admission_date"`
	AdmissionFee       decimal.Decimal `json:"admission_fee"`
	AdvanceAmount      decimal.Decimal `json:"advance_amount"`
}

func (h *Handler) Admit(c echo.Context) error {
	var req admitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	admitted, err := dateutil.ParseOr(req.AdmissionDate, time.Time{})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "admission_date: "+err.Error())
	}
	a, err := h.svc.Admit(c.Request().Context(), AdmitInput{
		PatientID:          req.PatientID,
		ConsultantID:       req.ConsultantID,
		ReferredBy:         req.ReferredBy,
		ContactPersonName:  req.ContactPersonName,
		ContactPersonPhone: req.ContactPersonPhone,
		BedID:              req.BedID,
		AdmissionDate:      admitted,
		AdmissionFee:       req.AdmissionFee,
		AdvanceAmount:      req.AdvanceAmount,
	})
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := admissionID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Status: Status(c.QueryParam("status"))}
	if f.Status != "" && f.Status != StatusAdmitted && f.Status != StatusDischarged {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be Admitted or Discharged")
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

func (h *Handler) ChangeBed(c echo.Context) error {
	id, err := admissionID(c)
	if err != nil {
		return err
	}
	var req struct {
		NewBedID uuid.UUID `json:"new_bed_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.NewBedID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "new_bed_id is required")
	}
	a, err := h.svc.ChangeBed(c.Request().Context(), id, req.NewBedID)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) AddMedicine(c echo.Context) error {
	id, err := admissionID(c)
	if err != nil {
		return err
	}
	var req struct {
		Medicines []MedicineItem `json:"medicines"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.AddMedicine(c.Request().Context(), id, req.Medicines)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) AddService(c echo.Context) error {
	id, err := admissionID(c)
	if err != nil {
		return err
	}
	var req struct {
		Services []ServiceItem `json:"services"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.AddService(c.Request().Context(), id, req.Services)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) AddPayment(c echo.Context) error {
	id, err := admissionID(c)
	if err != nil {
		return err
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Method string          `json:"method"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	p, err := h.svc.AddPayment(ctx, id, PaymentInput{
		Amount:     req.Amount,
		Method:     req.Method,
		ReceivedBy: auth.UserIDFromContext(ctx),
	})
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Charges(c echo.Context) error {
	id, err := admissionID(c)
	if err != nil {
		return err
	}
	asOf, err := dateutil.ParseOr(c.QueryParam("as_of"), time.Time{})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "as_of: "+err.Error())
	}
	b, err := h.svc.Charges(c.Request().Context(), id, asOf)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

type dischargeRequest struct {
	DischargeDate string          `json:"discharge_date"`
	Discount      decimal.Decimal `json:"discount"`
	Paid          decimal.Decimal `json:"paid"`
	PaymentMethod string          `json:"payment_method"`
	Remarks       string          `json:"remarks"`
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := admissionID(c)
	if err != nil {
		return err
	}
	var req dischargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	at, err := dateutil.ParseOr(req.DischargeDate, time.Time{})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "discharge_date: "+err.Error())
	}
	ctx := c.Request().Context()
	d, err := h.svc.Discharge(ctx, id, DischargeInput{
		DischargeDate: at,
		Discount:      req.Discount,
		Paid:          req.Paid,
		PaymentMethod: req.PaymentMethod,
		ReceivedBy:    auth.UserIDFromContext(ctx),
		Remarks:       req.Remarks,
	})
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDischarge(c echo.Context) error {
	id, err := admissionID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDischarge(c.Request().Context(), id)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}
