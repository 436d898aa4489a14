package medreturn

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carehub/hms/internal/platform/auth"
	"github.com/carehub/hms/pkg/apperror"
	"github.com/carehub/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireCapability(auth.ViewInventory, auth.ManageInventory))
	read.GET("/medicine-returns", h.List)
	read.GET("/medicine-returns/:id", h.Get)

	api.POST("/medicine-returns", h.Create, auth.RequireCapability(auth.ManageInventory))
}

type createRequest struct {
	ReturnType    Type      `json:"return_type"`
	OutdoorSaleID uuid.UUID `json:"outdoor_sale_id"`
	AdmissionID   uuid.UUID `json:"admission_id"`
	Medicines     []Item    `json:"medicines"`
	RefundMethod  string    `json:"refund_method"`
	Remarks       string    `json:"remarks"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	r, err := h.svc.Create(ctx, CreateInput{
		ReturnType:    req.ReturnType,
		OutdoorSaleID: req.OutdoorSaleID,
		AdmissionID:   req.AdmissionID,
		Items:         req.Medicines,
		RefundMethod:  req.RefundMethod,
		ProcessedBy:   auth.UserIDFromContext(ctx),
		Remarks:       req.Remarks,
	})
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{ReturnType: Type(c.QueryParam("return_type"))}
	switch f.ReturnType {
	case "", TypeOutdoor, TypeIndoor:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "return_type must be Outdoor or Indoor")
	}
	for param, dst := range map[string]**uuid.UUID{
		"outdoor_sale_id": &f.OutdoorSaleID,
		"admission_id":    &f.AdmissionID,
	} {
		v := c.QueryParam(param)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
		}
		*dst = &id
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
