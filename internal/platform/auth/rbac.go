package auth

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

type Capability string

const (
	ViewMedicines        Capability = "view_medicines"
	AddMedicines         Capability = "add_medicines"
	EditMedicines        Capability = "edit_medicines"
	DeleteMedicines      Capability = "delete_medicines"
	ViewInventory        Capability = "view_inventory"
	ManageInventory      Capability = "manage_inventory"
	ManagePatients       Capability = "manage_patients"
	ViewPatients         Capability = "view_patients"
	CreateInvestigations Capability = "create_investigations"
	ViewInvestigations   Capability = "view_investigations"
	CollectPayments      Capability = "collect_payments"
	ManageAdmissions     Capability = "manage_admissions"
	ViewAdmissions       Capability = "view_admissions"
	OutdoorSales         Capability = "outdoor_sales"
	IndoorSales          Capability = "indoor_sales"
	DischargePatients    Capability = "discharge_patients"
	ManageDoctors        Capability = "manage_doctors"
	ManageBeds           Capability = "manage_beds"
	ManageServices       Capability = "manage_services"
	ViewReports          Capability = "view_reports"
)

// AllCapabilities is the closed set of capabilities the API checks.
var AllCapabilities = []Capability{
	ViewMedicines, AddMedicines, EditMedicines, DeleteMedicines,
	ViewInventory, ManageInventory, ManagePatients, ViewPatients,
	CreateInvestigations, ViewInvestigations, CollectPayments,
	ManageAdmissions, ViewAdmissions, OutdoorSales, IndoorSales,
	DischargePatients, ManageDoctors, ManageBeds, ManageServices, ViewReports,
}

const (
	RoleAdmin        = "admin"
	RoleManager      = "manager"
	RoleDoctor       = "doctor"
	RoleReceptionist = "receptionist"
	RolePharmacist   = "pharmacist"
	RoleCashier      = "cashier"
	RoleViewer       = "viewer"
)

// RoleCapabilities lists the default grants per role. Admin is absent
// because it holds every capability.
var RoleCapabilities = map[string][]Capability{
	RoleManager: {
		ViewMedicines, AddMedicines, EditMedicines, ViewInventory, ManageInventory,
		ManagePatients, ViewPatients, CreateInvestigations, ViewInvestigations,
		CollectPayments, ManageAdmissions, ViewAdmissions, DischargePatients,
		ManageDoctors, ManageBeds, ManageServices, ViewReports,
	},
	RoleDoctor: {
		ViewPatients, ManagePatients, ViewAdmissions, ManageAdmissions,
		CreateInvestigations, ViewInvestigations, ViewMedicines,
	},
	RoleReceptionist: {
		ManagePatients, ViewPatients, CreateInvestigations, ViewInvestigations,
		CollectPayments, ManageAdmissions, ViewAdmissions,
	},
	RolePharmacist: {
		ViewMedicines, AddMedicines, EditMedicines, ViewInventory, ManageInventory,
		OutdoorSales, IndoorSales,
	},
	RoleCashier: {
		ViewPatients, ViewInvestigations, ViewAdmissions, CollectPayments,
		DischargePatients, OutdoorSales, IndoorSales,
	},
	RoleViewer: {
		ViewPatients, ViewInvestigations, ViewAdmissions, ViewMedicines, ViewInventory,
	},
}

type CapabilitySet map[Capability]bool

// NewCapabilitySet merges role defaults with explicit grants. Unknown
// capability strings are dropped.
func NewCapabilitySet(roles, permissions []string) CapabilitySet {
	set := make(CapabilitySet)
	for _, role := range roles {
		if role == RoleAdmin {
			for _, c := range AllCapabilities {
				set[c] = true
			}
			return set
		}
		for _, c := range RoleCapabilities[role] {
			set[c] = true
		}
	}

	known := make(map[Capability]bool, len(AllCapabilities))
	for _, c := range AllCapabilities {
		known[c] = true
	}
	for _, p := range permissions {
		if c := Capability(p); known[c] {
			set[c] = true
		}
	}
	return set
}

func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// HasAny reports whether at least one of caps is held.
func (s CapabilitySet) HasAny(caps ...Capability) bool {
	for _, c := range caps {
		if s[c] {
			return true
		}
	}
	return false
}

func (s CapabilitySet) List() []string {
	out := make([]string, 0, len(s))
	for c, ok := range s {
		if ok {
			out = append(out, string(c))
		}
	}
	sort.Strings(out)
	return out
}

const capabilitiesKey contextKey = "capabilities"

// ResolveCapabilities computes the caller's capability set once and stores it
// on the request context. It must run after the authentication middleware.
func ResolveCapabilities() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			set := NewCapabilitySet(RolesFromContext(ctx), PermissionsFromContext(ctx))
			c.SetRequest(c.Request().WithContext(WithCapabilities(ctx, set)))
			return next(c)
		}
	}
}

func WithCapabilities(ctx context.Context, set CapabilitySet) context.Context {
	return context.WithValue(ctx, capabilitiesKey, set)
}

// CapabilitiesFromContext returns the resolved set, or an empty set when
// ResolveCapabilities did not run.
func CapabilitiesFromContext(ctx context.Context) CapabilitySet {
	set, _ := ctx.Value(capabilitiesKey).(CapabilitySet)
	if set == nil {
		return CapabilitySet{}
	}
	return set
}

// RequireCapability allows the request when the caller holds any of caps.
func RequireCapability(caps ...Capability) echo.MiddlewareFunc {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if CapabilitiesFromContext(c.Request().Context()).HasAny(caps...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required capability: %s", strings.Join(names, " or ")))
		}
	}
}
