package investigation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/internal/domain/billing"
	"github.com/carehub/hms/internal/domain/catalog"
	"github.com/carehub/hms/pkg/apperror"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// -- Mock Repository --

type mockRepo struct {
	bills map[uuid.UUID]*Bill
	seq   int64
}

func clone(b *Bill) *Bill {
	c := *b
	c.Lines = append([]Line(nil), b.Lines...)
	c.Payments = append([]Payment(nil), b.Payments...)
	return &c
}

func (r *mockRepo) Create(_ context.Context, b *Bill) error {
	r.seq++
	b.ID = uuid.New()
	b.Number = r.seq
	for i := range b.Payments {
		b.Payments[i].ID = uuid.New()
	}
	r.bills[b.ID] = clone(b)
	return nil
}

func (r *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Bill, error) {
	b, ok := r.bills[id]
	if !ok {
		return nil, apperror.NotFound("investigation bill not found")
	}
	return clone(b), nil
}

func (r *mockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return r.GetByID(ctx, id)
}

func (r *mockRepo) AddPayment(_ context.Context, b *Bill, p *Payment) error {
	p.ID = uuid.New()
	r.bills[b.ID] = clone(b)
	return nil
}

func (r *mockRepo) UpdateReport(_ context.Context, b *Bill) error {
	if _, ok := r.bills[b.ID]; !ok {
		return apperror.NotFound("investigation bill not found")
	}
	r.bills[b.ID] = clone(b)
	return nil
}

func (r *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Bill, int, error) {
	var out []*Bill
	for _, b := range r.bills {
		if f.PaymentStatus != "" && b.PaymentStatus != f.PaymentStatus {
			continue
		}
		if f.HasDue && !b.Due.IsPositive() {
			continue
		}
		out = append(out, clone(b))
	}
	return out, len(out), nil
}

type fakeCatalog map[uuid.UUID]*catalog.MedicalService

func (f fakeCatalog) Active(_ context.Context, id uuid.UUID) (*catalog.MedicalService, error) {
	s, ok := f[id]
	if !ok {
		return nil, apperror.NotFound("service not found")
	}
	if !s.IsActive {
		return nil, apperror.Validation("service %s is no longer offered", s.Name)
	}
	return s, nil
}

type passThroughTx struct{}

func (passThroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc   *Service
	repo  *mockRepo
	cbc   uuid.UUID
	xray  uuid.UUID
	stale uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{repo: &mockRepo{bills: make(map[uuid.UUID]*Bill)}}
	cat := fakeCatalog{}
	for _, s := range []*catalog.MedicalService{
		{ID: uuid.New(), Name: "CBC", Price: dec("400"), IsActive: true},
		{ID: uuid.New(), Name: "X-Ray", Price: dec("600"), IsActive: true},
		{ID: uuid.New(), Name: "Retired", Price: dec("10"), IsActive: false},
	} {
		cat[s.ID] = s
	}
	for id, s := range cat {
		switch s.Name {
		case "CBC":
			f.cbc = id
		case "X-Ray":
			f.xray = id
		default:
			f.stale = id
		}
	}
	f.svc = NewService(f.repo, passThroughTx{}, cat)
	f.svc.now = func() time.Time { return now }
	return f
}

func (f *fixture) input(paid string) CreateInput {
	return CreateInput{
		PatientID:    uuid.New(),
		ConsultantID: uuid.New(),
		DeliveryDate: now.Add(48 * time.Hour),
		Items:        []Item{{ServiceID: f.cbc, Quantity: 2}, {ServiceID: f.xray}},
		Discount:     dec("100"),
		Paid:         dec(paid),
	}
}

func TestBill_AdvanceReport(t *testing.T) {
	tests := []struct {
		from, to ReportStatus
		wantErr  bool
	}{
		{ReportPending, ReportReady, false},
		{ReportReady, ReportDelivered, false},
		{ReportPending, ReportDelivered, false},
		{ReportReady, ReportReady, false},
		{ReportDelivered, ReportReady, true},
		{ReportReady, ReportPending, true},
		{ReportPending, "Lost", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			b := &Bill{ReportStatus: tt.from}
			err := b.AdvanceReport(tt.to, "u1", now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AdvanceReport() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && b.ReportStatus != tt.from {
				t.Errorf("status changed on failure to %s", b.ReportStatus)
			}
			if !tt.wantErr && tt.to == ReportDelivered && (b.ReportDeliveredAt == nil || b.ReportDeliveredBy != "u1") {
				t.Errorf("delivery not recorded: %+v", b)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	f := newFixture()
	b, err := f.svc.Create(context.Background(), f.input("500"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2 x 400 + 600 = 1400, less 100
	if !b.TotalAmount.Equal(dec("1400")) || !b.GrandTotal.Equal(dec("1300")) {
		t.Errorf("unexpected totals %s / %s", b.TotalAmount, b.GrandTotal)
	}
	if !b.Paid.Equal(dec("500")) || !b.Due.Equal(dec("800")) || b.PaymentStatus != billing.StatusPartial {
		t.Errorf("unexpected settlement paid %s due %s status %s", b.Paid, b.Due, b.PaymentStatus)
	}
	if len(b.Payments) != 1 || b.Payments[0].Method != "Cash" || b.Payments[0].Remarks != "Initial payment" {
		t.Errorf("initial payment not recorded: %+v", b.Payments)
	}
	if b.Number != 1 || b.ReportStatus != ReportPending || b.Lines[1].Quantity != 1 {
		t.Errorf("unexpected bill %+v", b)
	}
}

func TestService_Create_Rejects(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name   string
		mutate func(in *CreateInput)
		want   error
	}{
		{"no patient", func(in *CreateInput) { in.PatientID = uuid.Nil }, apperror.ErrValidation},
		{"no consultant", func(in *CreateInput) { in.ConsultantID = uuid.Nil }, apperror.ErrValidation},
		{"no delivery date", func(in *CreateInput) { in.DeliveryDate = time.Time{} }, apperror.ErrValidation},
		{"delivery before bill", func(in *CreateInput) { in.DeliveryDate = now.Add(-48 * time.Hour) }, apperror.ErrValidation},
		{"no services", func(in *CreateInput) { in.Items = nil }, apperror.ErrValidation},
		{"discount above total", func(in *CreateInput) { in.Discount = dec("1401") }, apperror.ErrValidation},
		{"overpaid", func(in *CreateInput) { in.Paid = dec("1301") }, apperror.ErrOverpayment},
		{"inactive service", func(in *CreateInput) { in.Items = []Item{{ServiceID: f.stale}} }, apperror.ErrValidation},
		{"unknown service", func(in *CreateInput) { in.Items = []Item{{ServiceID: uuid.New()}} }, apperror.ErrNotFound},
		{"bad method", func(in *CreateInput) { in.PaymentMethod = "IOU" }, apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input("0")
			tt.mutate(&in)
			if _, err := f.svc.Create(context.Background(), in); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(f.repo.bills) != 0 {
		t.Errorf("rejected bills were stored: %d", len(f.repo.bills))
	}
}

func TestService_AddPayment(t *testing.T) {
	f := newFixture()
	b, err := f.svc.Create(context.Background(), f.input("0"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.PaymentStatus != billing.StatusPending {
		t.Errorf("expected Pending before any payment, got %s", b.PaymentStatus)
	}

	b, err = f.svc.AddPayment(context.Background(), b.ID, PaymentInput{Amount: dec("1000"), Method: "Card"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Due.Equal(dec("300")) || b.PaymentStatus != billing.StatusPartial {
		t.Errorf("unexpected due %s status %s", b.Due, b.PaymentStatus)
	}

	_, err = f.svc.AddPayment(context.Background(), b.ID, PaymentInput{Amount: dec("300.01")})
	if !errors.Is(err, apperror.ErrOverpayment) {
		t.Fatalf("expected overpayment, got %v", err)
	}
	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	if len(stored.Payments) != 1 {
		t.Errorf("rejected payment was stored: %+v", stored.Payments)
	}

	b, err = f.svc.AddPayment(context.Background(), b.ID, PaymentInput{Amount: dec("300")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Due.IsZero() || b.PaymentStatus != billing.StatusPaid {
		t.Errorf("expected Paid, got due %s status %s", b.Due, b.PaymentStatus)
	}

	payments, err := f.svc.Payments(context.Background(), b.ID)
	if err != nil || len(payments) != 2 {
		t.Errorf("expected two payments, got %d, %v", len(payments), err)
	}
}

func TestService_AddPayment_NonPositive(t *testing.T) {
	f := newFixture()
	b, _ := f.svc.Create(context.Background(), f.input("0"))
	for _, amount := range []string{"0", "-10"} {
		if _, err := f.svc.AddPayment(context.Background(), b.ID, PaymentInput{Amount: dec(amount)}); !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("amount %s: expected validation error, got %v", amount, err)
		}
	}
}

func TestService_UpdateReport(t *testing.T) {
	f := newFixture()
	b, _ := f.svc.Create(context.Background(), f.input("0"))
	remarks := "collected at front desk"

	b, err := f.svc.UpdateReport(context.Background(), b.ID, ReportDelivered, "u7", &remarks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ReportDeliveredBy != "u7" || !b.ReportDeliveredAt.Equal(now) || b.Remarks != remarks {
		t.Errorf("delivery not recorded: %+v", b)
	}
	if _, err := f.svc.UpdateReport(context.Background(), b.ID, ReportReady, "u7", nil); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected validation error moving back, got %v", err)
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_Create(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()
	body := `{"patient_id":"` + uuid.NewString() + `","consultant_id":"` + uuid.NewString() + `",
		"delivery_date":"2024-06-03","services":[{"service_id":"` + f.cbc.String() + `","quantity":1}],
		"paid":"400"}`

	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(jsonRequest(http.MethodPost, "/api/v1/investigations", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"payment_status":"Paid"`) {
		t.Errorf("expected a paid bill, got %s", rec.Body.String())
	}
}

func TestHandler_List_Filters(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()
	if _, err := f.svc.Create(context.Background(), f.input("0")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Create(context.Background(), f.input("1300")); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/?status=paid", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one paid bill, got %s", rec.Body.String())
	}

	err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/?status=settled", nil), httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown status, got %v", err)
	}
}

func TestHandler_AddPayment_InvalidID(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"amount":"10"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("42")

	err := h.AddPayment(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
