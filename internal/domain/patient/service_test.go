package patient

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carehub/hms/pkg/apperror"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	seq      int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) NextCode(_ context.Context) (string, error) {
	m.seq++
	return FormatCode(m.seq), nil
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperror.NotFound("patient not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByKey(_ context.Context, key string) (*Patient, error) {
	for _, p := range m.patients {
		if p.Key == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperror.NotFound("patient not found")
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.patients[id]; !ok {
		return apperror.NotFound("patient not found")
	}
	delete(m.patients, id)
	return nil
}

func (m *mockRepo) Search(_ context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	q := strings.ToLower(query)
	for _, p := range m.patients {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(p.Phone, q) || strings.Contains(strings.ToLower(p.Code), q) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

type passThroughTx struct{}

func (passThroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() *Service {
	return NewService(newMockRepo(), passThroughTx{})
}

func TestKey(t *testing.T) {
	tests := []struct {
		phone, name, want string
	}{
		{"01711000000", "Rahim Uddin", "01711000000-rahim uddin"},
		{" 01711000000 ", "  RAHIM Uddin ", "01711000000-rahim uddin"},
	}
	for _, tt := range tests {
		if got := Key(tt.phone, tt.name); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.phone, tt.name, got, tt.want)
		}
	}
}

func TestFormatCode(t *testing.T) {
	if got := FormatCode(42); got != "P000042" {
		t.Errorf("FormatCode(42) = %s", got)
	}
}

func TestService_Register(t *testing.T) {
	svc := newTestService()
	p := &Patient{Name: "Rahim Uddin", Age: 40, Sex: "Male", Phone: "01711000000", BloodGroup: "o+"}

	out, created, err := svc.Register(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || out.Code != "P000001" {
		t.Errorf("expected a new patient P000001, got created=%v code=%s", created, out.Code)
	}
	if out.BloodGroup != "O+" {
		t.Errorf("expected blood group normalised to O+, got %s", out.BloodGroup)
	}
}

func TestService_RegisterExistingReturnsIt(t *testing.T) {
	svc := newTestService()
	first, _, err := svc.Register(context.Background(), &Patient{Name: "Rahim Uddin", Age: 40, Sex: "Male", Phone: "01711000000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again, created, err := svc.Register(context.Background(), &Patient{Name: " rahim uddin", Age: 41, Sex: "Male", Phone: "01711000000 "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected the existing patient to be returned")
	}
	if again.ID != first.ID || again.Code != first.Code {
		t.Errorf("expected %s, got %s", first.Code, again.Code)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		name string
		p    Patient
	}{
		{"missing name", Patient{Age: 1, Sex: "Male", Phone: "1"}},
		{"missing phone", Patient{Name: "A", Age: 1, Sex: "Male"}},
		{"negative age", Patient{Name: "A", Age: -1, Sex: "Male", Phone: "1"}},
		{"bad sex", Patient{Name: "A", Age: 1, Sex: "M", Phone: "1"}},
		{"bad blood group", Patient{Name: "A", Age: 1, Sex: "Female", Phone: "1", BloodGroup: "C+"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.p
			if _, _, err := svc.Register(context.Background(), &p); !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_UpdateRecomputesKey(t *testing.T) {
	svc := newTestService()
	p, _, _ := svc.Register(context.Background(), &Patient{Name: "Karim", Age: 30, Sex: "Male", Phone: "0100"})

	p.Phone = "0200"
	if err := svc.Update(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.Get(context.Background(), p.ID)
	if got.Key != "0200-karim" {
		t.Errorf("expected key 0200-karim, got %s", got.Key)
	}
}
