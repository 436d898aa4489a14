package bed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/carehub/hms/pkg/apperror"
)

type mockRepo struct {
	beds   map[uuid.UUID]*Bed
	locked []uuid.UUID
}

func newMockRepo() *mockRepo {
	return &mockRepo{beds: make(map[uuid.UUID]*Bed)}
}

func (m *mockRepo) Create(_ context.Context, b *Bed) error {
	b.ID = uuid.New()
	cp := *b
	m.beds[b.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Bed, error) {
	b, ok := m.beds[id]
	if !ok {
		return nil, apperror.NotFound("bed not found")
	}
	cp := *b
	return &cp, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error) {
	m.locked = append(m.locked, id)
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(_ context.Context, b *Bed) error {
	cp := *b
	m.beds[b.ID] = &cp
	return nil
}

func (m *mockRepo) SaveOccupancy(_ context.Context, b *Bed) error {
	stored := m.beds[b.ID]
	stored.IsOccupied = b.IsOccupied
	stored.CurrentAdmissionID = b.CurrentAdmissionID
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.beds, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, availableOnly bool) ([]*Bed, error) {
	var out []*Bed
	for _, b := range m.beds {
		if !availableOnly || (!b.IsOccupied && b.IsActive) {
			out = append(out, b)
		}
	}
	return out, nil
}

type passThroughTx struct{}

func (passThroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, passThroughTx{}), repo
}

func addBed(t *testing.T, svc *Service, number string) *Bed {
	t.Helper()
	b := &Bed{BedNumber: number, BedName: "Ward " + number, ChargePerDay: decimal.NewFromInt(500)}
	if err := svc.Create(context.Background(), b); err != nil {
		t.Fatalf("create bed %s: %v", number, err)
	}
	return b
}

func TestBed_Transitions(t *testing.T) {
	adm := uuid.New()
	other := uuid.New()
	tests := []struct {
		name    string
		bed     Bed
		op      func(b *Bed) error
		wantErr bool
	}{
		{"occupy free bed", Bed{IsActive: true}, func(b *Bed) error { return b.Occupy(adm) }, false},
		{"occupy occupied bed", Bed{IsActive: true, IsOccupied: true, CurrentAdmissionID: &other}, func(b *Bed) error { return b.Occupy(adm) }, true},
		{"occupy inactive bed", Bed{}, func(b *Bed) error { return b.Occupy(adm) }, true},
		{"release own bed", Bed{IsActive: true, IsOccupied: true, CurrentAdmissionID: &adm}, func(b *Bed) error { return b.Release(adm) }, false},
		{"release someone else's bed", Bed{IsActive: true, IsOccupied: true, CurrentAdmissionID: &other}, func(b *Bed) error { return b.Release(adm) }, true},
		{"release free bed", Bed{IsActive: true}, func(b *Bed) error { return b.Release(adm) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.bed
			err := tt.op(&b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperror.ErrInvalidBedTransition) {
				t.Errorf("expected invalid bed transition, got %v", err)
			}
		})
	}
}

func TestService_OccupyTwiceFails(t *testing.T) {
	svc, _ := newTestService()
	b := addBed(t, svc, "101")

	if _, err := svc.Occupy(context.Background(), b.ID, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Occupy(context.Background(), b.ID, uuid.New()); !errors.Is(err, apperror.ErrInvalidBedTransition) {
		t.Errorf("expected invalid bed transition, got %v", err)
	}
}

func TestService_ReleaseFreesBed(t *testing.T) {
	svc, repo := newTestService()
	b := addBed(t, svc, "101")
	adm := uuid.New()
	svc.Occupy(context.Background(), b.ID, adm)

	if err := svc.Release(context.Background(), b.ID, adm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.beds[b.ID].IsOccupied || repo.beds[b.ID].CurrentAdmissionID != nil {
		t.Errorf("expected bed to be free, got %+v", repo.beds[b.ID])
	}
}

func TestService_TransferLocksInIDOrder(t *testing.T) {
	svc, repo := newTestService()
	a := addBed(t, svc, "101")
	b := addBed(t, svc, "102")
	adm := uuid.New()
	svc.Occupy(context.Background(), a.ID, adm)
	repo.locked = nil

	to, err := svc.Transfer(context.Background(), a.ID, b.ID, adm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if to.ID != b.ID || !repo.beds[b.ID].IsOccupied || repo.beds[a.ID].IsOccupied {
		t.Errorf("expected the admission to move from 101 to 102")
	}
	if len(repo.locked) != 2 || bytes.Compare(repo.locked[0][:], repo.locked[1][:]) > 0 {
		t.Errorf("expected beds locked in ascending id order, got %v", repo.locked)
	}
}

func TestService_TransferToOccupiedBedChangesNothing(t *testing.T) {
	svc, repo := newTestService()
	a := addBed(t, svc, "101")
	b := addBed(t, svc, "102")
	first, second := uuid.New(), uuid.New()
	svc.Occupy(context.Background(), a.ID, first)
	svc.Occupy(context.Background(), b.ID, second)

	if _, err := svc.Transfer(context.Background(), a.ID, b.ID, first); !errors.Is(err, apperror.ErrInvalidBedTransition) {
		t.Fatalf("expected invalid bed transition, got %v", err)
	}
	if *repo.beds[a.ID].CurrentAdmissionID != first || *repo.beds[b.ID].CurrentAdmissionID != second {
		t.Error("occupancy changed after a failed transfer")
	}
}

func TestService_DeleteOccupiedBed(t *testing.T) {
	svc, repo := newTestService()
	b := addBed(t, svc, "101")
	svc.Occupy(context.Background(), b.ID, uuid.New())

	if err := svc.Delete(context.Background(), b.ID); !errors.Is(err, apperror.ErrInvalidBedTransition) {
		t.Errorf("expected invalid bed transition, got %v", err)
	}
	if _, ok := repo.beds[b.ID]; !ok {
		t.Error("occupied bed was deleted")
	}
}

func TestService_UpdateKeepsOccupancy(t *testing.T) {
	svc, repo := newTestService()
	b := addBed(t, svc, "101")
	adm := uuid.New()
	svc.Occupy(context.Background(), b.ID, adm)

	edit := &Bed{ID: b.ID, BedNumber: "101", BedName: "Cabin", ChargePerDay: decimal.NewFromInt(900), IsActive: true}
	if err := svc.Update(context.Background(), edit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.beds[b.ID]
	if !stored.IsOccupied || stored.BedName != "Cabin" {
		t.Errorf("unexpected bed after update %+v", stored)
	}

	edit.IsActive = false
	if err := svc.Update(context.Background(), edit); !errors.Is(err, apperror.ErrInvalidBedTransition) {
		t.Errorf("expected occupied bed to stay in service, got %v", err)
	}
}

func TestHandler_Available(t *testing.T) {
	svc, _ := newTestService()
	a := addBed(t, svc, "101")
	addBed(t, svc, "102")
	svc.Occupy(context.Background(), a.ID, uuid.New())
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	if err := h.Available(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/beds/available", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Beds []Bed `json:"beds"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Beds) != 1 || body.Beds[0].BedNumber != "102" {
		t.Errorf("expected only bed 102, got %+v", body.Beds)
	}
}
