package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cmoralesdiaz/almacen/internal/domain"
)

func TestOrderRepository_PostgresCreateGetListAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := samplePedido("PED-1000000000001", "ana@example.com", now.Add(-2*time.Minute))
	order2 := samplePedido("PED-1000000000002", "ana@example.com", now.Add(-time.Minute))

	if err := repo.Create(order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.Contact.Email != order1.Contact.Email || got.Status != order1.Status {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if got.Total != order1.Total || got.Shipping.Cost != order1.Shipping.Cost {
		t.Fatalf("unexpected money fields: %+v", got)
	}
	if len(got.Items) != len(order1.Items) {
		t.Fatalf("unexpected items count: got=%d want=%d", len(got.Items), len(order1.Items))
	}
	if got.Items[0] != order1.Items[0] {
		t.Fatalf("unexpected item snapshot: %+v", got.Items[0])
	}
	if got.Customer == nil || got.Customer.Email != order1.Customer.Email {
		t.Fatalf("unexpected customer snapshot: %+v", got.Customer)
	}

	byEmail, err := repo.ListByEmail("ana@example.com")
	if err != nil {
		t.Fatalf("list by email: %v", err)
	}
	if len(byEmail) != 2 || byEmail[0].ID != order2.ID {
		t.Fatalf("unexpected list by email result: %+v", byEmail)
	}

	if other, err := repo.ListByEmail("Ana@example.com"); err != nil || len(other) != 0 {
		t.Fatalf("email match must be case-sensitive: %v %+v", err, other)
	}

	all, err := repo.List()
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}

	got.Status = domain.OrderStatusPreparing
	got.Read = true
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(got); err != nil {
		t.Fatalf("save order: %v", err)
	}

	updated, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if updated.Status != domain.OrderStatusPreparing {
		t.Fatalf("unexpected status after save: %s", updated.Status)
	}
	if !updated.Read {
		t.Fatal("expected read flag to persist")
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}
}

func TestOrderRepository_PostgresGuestOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	guest := samplePedido("PED-1000000000003", "invitado@example.com", now)
	guest.Customer = nil

	if err := repo.Create(guest); err != nil {
		t.Fatalf("create guest order: %v", err)
	}

	got, err := repo.Get(guest.ID)
	if err != nil {
		t.Fatalf("get guest order: %v", err)
	}
	if got.Customer != nil {
		t.Fatalf("expected nil customer snapshot for guest order, got %+v", got.Customer)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := samplePedido("PED-1000000000009", "luis@example.com", now)

	if _, err := repo.Get("PED-missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := repo.Save(base); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on save missing, got %v", err)
	}

	if err := repo.Create(base); err != nil {
		t.Fatalf("create base order: %v", err)
	}
	if err := repo.Create(base); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on duplicate create, got %v", err)
	}

	stale := base
	stale.Status = domain.OrderStatusCanceled
	stale.UpdatedAt = now.Add(time.Minute)
	stale.Version = 42
	if err := repo.Save(stale); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on stale save, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func samplePedido(id, email string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{
			ProductID: 1,
			Name:      "Pan integral",
			UnitPrice: 1890,
			Quantity:  2,
			Subtotal:  3780,
		},
		{
			ProductID: 2,
			Name:      "Leche entera 1L",
			UnitPrice: 1190,
			Quantity:  1,
			Subtotal:  1190,
		},
	}

	return domain.Order{
		ID: id,
		Customer: &domain.UserSnapshot{
			ID:      7,
			Name:    "Ana",
			Surname: "Rojas",
			Email:   email,
		},
		Contact: domain.Contact{
			Name:    "Ana",
			Surname: "Rojas",
			Email:   email,
			Phone:   "+56911112222",
		},
		Shipping: domain.ShippingInfo{
			Address: "Av. Providencia 1234",
			City:    "Santiago",
			Region:  "RM",
			Cost:    3990,
		},
		Items:        items,
		Subtotal:     4970,
		ShippingCost: 3990,
		Total:        8960,
		Status:       domain.OrderStatusConfirmed,
		Version:      0,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}
