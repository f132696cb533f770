package storelite

import (
	"context"
	"testing"
	"time"

	"github.com/jonatasporto/trinks-router/domain"
)

func price(v float64) *float64 { return &v }

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCatalogUpsertAndSearchSuggestions(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	cat := db.Catalog()

	err := cat.Upsert(ctx, "t1", []domain.CatalogItem{
		{ServiceID: "s1", ProfessionalID: 0, Name: "Corte Feminino", NormalizedName: "corte feminino", NormalizedCategory: "cabelo", Active: true, VisibleToClient: true, Price: price(80)},
		{ServiceID: "s2", ProfessionalID: 0, Name: "Corte Masculino", NormalizedName: "corte masculino", NormalizedCategory: "cabelo", Active: true, VisibleToClient: true, Price: price(50)},
		{ServiceID: "s4", ProfessionalID: 0, Name: "Corte Inativo", NormalizedName: "corte inativo", NormalizedCategory: "cabelo", Active: false, VisibleToClient: true, Price: price(10)},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	out, err := cat.SearchSuggestions(ctx, "t1", "corte", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 active+visible results, got %d", len(out))
	}
	if out[0].ServiceID != "s2" {
		t.Fatalf("expected cheaper service first, got %s", out[0].ServiceID)
	}
}

func TestCatalogUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	cat := db.Catalog()

	item := domain.CatalogItem{ServiceID: "s1", ProfessionalID: 1, Name: "Manicure", NormalizedName: "manicure", NormalizedCategory: "unhas", Active: true, VisibleToClient: true, Price: price(30)}
	if err := cat.Upsert(ctx, "t1", []domain.CatalogItem{item}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	item.Price = price(35)
	if err := cat.Upsert(ctx, "t1", []domain.CatalogItem{item}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	n, err := cat.CountAll(ctx, "t1")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected upsert to replace, not duplicate, got %d rows", n)
	}

	exists, err := cat.ExistsForBooking(ctx, "t1", "s1", nil)
	if err != nil || !exists {
		t.Fatalf("expected s1 to exist for booking, got exists=%v err=%v", exists, err)
	}
}

func TestConversationPutGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	conv := db.Conversations()

	cc := domain.ConversationContext{Tenant: "t1", Phone: "5511999990000", State: "awaiting_slot"}
	if err := conv.Put(ctx, cc, time.Hour); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := conv.Get(ctx, "t1", "5511999990000")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a freshly-put context to be retrievable before its ttl elapses")
	}
	if got.State != "awaiting_slot" {
		t.Fatalf("expected state to roundtrip, got %q", got.State)
	}
}
