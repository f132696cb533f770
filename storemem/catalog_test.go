package storemem

import (
	"context"
	"testing"

	"github.com/jonatasporto/trinks-router/domain"
)

func price(v float64) *float64 { return &v }

func TestSearchSuggestionsFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := NewCatalogStore()
	_ = s.Upsert(ctx, "t1", []domain.CatalogItem{
		{ServiceID: "s1", ProfessionalID: 0, Name: "Corte Feminino", NormalizedName: "corte feminino", NormalizedCategory: "cabelo", Active: true, VisibleToClient: true, Price: price(80)},
		{ServiceID: "s2", ProfessionalID: 0, Name: "Corte Masculino", NormalizedName: "corte masculino", NormalizedCategory: "cabelo", Active: true, VisibleToClient: true, Price: price(50)},
		{ServiceID: "s3", ProfessionalID: 0, Name: "Manicure", NormalizedName: "manicure", NormalizedCategory: "unhas", Active: true, VisibleToClient: true, Price: price(30)},
		{ServiceID: "s4", ProfessionalID: 0, Name: "Corte Inativo", NormalizedName: "corte inativo", NormalizedCategory: "cabelo", Active: false, VisibleToClient: true, Price: price(10)},
	})

	out, err := s.SearchSuggestions(ctx, "t1", "corte", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].ServiceID != "s2" {
		t.Fatalf("expected cheaper service first, got %s", out[0].ServiceID)
	}
}

func TestIsCategoryGenericRequiresTwoDistinctServices(t *testing.T) {
	ctx := context.Background()
	s := NewCatalogStore()
	_ = s.Upsert(ctx, "t1", []domain.CatalogItem{
		{ServiceID: "s1", NormalizedCategory: "cabelo", Active: true, VisibleToClient: true},
	})
	generic, _ := s.IsCategoryGeneric(ctx, "t1", "cabelo")
	if generic {
		t.Fatal("expected false with only one service in category")
	}
	_ = s.Upsert(ctx, "t1", []domain.CatalogItem{
		{ServiceID: "s2", NormalizedCategory: "cabelo", Active: true, VisibleToClient: true},
	})
	generic, _ = s.IsCategoryGeneric(ctx, "t1", "cabelo")
	if !generic {
		t.Fatal("expected true with two distinct services in category")
	}
}

func TestExistsForBookingAnyProfessional(t *testing.T) {
	ctx := context.Background()
	s := NewCatalogStore()
	_ = s.Upsert(ctx, "t1", []domain.CatalogItem{{ServiceID: "s1", ProfessionalID: 7, Active: true, VisibleToClient: true}})
	ok, _ := s.ExistsForBooking(ctx, "t1", "s1", nil)
	if !ok {
		t.Fatal("expected nil professional to match any row")
	}
	var other int64 = 99
	ok, _ = s.ExistsForBooking(ctx, "t1", "s1", &other)
	if ok {
		t.Fatal("expected mismatched professional id to not match")
	}
}
