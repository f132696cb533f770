package catalog

import (
	"context"
	"testing"

	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/storemem"
)

func TestSearchSuggestionsClampsLimit(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewCatalogStore()
	svc := New(backing)
	items := make([]domain.CatalogItem, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, domain.CatalogItem{
			ServiceID: string(rune('a' + i)), Name: "Corte", Active: true, VisibleToClient: true,
		})
	}
	if err := svc.Upsert(ctx, "t1", items); err != nil {
		t.Fatal(err)
	}

	out, err := svc.SearchSuggestions(ctx, "t1", "corte", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("limit=0 should clamp to 1, got %d", len(out))
	}

	out, err = svc.SearchSuggestions(ctx, "t1", "corte", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 10 {
		t.Fatalf("limit=100 should clamp to 10, got %d", len(out))
	}
}
