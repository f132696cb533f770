package disambiguate

import (
	"context"
	"testing"

	"github.com/jonatasporto/trinks-router/catalog"
	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/storemem"
)

func TestAnalyzeTieBreakPriority(t *testing.T) {
	svc := New(nil, DefaultPatternGroups())

	if got := svc.Analyze("cancelar"); got.Kind != KindStop {
		t.Fatalf("expected stop, got %v", got.Kind)
	}
	if got := svc.Analyze("1"); got.Kind != KindOption1 {
		t.Fatalf("expected option_1, got %v", got.Kind)
	}
	if got := svc.Analyze("2"); got.Kind != KindOption2 {
		t.Fatalf("expected option_2, got %v", got.Kind)
	}
	if got := svc.Analyze("quero agendar corte"); got.Kind != KindExplicitSchedule {
		t.Fatalf("expected explicit_schedule, got %v", got.Kind)
	}
	if got := svc.Analyze("queria marcar algo"); got.Kind != KindAmbiguousSchedule {
		t.Fatalf("expected ambiguous_schedule, got %v", got.Kind)
	}
	if got := svc.Analyze("xyz random"); got.Kind != KindUnknown {
		t.Fatalf("expected unknown, got %v", got.Kind)
	}
}

func TestIsAmbiguousPhraseShortText(t *testing.T) {
	svc := New(nil, DefaultPatternGroups())
	if !svc.IsAmbiguousPhrase("oi") {
		t.Fatal("expected short greeting to be ambiguous")
	}
	if !svc.IsAmbiguousPhrase("e de") {
		t.Fatal("expected glue-word-only phrase to be ambiguous")
	}
	if svc.IsAmbiguousPhrase("corte de cabelo") {
		t.Fatal("expected specific phrase to not be ambiguous")
	}
}

func TestConfidenceOfExactMatch(t *testing.T) {
	if got := ConfidenceOf("corte feminino", "Corte Feminino", ""); got != 1.0 {
		t.Fatalf("expected 1.0 for exact match, got %v", got)
	}
}

func TestConfidenceOfPartialMatchWithCategoryBonus(t *testing.T) {
	got := ConfidenceOf("corte cabelo curto", "Corte Curto", "cabelo")
	if got <= 0.5 || got > 1.0 {
		t.Fatalf("expected partial score with bonus clamped to <=1, got %v", got)
	}
}

func TestClassifyExplicitWhenExactNameMatch(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewCatalogStore()
	catSvc := catalog.New(backing)
	_ = catSvc.Upsert(ctx, "t1", []domain.CatalogItem{
		{ServiceID: "s1", Name: "Corte Feminino", Active: true, VisibleToClient: true},
	})
	svc := New(catSvc, DefaultPatternGroups())

	res, err := svc.Classify(ctx, "t1", "corte feminino")
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != ClassifyExplicit {
		t.Fatalf("expected explicit, got %v (confidence %v)", res.Kind, res.Confidence)
	}
}

func TestClassifyCategoryBonusCrossesThreshold(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewCatalogStore()
	catSvc := catalog.New(backing)
	// The query "cabelo li" is a substring of the item's normalized name
	// ("escova cabelo liso"), so SearchSuggestions returns it, but only one
	// of its two words ("cabelo") is a whole-word match — word overlap alone
	// scores 0.5, under the 0.60 category threshold. Only the category bonus
	// (the query containing "cabelo", the item's category) should push the
	// real Classify path over the threshold into ClassifyCategory.
	_ = catSvc.Upsert(ctx, "t1", []domain.CatalogItem{
		{ServiceID: "s1", Name: "Escova Cabelo Liso", Category: "Cabelo", Active: true, VisibleToClient: true},
	})
	svc := New(catSvc, DefaultPatternGroups())

	res, err := svc.Classify(ctx, "t1", "cabelo li")
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != ClassifyCategory {
		t.Fatalf("expected category bonus to cross the threshold on the real Classify path, got %v (confidence %v)", res.Kind, res.Confidence)
	}
	if res.Confidence < 0.60 {
		t.Fatalf("expected confidence >= 0.60 once the category bonus applies, got %v", res.Confidence)
	}
}

func TestClassifyInvalidWhenNoRows(t *testing.T) {
	ctx := context.Background()
	backing := storemem.NewCatalogStore()
	catSvc := catalog.New(backing)
	svc := New(catSvc, DefaultPatternGroups())

	res, err := svc.Classify(ctx, "t1", "coisa inexistente")
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != ClassifyInvalid {
		t.Fatalf("expected invalid, got %v", res.Kind)
	}
}
