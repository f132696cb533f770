// Package disambiguate implements C4: classify a user utterance for booking
// intent (explicit/category/ambiguous/invalid) and produce ranked candidate
// services, using configurable, deterministic regex pattern groups — no
// ML ranking per the Non-goals.
package disambiguate

import (
	"context"
	"regexp"
	"strings"

	"github.com/jonatasporto/trinks-router/catalog"
	"github.com/jonatasporto/trinks-router/domain"
)

// Kind is the classifier's coarse intent label.
type Kind string

const (
	KindOption1          Kind = "option_1"
	KindOption2          Kind = "option_2"
	KindExplicitSchedule Kind = "explicit_schedule"
	KindAmbiguousSchedule Kind = "ambiguous_schedule"
	KindStop             Kind = "stop"
	KindUnknown          Kind = "unknown"
)

// NLPResult is Analyze's output.
type NLPResult struct {
	Kind       Kind
	Confidence float64
}

// ClassifyKind is Classify's output discriminant.
type ClassifyKind string

const (
	ClassifyExplicit  ClassifyKind = "explicit"
	ClassifyCategory  ClassifyKind = "category"
	ClassifyAmbiguous ClassifyKind = "ambiguous"
	ClassifyInvalid   ClassifyKind = "invalid"
)

// ClassifyResult is Classify's output.
type ClassifyResult struct {
	Kind        ClassifyKind
	Confidence  float64
	Suggestions []domain.CatalogSuggestion
}

// PatternGroups holds the configurable regex groups Analyze tests against,
// in fixed priority order (stop > option_1/option_2 > explicit > ambiguous).
type PatternGroups struct {
	Stop             []*regexp.Regexp
	Option1          []*regexp.Regexp
	Option2          []*regexp.Regexp
	ExplicitSchedule []*regexp.Regexp
	AmbiguousSchedule []*regexp.Regexp
	AmbiguousPhrase  []*regexp.Regexp
	GlueWords        map[string]bool
}

// DefaultPatternGroups returns the stock Brazilian-Portuguese pattern set
// used unless the caller supplies its own configuration.
func DefaultPatternGroups() PatternGroups {
	mustCompileAll := func(patterns ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(patterns))
		for i, p := range patterns {
			out[i] = regexp.MustCompile(p)
		}
		return out
	}
	return PatternGroups{
		Stop:              mustCompileAll(`(?i)^(parar|cancelar|sair|stop)$`),
		Option1:           mustCompileAll(`(?i)^\s*1\s*$`, `(?i)^\s*op(c|ç)ao\s*1\s*$`),
		Option2:           mustCompileAll(`(?i)^\s*2\s*$`, `(?i)^\s*op(c|ç)ao\s*2\s*$`),
		ExplicitSchedule:  mustCompileAll(`(?i)\bagendar\b.+\b(corte|escova|manicure|pedicure)\b`),
		AmbiguousSchedule: mustCompileAll(`(?i)\bagend(a|ar)\b`, `(?i)\bmarcar\b`),
		AmbiguousPhrase:   mustCompileAll(`(?i)^(oi|ola|bom dia|boa tarde|boa noite)$`),
		GlueWords:         map[string]bool{"e": true, "de": true, "da": true, "do": true, "um": true, "uma": true},
	}
}

// Service is C4's public operations.
type Service struct {
	patterns PatternGroups
	catalog  *catalog.Service
}

// New builds a disambiguation Service over the given catalog and pattern
// configuration.
func New(catalogSvc *catalog.Service, patterns PatternGroups) *Service {
	return &Service{patterns: patterns, catalog: catalogSvc}
}

// Analyze classifies text into one coarse intent with fixed tie-break
// priority: stop > option_1/option_2 > explicit > ambiguous > unknown.
func (s *Service) Analyze(text string) NLPResult {
	if matchesAny(s.patterns.Stop, text) {
		return NLPResult{Kind: KindStop, Confidence: 0.95}
	}
	if matchesAny(s.patterns.Option1, text) {
		return NLPResult{Kind: KindOption1, Confidence: 0.9}
	}
	if matchesAny(s.patterns.Option2, text) {
		return NLPResult{Kind: KindOption2, Confidence: 0.9}
	}
	if matchesAny(s.patterns.ExplicitSchedule, text) {
		return NLPResult{Kind: KindExplicitSchedule, Confidence: 0.85}
	}
	if matchesAny(s.patterns.AmbiguousSchedule, text) {
		return NLPResult{Kind: KindAmbiguousSchedule, Confidence: 0.6}
	}
	return NLPResult{Kind: KindUnknown, Confidence: 0}
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// IsAmbiguousPhrase reports whether text is too unspecific to search:
// shorter than 3 runes, matching a configured ambiguous-phrase pattern, or
// consisting only of "generic glue" words.
func (s *Service) IsAmbiguousPhrase(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < 3 {
		return true
	}
	if matchesAny(s.patterns.AmbiguousPhrase, trimmed) {
		return true
	}
	words := strings.Fields(catalog.Normalize(trimmed))
	if len(words) == 0 {
		return true
	}
	for _, w := range words {
		if !s.patterns.GlueWords[w] {
			return false
		}
	}
	return true
}

// ConfidenceOf scores a candidate suggestion against the normalized query:
// an exact match scores 1.0; otherwise the fraction of matched query words
// plus a 0.2 bonus if the candidate's category is a substring of the query,
// clamped to [0,1].
func ConfidenceOf(normalizedQuery string, candidateName, candidateNormalizedCategory string) float64 {
	normalizedCandidate := catalog.Normalize(candidateName)
	if normalizedQuery == normalizedCandidate {
		return 1.0
	}
	queryWords := strings.Fields(normalizedQuery)
	if len(queryWords) == 0 {
		return 0
	}
	candidateWords := make(map[string]bool)
	for _, w := range strings.Fields(normalizedCandidate) {
		candidateWords[w] = true
	}
	matched := 0
	for _, w := range queryWords {
		if candidateWords[w] {
			matched++
		}
	}
	score := float64(matched) / float64(len(queryWords))
	if candidateNormalizedCategory != "" && strings.Contains(normalizedQuery, candidateNormalizedCategory) {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Classify implements the full C4 decision table against the catalog.
func (s *Service) Classify(ctx context.Context, tenant domain.Tenant, text string) (ClassifyResult, error) {
	if s.IsAmbiguousPhrase(text) {
		return ClassifyResult{Kind: ClassifyAmbiguous}, nil
	}

	normalized := catalog.Normalize(text)
	suggestions, err := s.catalog.SearchSuggestions(ctx, tenant, text, 10)
	if err != nil {
		return ClassifyResult{}, err
	}
	if len(suggestions) == 0 {
		return ClassifyResult{Kind: ClassifyInvalid}, nil
	}

	top := suggestions[0]
	confidence := ConfidenceOf(normalized, top.Name, top.NormalizedCategory)

	if catalog.Normalize(top.Name) == normalized && confidence >= 0.85 {
		return ClassifyResult{Kind: ClassifyExplicit, Confidence: confidence, Suggestions: suggestions[:1]}, nil
	}

	isCategoryGeneric, err := s.catalog.IsCategoryGeneric(ctx, tenant, text)
	if err != nil {
		return ClassifyResult{}, err
	}
	top3 := suggestions
	if len(top3) > 3 {
		top3 = top3[:3]
	}
	if isCategoryGeneric || confidence >= 0.60 {
		return ClassifyResult{Kind: ClassifyCategory, Confidence: confidence, Suggestions: top3}, nil
	}
	if confidence >= 0.30 {
		return ClassifyResult{Kind: ClassifyAmbiguous, Confidence: confidence, Suggestions: top3}, nil
	}
	return ClassifyResult{Kind: ClassifyInvalid, Confidence: confidence}, nil
}
