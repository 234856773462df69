package classify

import (
	"context"
	"fmt"
	"strings"

	"regwatch/app/catalog"
	"regwatch/app/feed"
)

// Category is the closed classification taxonomy. Anything the service
// returns outside this set maps to CategoryIrrelevant, never to a crash and
// never to a default relevant category.
type Category string

const (
	CategoryLicense        Category = "License"
	CategorySanction       Category = "Sanction"
	CategoryAMLCFT         Category = "AML/CFT"
	CategoryRegulatory     Category = "Regulatory"
	CategoryBenchmark      Category = "Benchmark Exchange License Update"
	CategoryLegalStructure Category = "Legal structure"
	CategoryIrrelevant     Category = "Irrelevant"
)

// Categories lists the relevant taxonomy values, excluding the fallback.
func Categories() []Category {
	return []Category{
		CategoryLicense,
		CategorySanction,
		CategoryAMLCFT,
		CategoryRegulatory,
		CategoryBenchmark,
		CategoryLegalStructure,
	}
}

// ParseCategory maps a raw service label to the taxonomy. Matching is
// case-insensitive; "None" and any unrecognized value fall back to
// CategoryIrrelevant.
func ParseCategory(raw string) Category {
	trimmed := strings.TrimSpace(raw)
	for _, category := range Categories() {
		if strings.EqualFold(trimmed, string(category)) {
			return category
		}
	}
	return CategoryIrrelevant
}

type Classification struct {
	EntryID  string
	Category Category
}

func (c Classification) Relevant() bool {
	return c.Category != CategoryIrrelevant
}

// ClassifierError marks a per-batch service failure (timeout, non-2xx,
// malformed response). The cycle runner retries the batch and, after
// exhaustion, defers its entries to the next cycle without marking them seen.
type ClassifierError struct {
	Err error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier: %v", e.Err)
}

func (e *ClassifierError) Unwrap() error {
	return e.Err
}

type Classifier interface {
	Classify(ctx context.Context, batch []feed.Entry, hints catalog.Keywords) ([]Classification, error)
}
