package out

import "context"

// ClassifierResult is the raw classifier verdict. Label is an open
// string; the categorization engine normalizes it onto the category
// enum and never trusts it as-is.
type ClassifierResult struct {
	Label      string
	Confidence float64
	Reasoning  string
}

// Classifier is the opaque AI classifier. Implementations are
// best-effort: timeouts and malformed responses surface as errors and
// the engine degrades to a default category.
type Classifier interface {
	Classify(ctx context.Context, text string) (*ClassifierResult, error)
}
