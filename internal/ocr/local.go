package ocr

import "context"

// runLocal is the zero-cost fallback when no paid provider is
// configured or affordable. It performs no recognition; callers get an
// empty result instead of an error, so image handling degrades rather
// than failing in local setups without credentials.
func runLocal(_ context.Context, _ []byte) (*Result, error) {
	return &Result{Text: "", Confidence: 0, Language: "ja"}, nil
}
