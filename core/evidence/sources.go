package evidence

import (
	"context"
	"fmt"

	"github.com/lcabon/resq/core/model"
)

// StandardResult carries the structured standards plus the query that
// produced them, so the lookup can be independently re-run.
type StandardResult struct {
	Query string
	Items []model.StandardItem
}

// StandardSource is the structured knowledge collaborator (knowledge
// graph).
type StandardSource interface {
	StandardsFor(ctx context.Context, hazardTypes []string) (StandardResult, error)
}

// CaseDocument is one retrieved passage of unstructured case text.
type CaseDocument struct {
	Text     string
	SourceID string
	Location string
}

// CaseSource is the retrieval collaborator over historical case text.
type CaseSource interface {
	Search(ctx context.Context, query, domain string, topK int) ([]CaseDocument, error)
}

// Extractor turns case text into structured equipment mentions with a
// per-mention confidence. Its internal model is a black box.
type Extractor interface {
	Extract(ctx context.Context, docs []CaseDocument) ([]model.CaseMention, error)
}

// GapError reports that an upstream source returned too little data to
// proceed safely.
type GapError struct {
	Source string
	Got    int
	Want   int
}

func (e *GapError) Error() string {
	return fmt.Sprintf("evidence gap: %s returned %d items, need at least %d", e.Source, e.Got, e.Want)
}
