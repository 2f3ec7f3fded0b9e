package model

// ConfidenceTier labels how strongly the two evidence sources agree on a
// recommendation.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// Rank orders tiers for sorting, higher is stronger.
func (c ConfidenceTier) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// StandardItem is one equipment standard returned by the structured
// knowledge source.
type StandardItem struct {
	Equipment string  `json:"equipment"`
	Quantity  float64 `json:"quantity"`
	Urgency   int     `json:"urgency,omitempty"`
}

// CaseMention is one equipment quantity extracted from unstructured case
// text, with the extractor's confidence and the document it came from.
type CaseMention struct {
	Equipment  string  `json:"equipment"`
	Quantity   float64 `json:"quantity"`
	Confidence float64 `json:"confidence"`
	SourceID   string  `json:"source_id"`
}

// CaseStats aggregates the mentions of one equipment item across case
// documents.
type CaseStats struct {
	MeanQuantity   float64  `json:"mean_quantity"`
	StdDevQuantity float64  `json:"stddev_quantity,omitempty"`
	Mentions       int      `json:"mentions"`
	MinConfidence  float64  `json:"min_confidence"`
	SourceIDs      []string `json:"source_ids"`
}

// EvidenceRecommendation is one fused, auditable equipment recommendation.
type EvidenceRecommendation struct {
	Equipment   string         `json:"equipment"`
	Quantity    float64        `json:"quantity"`
	Confidence  ConfidenceTier `json:"confidence"`
	StandardQty *float64       `json:"standard_qty,omitempty"`
	Urgency     int            `json:"urgency,omitempty"`
	CaseStats   *CaseStats     `json:"case_stats,omitempty"`

	// Provenance: the structured query that produced the standard, so it can
	// be re-run, and the documents behind every extracted mention.
	StandardQuery string   `json:"standard_query,omitempty"`
	SourceIDs     []string `json:"source_ids,omitempty"`
}
