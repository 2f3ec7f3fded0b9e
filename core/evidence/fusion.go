package evidence

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/lcabon/resq/core/logger"
	"github.com/lcabon/resq/core/model"
)

// ErrNoEvidence is returned when neither source yields anything usable.
var ErrNoEvidence = errors.New("no evidence available for hazard")

// crossSourceBoost is applied when a structured standard and extracted
// case mentions agree on the same equipment.
const crossSourceBoost = 1.1

// Config tunes the fusion pass.
type Config struct {
	// Domain scopes the case retrieval, e.g. "emergency-response".
	Domain string `json:"domain"`
	// TopK bounds how many case passages are retrieved per query.
	TopK int `json:"top_k"`
	// MinStandards is the minimum number of structured items required
	// before a recommendation is produced at all.
	MinStandards int `json:"min_standards"`
	// ExtractionConfidence is the floor under which extraction-only
	// recommendations are demoted to low confidence.
	ExtractionConfidence float64 `json:"extraction_confidence"`
}

// SetDefaults fills zero values with the standard tuning.
func (c *Config) SetDefaults() {
	if c.Domain == "" {
		c.Domain = "emergency-response"
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.MinStandards <= 0 {
		c.MinStandards = 3
	}
	if c.ExtractionConfidence <= 0 {
		c.ExtractionConfidence = 0.9
	}
}

// Fuser merges structured standards with quantities extracted from
// historical case text into per-equipment recommendations.
type Fuser struct {
	standards StandardSource
	cases     CaseSource
	extractor Extractor
	cfg       Config
	log       logger.Logger
}

func NewFuser(standards StandardSource, cases CaseSource, extractor Extractor, cfg Config, log logger.Logger) *Fuser {
	cfg.SetDefaults()
	return &Fuser{
		standards: standards,
		cases:     cases,
		extractor: extractor,
		cfg:       cfg,
		log:       log,
	}
}

// Recommend queries both sources concurrently and fuses their answers.
// Source failures are returned, never silently dropped.
func (f *Fuser) Recommend(ctx context.Context, hazardTypes []string) ([]model.EvidenceRecommendation, error) {
	if len(hazardTypes) == 0 {
		return nil, fmt.Errorf("at least one hazard type is required")
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		std     StandardResult
		docs    []CaseDocument
		errList []error
	)

	query := caseQuery(hazardTypes)

	wg.Add(2)
	go func() {
		defer wg.Done()
		res, err := f.standards.StandardsFor(ctx, hazardTypes)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errList = append(errList, fmt.Errorf("standards lookup: %w", err))
			return
		}
		std = res
	}()
	go func() {
		defer wg.Done()
		found, err := f.cases.Search(ctx, query, f.cfg.Domain, f.cfg.TopK)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errList = append(errList, fmt.Errorf("case search: %w", err))
			return
		}
		docs = found
	}()
	wg.Wait()

	if len(errList) > 0 {
		return nil, errors.Join(errList...)
	}
	if len(std.Items) < f.cfg.MinStandards {
		return nil, &GapError{Source: "standards", Got: len(std.Items), Want: f.cfg.MinStandards}
	}

	var mentions []model.CaseMention
	if len(docs) > 0 {
		var err error
		mentions, err = f.extractor.Extract(ctx, docs)
		if err != nil {
			return nil, fmt.Errorf("case extraction: %w", err)
		}
	}

	recs := f.fuse(std, mentions)
	if len(recs) == 0 {
		return nil, ErrNoEvidence
	}

	f.log.Infof("fused %d recommendations from %d standards and %d case mentions",
		len(recs), len(std.Items), len(mentions))
	return recs, nil
}

// caseStats aggregates mentions for one piece of equipment.
type caseStats struct {
	quantities []float64
	minConf    float64
	sourceIDs  []string
}

func (f *Fuser) fuse(std StandardResult, mentions []model.CaseMention) []model.EvidenceRecommendation {
	byEquip := make(map[string]*caseStats)
	for _, m := range mentions {
		key := model.NormalizeCapability(m.Equipment)
		s, ok := byEquip[key]
		if !ok {
			s = &caseStats{minConf: math.Inf(1)}
			byEquip[key] = s
		}
		s.quantities = append(s.quantities, m.Quantity)
		if m.Confidence < s.minConf {
			s.minConf = m.Confidence
		}
		if m.SourceID != "" && !contains(s.sourceIDs, m.SourceID) {
			s.sourceIDs = append(s.sourceIDs, m.SourceID)
		}
	}

	seen := make(map[string]bool)
	var recs []model.EvidenceRecommendation

	for _, item := range std.Items {
		key := model.NormalizeCapability(item.Equipment)
		if seen[key] {
			continue
		}
		seen[key] = true

		stdQty := item.Quantity
		rec := model.EvidenceRecommendation{
			Equipment:     item.Equipment,
			StandardQty:   &stdQty,
			Urgency:       item.Urgency,
			StandardQuery: std.Query,
		}
		if s, ok := byEquip[key]; ok {
			mean := stat.Mean(s.quantities, nil)
			rec.Quantity = roundQty(math.Max(item.Quantity, mean) * crossSourceBoost)
			rec.Confidence = model.ConfidenceHigh
			rec.CaseStats = statsOf(s, mean)
			rec.SourceIDs = s.sourceIDs
		} else {
			rec.Quantity = item.Quantity
			rec.Confidence = model.ConfidenceMedium
		}
		recs = append(recs, rec)
	}

	var extraKeys []string
	for key := range byEquip {
		if !seen[key] {
			extraKeys = append(extraKeys, key)
		}
	}
	sort.Strings(extraKeys)
	for _, key := range extraKeys {
		s := byEquip[key]
		mean := stat.Mean(s.quantities, nil)
		conf := model.ConfidenceMedium
		if s.minConf < f.cfg.ExtractionConfidence {
			conf = model.ConfidenceLow
		}
		recs = append(recs, model.EvidenceRecommendation{
			Equipment:  key,
			Quantity:   roundQty(mean),
			Confidence: conf,
			CaseStats:  statsOf(s, mean),
			SourceIDs:  s.sourceIDs,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence.Rank() > recs[j].Confidence.Rank()
		}
		return recs[i].Equipment < recs[j].Equipment
	})
	return recs
}

func statsOf(s *caseStats, mean float64) *model.CaseStats {
	var sd float64
	if len(s.quantities) > 1 {
		sd = stat.StdDev(s.quantities, nil)
	}
	return &model.CaseStats{
		MeanQuantity:   mean,
		StdDevQuantity: sd,
		Mentions:       len(s.quantities),
		MinConfidence:  s.minConf,
		SourceIDs:      s.sourceIDs,
	}
}

// roundQty rounds fused quantities to one decimal. Equipment counts do
// not need more precision and the noise confuses operators.
func roundQty(v float64) float64 {
	return math.Round(v*10) / 10
}

func caseQuery(hazardTypes []string) string {
	return fmt.Sprintf("equipment usage for %s response", strings.Join(hazardTypes, " and "))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
