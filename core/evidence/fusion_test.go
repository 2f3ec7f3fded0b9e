package evidence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcabon/resq/core/model"
	infralogger "github.com/lcabon/resq/infra/logger"
)

type fakeStandards struct {
	res StandardResult
	err error
}

func (f *fakeStandards) StandardsFor(_ context.Context, _ []string) (StandardResult, error) {
	return f.res, f.err
}

type fakeCases struct {
	docs []CaseDocument
	err  error

	gotQuery  string
	gotDomain string
	gotTopK   int
}

func (f *fakeCases) Search(_ context.Context, query, domain string, topK int) ([]CaseDocument, error) {
	f.gotQuery = query
	f.gotDomain = domain
	f.gotTopK = topK
	return f.docs, f.err
}

type fakeExtractor struct {
	mentions []model.CaseMention
	err      error
}

func (f *fakeExtractor) Extract(_ context.Context, _ []CaseDocument) ([]model.CaseMention, error) {
	return f.mentions, f.err
}

func standardsFixture() StandardResult {
	return StandardResult{
		Query: "MATCH (h:Hazard {type: 'flood'})-[:REQUIRES]->(e:Equipment)",
		Items: []model.StandardItem{
			{Equipment: "life-vest", Quantity: 15, Urgency: 2},
			{Equipment: "inflatable-boat", Quantity: 4, Urgency: 1},
			{Equipment: "water-pump", Quantity: 6},
		},
	}
}

func newTestFuser(std StandardSource, cases CaseSource, ex Extractor, cfg Config) *Fuser {
	return NewFuser(std, cases, ex, cfg, infralogger.NopLogger{})
}

func TestRecommendBothSourcesAgree(t *testing.T) {
	cases := &fakeCases{docs: []CaseDocument{
		{Text: "deployed 18 life vests", SourceID: "case-7"},
		{Text: "used 20 life vests downstream", SourceID: "case-9"},
	}}
	ex := &fakeExtractor{mentions: []model.CaseMention{
		{Equipment: "life-vest", Quantity: 18, Confidence: 0.95, SourceID: "case-7"},
		{Equipment: "life-vest", Quantity: 20, Confidence: 0.92, SourceID: "case-9"},
	}}
	f := newTestFuser(&fakeStandards{res: standardsFixture()}, cases, ex, Config{})

	recs, err := f.Recommend(context.Background(), []string{"flood"})
	require.NoError(t, err)

	vest := findRec(t, recs, "life-vest")
	// mean(18, 20) = 19 beats the standard 15, then the agreement boost.
	assert.InDelta(t, 20.9, vest.Quantity, 1e-9)
	assert.Equal(t, model.ConfidenceHigh, vest.Confidence)
	require.NotNil(t, vest.StandardQty)
	assert.Equal(t, 15.0, *vest.StandardQty)
	require.NotNil(t, vest.CaseStats)
	assert.Equal(t, 2, vest.CaseStats.Mentions)
	assert.InDelta(t, 19.0, vest.CaseStats.MeanQuantity, 1e-9)
	assert.ElementsMatch(t, []string{"case-7", "case-9"}, vest.SourceIDs)
	assert.Contains(t, vest.StandardQuery, "flood")
}

func TestRecommendStandardOnlyIsMedium(t *testing.T) {
	f := newTestFuser(&fakeStandards{res: standardsFixture()}, &fakeCases{}, &fakeExtractor{}, Config{})

	recs, err := f.Recommend(context.Background(), []string{"flood"})
	require.NoError(t, err)

	pump := findRec(t, recs, "water-pump")
	assert.Equal(t, 6.0, pump.Quantity)
	assert.Equal(t, model.ConfidenceMedium, pump.Confidence)
	assert.Nil(t, pump.CaseStats)
}

func TestRecommendExtractedOnlyConfidenceDependsOnExtraction(t *testing.T) {
	docs := []CaseDocument{{Text: "x", SourceID: "case-1"}}

	tests := []struct {
		name     string
		mentions []model.CaseMention
		want     model.ConfidenceTier
	}{
		{
			name: "confident extraction is medium",
			mentions: []model.CaseMention{
				{Equipment: "sandbag", Quantity: 200, Confidence: 0.95, SourceID: "case-1"},
			},
			want: model.ConfidenceMedium,
		},
		{
			name: "shaky extraction is low",
			mentions: []model.CaseMention{
				{Equipment: "sandbag", Quantity: 200, Confidence: 0.6, SourceID: "case-1"},
			},
			want: model.ConfidenceLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFuser(&fakeStandards{res: standardsFixture()},
				&fakeCases{docs: docs}, &fakeExtractor{mentions: tt.mentions}, Config{})

			recs, err := f.Recommend(context.Background(), []string{"flood"})
			require.NoError(t, err)

			bag := findRec(t, recs, "sandbag")
			assert.Equal(t, tt.want, bag.Confidence)
			assert.Equal(t, 200.0, bag.Quantity)
			assert.Nil(t, bag.StandardQty)
		})
	}
}

func TestRecommendTooFewStandardsIsGap(t *testing.T) {
	thin := StandardResult{Items: []model.StandardItem{{Equipment: "life-vest", Quantity: 15}}}
	f := newTestFuser(&fakeStandards{res: thin}, &fakeCases{}, &fakeExtractor{}, Config{})

	_, err := f.Recommend(context.Background(), []string{"flood"})
	var gap *GapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "standards", gap.Source)
	assert.Equal(t, 1, gap.Got)
	assert.Equal(t, 3, gap.Want)
}

func TestRecommendSourceFailuresSurface(t *testing.T) {
	boom := errors.New("graph down")
	f := newTestFuser(&fakeStandards{err: boom},
		&fakeCases{err: errors.New("index down")}, &fakeExtractor{}, Config{})

	_, err := f.Recommend(context.Background(), []string{"flood"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "index down")
}

func TestRecommendExtractionFailureSurfaces(t *testing.T) {
	f := newTestFuser(&fakeStandards{res: standardsFixture()},
		&fakeCases{docs: []CaseDocument{{Text: "x"}}},
		&fakeExtractor{err: errors.New("ner timeout")}, Config{})

	_, err := f.Recommend(context.Background(), []string{"flood"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case extraction")
}

func TestRecommendSearchScopedByConfig(t *testing.T) {
	cases := &fakeCases{}
	f := newTestFuser(&fakeStandards{res: standardsFixture()}, cases, &fakeExtractor{},
		Config{Domain: "disaster-ops", TopK: 8})

	_, err := f.Recommend(context.Background(), []string{"flood", "landslide"})
	require.NoError(t, err)
	assert.Equal(t, "disaster-ops", cases.gotDomain)
	assert.Equal(t, 8, cases.gotTopK)
	assert.Contains(t, cases.gotQuery, "flood and landslide")
}

func TestRecommendOrderedByConfidenceThenName(t *testing.T) {
	docs := []CaseDocument{{Text: "x", SourceID: "case-1"}}
	ex := &fakeExtractor{mentions: []model.CaseMention{
		{Equipment: "life-vest", Quantity: 18, Confidence: 0.95, SourceID: "case-1"},
		{Equipment: "rope", Quantity: 10, Confidence: 0.5, SourceID: "case-1"},
	}}
	f := newTestFuser(&fakeStandards{res: standardsFixture()}, &fakeCases{docs: docs}, ex, Config{})

	recs, err := f.Recommend(context.Background(), []string{"flood"})
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.Equal(t, model.ConfidenceHigh, recs[0].Confidence)
	assert.Equal(t, "life-vest", recs[0].Equipment)
	assert.Equal(t, "inflatable-boat", recs[1].Equipment)
	assert.Equal(t, "water-pump", recs[2].Equipment)
	assert.Equal(t, model.ConfidenceLow, recs[3].Confidence)
	assert.Equal(t, "rope", recs[3].Equipment)
}

func TestRecommendNoHazardTypes(t *testing.T) {
	f := newTestFuser(&fakeStandards{}, &fakeCases{}, &fakeExtractor{}, Config{})
	_, err := f.Recommend(context.Background(), nil)
	require.Error(t, err)
}

func findRec(t *testing.T, recs []model.EvidenceRecommendation, equipment string) model.EvidenceRecommendation {
	t.Helper()
	for _, r := range recs {
		if r.Equipment == equipment {
			return r
		}
	}
	t.Fatalf("no recommendation for %q", equipment)
	return model.EvidenceRecommendation{}
}
