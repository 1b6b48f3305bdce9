package recommend

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"cropcheck/entities"
)

// Store is the persistence the engine needs, normally bound to the analysis transaction.
type Store interface {
	ListFertilizers(ctx context.Context) ([]entities.Fertilizer, error)
	FindRecommendation(ctx context.Context, roundID uint, code string) (*entities.Recommendation, error)
	CreateRecommendation(ctx context.Context, rec *entities.Recommendation) error
	UpdateRecommendation(ctx context.Context, rec *entities.Recommendation) error
}

type Engine struct {
	rules     []Rule
	fallbacks map[string]Fallback
	log       *zap.Logger
}

// NewEngine builds an engine. Nil rules or fallbacks select the defaults.
func NewEngine(rules []Rule, fallbacks map[string]Fallback, log *zap.Logger) *Engine {
	if rules == nil {
		rules = DefaultRules
	}
	if fallbacks == nil {
		fallbacks = DefaultFallbacks
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{rules: rules, fallbacks: fallbacks, log: log}
}

// Plan is the derived recommendation content for one nutrient code.
type Plan struct {
	Code         string
	FertilizerID *uint
	Text         string
	Rate         string
	Method       string
}

// Derive computes the recommendation content for code without touching the store.
func (e *Engine) Derive(code string, fertilizers []entities.Fertilizer) Plan {
	fb, ok := e.fallbacks[code]
	if !ok {
		fb = genericFallback
	}
	p := Plan{Code: code, Text: fb.Text, Rate: fb.Rate, Method: fb.Method}
	if f := MatchFertilizer(e.rules, code, fertilizers); f != nil {
		id := f.FertilizerID
		p.FertilizerID = &id
		if d := strings.TrimSpace(f.Description); d != "" {
			p.Text = d
		}
	}
	return p
}

// Upsert merges one recommendation per code into the round. Existing rows get
// fresh content but keep their operator status and applied date; codes not
// in codes are left alone. It returns the codes written.
func (e *Engine) Upsert(ctx context.Context, st Store, roundID uint, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	ferts, err := st.ListFertilizers(ctx)
	if err != nil {
		return nil, err
	}

	touched := make([]string, 0, len(codes))
	for _, code := range codes {
		p := e.Derive(code, ferts)

		cur, err := st.FindRecommendation(ctx, roundID, code)
		if err != nil {
			return nil, err
		}
		if cur != nil {
			cur.FertilizerID = p.FertilizerID
			cur.RecommendationText = p.Text
			cur.RatePerArea = p.Rate
			cur.ApplicationMethod = p.Method
			if cur.Status == "" {
				cur.Status = entities.RecSuggested
			}
			if err := st.UpdateRecommendation(ctx, cur); err != nil {
				return nil, err
			}
		} else {
			rec := &entities.Recommendation{
				InspectionID:       roundID,
				NutrientCode:       code,
				FertilizerID:       p.FertilizerID,
				RecommendationText: p.Text,
				RatePerArea:        p.Rate,
				ApplicationMethod:  p.Method,
				Status:             entities.RecSuggested,
			}
			if err := st.CreateRecommendation(ctx, rec); err != nil {
				return nil, err
			}
		}
		e.log.Debug("recommendation upserted",
			zap.Uint("inspection_id", roundID),
			zap.String("nutrient", code),
			zap.Bool("matched_fertilizer", p.FertilizerID != nil))
		touched = append(touched, code)
	}
	return touched, nil
}
