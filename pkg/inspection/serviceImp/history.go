package serviceImp

import (
	"context"
	"sort"
	"time"

	"cropcheck/pkg/apperr"
	"cropcheck/pkg/inspection/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	topNutrients    = 5
)

func (s *inspectionSvc) ListRounds(ctx context.Context, uid string, f types.RoundFilter) (types.RoundPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PageSize <= 0:
		f.PageSize = defaultPageSize
	case f.PageSize > maxPageSize:
		f.PageSize = maxPageSize
	}
	if f.Month != 0 && (f.Month < 1 || f.Month > 12) {
		return types.RoundPage{}, apperr.New(apperr.KindBadRequest, "month must be 1-12")
	}
	if f.Year > 0 {
		loc := s.opts.Location
		if f.Month > 0 {
			f.From = time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, loc)
			f.To = f.From.AddDate(0, 1, 0)
		} else {
			f.From = time.Date(f.Year, time.January, 1, 0, 0, 0, 0, loc)
			f.To = f.From.AddDate(1, 0, 0)
		}
	}

	items, total, err := s.r.ListRounds(ctx, uid, f)
	if err != nil {
		return types.RoundPage{}, apperr.Store(err)
	}
	if items == nil {
		items = []types.RoundSummary{}
	}
	return types.RoundPage{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// History buckets the caller's rounds by month or year of inspection, in the
// configured timezone, oldest bucket first.
func (s *inspectionSvc) History(ctx context.Context, uid string, f types.HistoryFilter) ([]types.HistoryBucket, error) {
	layout := "2006-01"
	switch f.Group {
	case "", "month":
		f.Group = "month"
	case "year":
		layout = "2006"
	default:
		return nil, apperr.New(apperr.KindBadRequest, "group must be month or year")
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, apperr.New(apperr.KindBadRequest, "from must be before to")
	}

	rows, err := s.r.ListHistoryRows(ctx, uid, f)
	if err != nil {
		return nil, apperr.Store(err)
	}

	type acc struct {
		rounds   map[uint]struct{}
		findings int
		codes    map[string]int
	}
	var order []string
	byPeriod := map[string]*acc{}
	for _, row := range rows {
		period := row.InspectedAt.In(s.opts.Location).Format(layout)
		a, ok := byPeriod[period]
		if !ok {
			a = &acc{rounds: map[uint]struct{}{}, codes: map[string]int{}}
			byPeriod[period] = a
			order = append(order, period)
		}
		a.rounds[row.InspectionID] = struct{}{}
		if row.NutrientCode != nil {
			a.findings++
			a.codes[*row.NutrientCode]++
		}
	}
	sort.Strings(order)

	out := make([]types.HistoryBucket, 0, len(order))
	for _, p := range order {
		a := byPeriod[p]
		top := make([]types.NutrientCount, 0, len(a.codes))
		for code, n := range a.codes {
			top = append(top, types.NutrientCount{Code: code, Count: n})
		}
		sort.Slice(top, func(i, j int) bool {
			if top[i].Count != top[j].Count {
				return top[i].Count > top[j].Count
			}
			return top[i].Code < top[j].Code
		})
		if len(top) > topNutrients {
			top = top[:topNutrients]
		}
		out = append(out, types.HistoryBucket{Period: p, Rounds: len(a.rounds), Findings: a.findings, TopNutrients: top})
	}
	return out, nil
}
