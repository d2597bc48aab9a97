package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/filter"
	"fintrack/internal/stats"
	"fintrack/internal/timeline"
)

// ViewService builds the read models behind the timeline and statistics
// screens from the owner's filtered transactions.
type ViewService struct {
	tx     *TransactionService
	engine *filter.Engine
}

// NewViewService reads through tx and filters with engine.
func NewViewService(tx *TransactionService, engine *filter.Engine) *ViewService {
	if engine == nil {
		engine = filter.NewEngine(nil)
	}
	return &ViewService{tx: tx, engine: engine}
}

// Transactions returns the owner's transactions that pass st.
func (v *ViewService) Transactions(ctx context.Context, ownerID string, st filter.State) ([]core.Transaction, error) {
	txs, err := v.tx.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return v.engine.Apply(txs, st), nil
}

type TimelineView struct {
	Days []timeline.Day `json:"days"`
	// TargetIndex is the day to scroll to for st.TargetDate, -1 if none.
	TargetIndex int `json:"target_index"`
	Count       int `json:"count"`
}

// Timeline groups the filtered transactions by day and locates the
// target date, if any.
func (v *ViewService) Timeline(ctx context.Context, ownerID string, st filter.State) (TimelineView, error) {
	txs, err := v.Transactions(ctx, ownerID, st)
	if err != nil {
		return TimelineView{}, err
	}
	days, err := timeline.GroupByDay(txs)
	if err != nil {
		return TimelineView{}, fmt.Errorf("group by day: %w", err)
	}
	view := TimelineView{Days: days, TargetIndex: -1, Count: len(txs)}
	if st.TargetDate != "" {
		view.TargetIndex = timeline.Locate(days, st.TargetDate)
	}
	return view, nil
}

type StatsView struct {
	Months     []stats.MonthRow            `json:"months"`
	Labels     map[string]stats.LabelTotal `json:"labels"`
	Cumulative []stats.CumulativePoint     `json:"cumulative"`
	Categories []stats.CategoryTotal       `json:"categories"`
	Count      int                         `json:"count"`
}

// Statistics aggregates the transactions that pass st.
func (v *ViewService) Statistics(ctx context.Context, ownerID string, st filter.State) (StatsView, error) {
	txs, err := v.Transactions(ctx, ownerID, st)
	if err != nil {
		return StatsView{}, err
	}
	return BuildStats(txs)
}

// BuildStats computes every aggregate over txs.
func BuildStats(txs []core.Transaction) (StatsView, error) {
	monthly, err := stats.MonthlyTotals(txs)
	if err != nil {
		return StatsView{}, fmt.Errorf("monthly totals: %w", err)
	}
	months, err := stats.SortedMonths(monthly)
	if err != nil {
		return StatsView{}, err
	}
	cumulative, err := stats.CumulativeSeries(monthly)
	if err != nil {
		return StatsView{}, err
	}
	return StatsView{
		Months:     months,
		Labels:     stats.LabelTotals(txs),
		Cumulative: cumulative,
		Categories: stats.CategoryTotals(txs),
		Count:      len(txs),
	}, nil
}

// Taxonomy is the filter sidebar content.
type Taxonomy struct {
	Categories []string `json:"categories"`
	Labels     []string `json:"labels"`
	Count      int      `json:"count"`
}

// Taxonomy loads categories, labels and the transaction count concurrently.
func (v *ViewService) Taxonomy(ctx context.Context, ownerID string) (Taxonomy, error) {
	var out Taxonomy
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cats, err := v.tx.Categories(gctx, ownerID)
		out.Categories = cats
		return err
	})
	g.Go(func() error {
		labels, err := v.tx.Labels(gctx, ownerID)
		out.Labels = labels
		return err
	})
	g.Go(func() error {
		txs, err := v.tx.List(gctx, ownerID)
		out.Count = len(txs)
		return err
	})
	if err := g.Wait(); err != nil {
		return Taxonomy{}, fmt.Errorf("load taxonomy: %w", err)
	}
	return out, nil
}
