package market

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
)

// PageSize is the fixed size of a stock listing page.
const PageSize = 20

// upsertBatch bounds the rows sent per upsert call.
const upsertBatch = 500

// Source is the provider side of the cache.
type Source interface {
	StockBasic(ctx context.Context) ([]models.StockBasic, error)
	Daily(ctx context.Context, tsCode string) ([]models.DailyBar, error)
}

// Stocks serves the stock listing from the backend's stock_basic collection,
// filling it from the provider when it is empty.
type Stocks struct {
	gw     gateway.Data
	src    Source
	logger *slog.Logger

	// fill serializes provider fetches.
	fill sync.Mutex
}

// NewStocks returns a cache over gw fed by src.
func NewStocks(gw gateway.Data, src Source, logger *slog.Logger) *Stocks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stocks{gw: gw, src: src, logger: logger.With(slog.String("component", "stocks"))}
}

// Page returns listing page n (1-based) ordered by instrument code, with the
// exact number of cached rows as Total. The cache is filled first if it is
// empty. Failures are logged and reported in the page's Error field.
func (s *Stocks) Page(ctx context.Context, n int) models.StockPage {
	if n < 1 {
		n = 1
	}
	page := models.StockPage{Items: []models.StockBasic{}, Page: n, PageSize: PageSize}
	offset := (n - 1) * PageSize

	total, uncached, err := s.ensure(ctx)
	if err != nil {
		s.logger.Error("load stock listing", slog.String("error", err.Error()))
		page.Error = apperr.Message(err, "failed to load stock listing")
		return page
	}
	if uncached != nil {
		// The provider answered but the backend refused the rows.
		page.Total = len(uncached)
		page.Items = window(uncached, offset, PageSize)
		return page
	}
	if total == 0 {
		return page
	}

	items, err := gateway.List[models.StockBasic](ctx, s.gw, gateway.StockBasic, gateway.Query{
		OrderBy: "ts_code",
		Offset:  offset,
		Limit:   PageSize,
	})
	if err != nil {
		s.logger.Error("read stock page", slog.Int("page", n), slog.String("error", err.Error()))
		page.Error = apperr.Message(err, "failed to load stock listing")
		return page
	}
	page.Items = items
	page.Total = total
	return page
}

// Refresh refetches the listing from the provider and upserts it, returning
// the number of cached rows.
func (s *Stocks) Refresh(ctx context.Context) (int, error) {
	s.fill.Lock()
	defer s.fill.Unlock()
	items, err := s.src.StockBasic(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.store(ctx, items); err != nil {
		return 0, err
	}
	return s.gw.Count(ctx, gateway.StockBasic)
}

// Daily returns daily bars for code. Failures are logged and yield an empty slice.
func (s *Stocks) Daily(ctx context.Context, code string) []models.DailyBar {
	bars, err := s.src.Daily(ctx, strings.TrimSpace(code))
	if err != nil {
		s.logger.Error("fetch daily bars", slog.String("ts_code", code), slog.String("error", err.Error()))
		return []models.DailyBar{}
	}
	return bars
}

// ensure returns the exact cached row count, filling the cache when it is
// empty. If the fetched rows cannot be stored they are returned as uncached,
// sorted by code.
func (s *Stocks) ensure(ctx context.Context) (total int, uncached []models.StockBasic, err error) {
	if total, err = s.gw.Count(ctx, gateway.StockBasic); err != nil || total > 0 {
		return total, nil, err
	}

	s.fill.Lock()
	defer s.fill.Unlock()
	if total, err = s.gw.Count(ctx, gateway.StockBasic); err != nil || total > 0 {
		return total, nil, err
	}

	items, err := s.src.StockBasic(ctx)
	if err != nil {
		return 0, nil, err
	}
	if err := s.store(ctx, items); err != nil {
		s.logger.Error("cache stock listing", slog.Int("rows", len(items)), slog.String("error", err.Error()))
		slices.SortFunc(items, func(a, b models.StockBasic) int { return strings.Compare(a.TSCode, b.TSCode) })
		return len(items), items, nil
	}
	total, err = s.gw.Count(ctx, gateway.StockBasic)
	return total, nil, err
}

func (s *Stocks) store(ctx context.Context, items []models.StockBasic) error {
	for start := 0; start < len(items); start += upsertBatch {
		end := min(start+upsertBatch, len(items))
		if err := gateway.Upsert(ctx, s.gw, gateway.StockBasic, items[start:end], "ts_code"); err != nil {
			return err
		}
	}
	s.logger.Info("stock listing cached", slog.Int("rows", len(items)))
	return nil
}

func window(items []models.StockBasic, offset, limit int) []models.StockBasic {
	if offset >= len(items) {
		return []models.StockBasic{}
	}
	end := min(offset+limit, len(items))
	return slices.Clone(items[offset:end])
}
