package application

import (
	"context"
	"sort"
	"strconv"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultTrendDays  = 30
	maxTrendDays      = 365
	defaultTopLimit   = 5
	maxTopLimit       = 50
	trendDateLayout   = "2006-01-02"
	averageOrderScale = 2
)

// DashboardService serves synced data to the dashboard. It never calls the store.
type DashboardService struct {
	connections ports.ConnectionRepository
	orders      ports.OrderRepository
	products    ports.ProductRepository
	now         func() time.Time
	logger      zerolog.Logger
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(
	connections ports.ConnectionRepository,
	orders ports.OrderRepository,
	products ports.ProductRepository,
	logger zerolog.Logger,
) *DashboardService {
	return &DashboardService{
		connections: connections,
		orders:      orders,
		products:    products,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
}

func (s *DashboardService) connection(ctx context.Context, ownerID string) (*domain.Connection, error) {
	conn, err := s.connections.GetActiveConnection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, domain.ErrNoConnection
	}
	return conn, nil
}

// ListOrders returns the owner's synced orders
func (s *DashboardService) ListOrders(ctx context.Context, ownerID string, filter domain.OrderFilter) ([]*domain.Order, error) {
	conn, err := s.connection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.orders.ListOrders(ctx, conn.ID, filter)
}

// ListProducts returns the owner's synced products
func (s *DashboardService) ListProducts(ctx context.Context, ownerID string, filter domain.ProductFilter) ([]*domain.Product, error) {
	conn, err := s.connection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.products.ListProducts(ctx, conn.ID, filter)
}

// Summary returns revenue, counts and average order value
func (s *DashboardService) Summary(ctx context.Context, ownerID string) (*domain.DashboardSummary, error) {
	conn, err := s.connection(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	totals, err := s.orders.Totals(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	productCount, err := s.products.CountProducts(ctx, conn.ID)
	if err != nil {
		return nil, err
	}

	summary := &domain.DashboardSummary{
		Revenue:           totals.Revenue,
		OrderCount:        totals.Count,
		ProductCount:      productCount,
		AverageOrderValue: decimal.Zero,
		Currency:          domain.DefaultCurrency,
		LastSyncAt:        conn.LastSyncAt,
	}
	if totals.Count > 0 {
		summary.AverageOrderValue = totals.Revenue.Div(decimal.NewFromInt(totals.Count)).Round(averageOrderScale)

		latest, err := s.orders.ListOrders(ctx, conn.ID, domain.OrderFilter{Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(latest) > 0 && latest[0].Currency != "" {
			summary.Currency = latest[0].Currency
		}
	}
	return summary, nil
}

// SalesTrend returns one point per UTC day for the last days days, oldest first
func (s *DashboardService) SalesTrend(ctx context.Context, ownerID string, days int) ([]domain.DailySales, error) {
	if days <= 0 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}

	conn, err := s.connection(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(days - 1))

	trend := make([]domain.DailySales, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(trendDateLayout)
		trend[i] = domain.DailySales{Date: date, Revenue: decimal.Zero}
		index[date] = i
	}

	err = s.orders.EachOrder(ctx, conn.ID, &start, func(o *domain.Order) error {
		if o.ExternalCreatedAt == nil {
			return nil
		}
		i, ok := index[o.ExternalCreatedAt.UTC().Format(trendDateLayout)]
		if !ok {
			return nil
		}
		trend[i].Revenue = trend[i].Revenue.Add(o.TotalPrice)
		trend[i].Orders++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trend, nil
}

// StatusDistribution returns order counts per fulfillment status, largest first
func (s *DashboardService) StatusDistribution(ctx context.Context, ownerID string) ([]domain.StatusCount, error) {
	conn, err := s.connection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	counts, err := s.orders.CountByFulfillmentStatus(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = []domain.StatusCount{}
	}
	return counts, nil
}

// TopProducts aggregates line items by product, ranked by quantity then revenue
func (s *DashboardService) TopProducts(ctx context.Context, ownerID string, limit int) ([]domain.TopProduct, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	conn, err := s.connection(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[string]*domain.TopProduct)
	err = s.orders.EachOrder(ctx, conn.ID, nil, func(o *domain.Order) error {
		for _, line := range o.Lines() {
			key := line.Title
			if line.ProductID != 0 {
				key = strconv.FormatUint(line.ProductID, 10)
			}
			if key == "" {
				continue
			}
			top, ok := byProduct[key]
			if !ok {
				top = &domain.TopProduct{Title: line.Title, Revenue: decimal.Zero}
				if line.ProductID != 0 {
					top.ProductID = key
				}
				byProduct[key] = top
			}
			top.Quantity += line.Quantity
			top.Revenue = top.Revenue.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ranked := make([]domain.TopProduct, 0, len(byProduct))
	for _, top := range byProduct {
		ranked = append(ranked, *top)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Quantity != ranked[j].Quantity {
			return ranked[i].Quantity > ranked[j].Quantity
		}
		if c := ranked[i].Revenue.Cmp(ranked[j].Revenue); c != 0 {
			return c > 0
		}
		if ranked[i].Title != ranked[j].Title {
			return ranked[i].Title < ranked[j].Title
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
