package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/repositories"
)

const (
	dashboardRecentOrders  = 5
	dashboardTopCategories = 5
	dashboardCategoryScan  = 50
)

// ReportServiceDeps bundles collaborators required to construct the report service.
type ReportServiceDeps struct {
	Users             repositories.UserRepository
	Products          repositories.ProductRepository
	Orders            repositories.OrderRepository
	Categories        repositories.CategoryRepository
	LowStockThreshold int
	Clock             func() time.Time
}

type reportService struct {
	users             repositories.UserRepository
	products          repositories.ProductRepository
	orders            repositories.OrderRepository
	categories        repositories.CategoryRepository
	lowStockThreshold int
	clock             func() time.Time
}

// NewReportService wires dependencies into a concrete ReportService implementation.
func NewReportService(deps ReportServiceDeps) (ReportService, error) {
	if deps.Users == nil || deps.Products == nil || deps.Orders == nil || deps.Categories == nil {
		return nil, errors.New("report service: all repositories are required")
	}

	threshold := deps.LowStockThreshold
	if threshold <= 0 {
		threshold = 10
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &reportService{
		users:             deps.Users,
		products:          deps.Products,
		orders:            deps.Orders,
		categories:        deps.Categories,
		lowStockThreshold: threshold,
		clock:             func() time.Time { return clock().UTC() },
	}, nil
}

// DashboardStats fans the independent aggregate queries out concurrently and
// assembles the admin dashboard snapshot. Any failing query fails the whole
// snapshot rather than returning partial numbers.
func (s *reportService) DashboardStats(ctx context.Context) (DashboardStats, error) {
	stats := DashboardStats{GeneratedAt: s.clock()}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		count, err := s.users.Count(gctx)
		if err != nil {
			return err
		}
		stats.TotalUsers = count
		return nil
	})
	g.Go(func() error {
		count, err := s.products.Count(gctx)
		if err != nil {
			return err
		}
		stats.TotalProducts = count
		return nil
	})
	g.Go(func() error {
		count, err := s.orders.Count(gctx)
		if err != nil {
			return err
		}
		stats.TotalOrders = count
		return nil
	})
	g.Go(func() error {
		revenue, err := s.orders.SumCompletedTotals(gctx)
		if err != nil {
			return err
		}
		stats.TotalRevenue = revenue
		return nil
	})
	g.Go(func() error {
		pending, err := s.orders.CountByStatus(gctx, domain.OrderStatusPending)
		if err != nil {
			return err
		}
		stats.PendingOrders = pending
		return nil
	})
	g.Go(func() error {
		low, err := s.products.CountLowStock(gctx, s.lowStockThreshold)
		if err != nil {
			return err
		}
		stats.LowStockCount = low
		return nil
	})
	g.Go(func() error {
		page, err := s.orders.List(gctx, repositories.OrderListFilter{
			Pagination: domain.Pagination{PageSize: dashboardRecentOrders},
		})
		if err != nil {
			return err
		}
		stats.RecentOrders = page.Items
		return nil
	})
	g.Go(func() error {
		top, err := s.topCategories(gctx)
		if err != nil {
			return err
		}
		stats.TopCategories = top
		return nil
	})

	if err := g.Wait(); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}

// topCategories ranks categories by product count. The catalog is expected to
// stay small enough that scanning one page of categories is sufficient.
func (s *reportService) topCategories(ctx context.Context) ([]CategoryCount, error) {
	page, err := s.categories.List(ctx, domain.Pagination{PageSize: dashboardCategoryScan})
	if err != nil {
		return nil, err
	}

	counts := make([]CategoryCount, 0, len(page.Items))
	for _, category := range page.Items {
		products, err := s.categories.CountProducts(ctx, category.ID)
		if err != nil {
			return nil, err
		}
		counts = append(counts, CategoryCount{Category: category, Products: products})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Products > counts[j].Products
	})
	if len(counts) > dashboardTopCategories {
		counts = counts[:dashboardTopCategories]
	}
	return counts, nil
}
