package service

import (
	"context"

	"github.com/xela07ax/orbit-auth/internal/domain"
)

// DashboardService отдает витринные метрики продаж (фиксированный набор демо-данных).
type DashboardService struct {
	data domain.DashboardData
}

func NewDashboardService() *DashboardService {
	return &DashboardService{data: domain.DashboardData{
		SalesVolume:  6900,
		NewCustomers: 240,
		Refunds:      5,
		GraphData: []domain.Sale{
			{Date: "Jul 1, 2019", Amount: 2300},
			{Date: "Jul 2, 2019", Amount: 1950},
			{Date: "Jul 3, 2019", Amount: 1700},
			{Date: "Jul 4, 2019", Amount: 1650},
			{Date: "Jul 5, 2019", Amount: 3100},
			{Date: "Jul 6, 2019", Amount: 2850},
			{Date: "Jul 7, 2019", Amount: 2400},
		},
	}}
}

func (s *DashboardService) Data(_ context.Context) (*domain.DashboardData, error) {
	d := s.data
	d.GraphData = append([]domain.Sale(nil), s.data.GraphData...)
	return &d, nil
}
