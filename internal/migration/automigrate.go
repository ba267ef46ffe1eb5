package migration

import (
	customerdomain "github.com/flowpulse/flowpulse/internal/customer/domain"
	dailymetricsdomain "github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	deliverydomain "github.com/flowpulse/flowpulse/internal/delivery/domain"
	responsedomain "github.com/flowpulse/flowpulse/internal/response/domain"
	surveydomain "github.com/flowpulse/flowpulse/internal/survey/domain"
	"gorm.io/gorm"
)

// AutoMigrate creates the schema from the models for dialects the embedded
// SQL does not target. Row-level security is not installed.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&customerdomain.Customer{},
		&surveydomain.Survey{},
		&deliverydomain.Delivery{},
		&responsedomain.Response{},
		&dailymetricsdomain.DailyOrgMetrics{},
	)
}
