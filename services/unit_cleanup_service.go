package services

import (
	"context"

	"boqunits/models"
	"boqunits/repository"

	"go.uber.org/zap"
)

// UnitCleanupService removes the legacy unit and unit_name fields from items
// that already reference a unit by id. Destructive; run after migration and,
// preferably, after normalization.
type UnitCleanupService struct {
	tx     repository.Transactor
	logger *zap.Logger
	// requireAbbreviation keeps legacy fields on items whose unit_abbreviation
	// is still empty, so they keep a readable fallback.
	requireAbbreviation bool
}

func NewUnitCleanupService(tx repository.Transactor, logger *zap.Logger, requireAbbreviation bool) *UnitCleanupService {
	return &UnitCleanupService{tx: tx, logger: logger, requireAbbreviation: requireAbbreviation}
}

func (s *UnitCleanupService) Run(ctx context.Context, opts BatchOptions) (*RunReport, error) {
	report, err := runItemBatch(ctx, s.tx, s.logger, "unit-cleanup", opts,
		func(_ context.Context, _ repository.Store, _ string, report *RunReport) (itemFunc, error) {
			return func(_ context.Context, item *models.BOQItem) (bool, error) {
				if !item.HasUnitID() || !item.HasLegacyFields() {
					return false, nil
				}
				if !item.HasUnitAbbreviation() {
					if s.requireAbbreviation {
						report.ItemsSkipped++
						return false, nil
					}
					report.ItemsWithoutAbbreviation++
				}
				item.Unit = nil
				item.UnitName = nil
				return true, nil
			}, nil
		})
	if err == nil && report.ItemsWithoutAbbreviation > 0 {
		s.logger.Warn("legacy unit fields removed from items with no cached abbreviation; run normalization",
			zap.Int("items", report.ItemsWithoutAbbreviation))
	}
	return report, err
}
