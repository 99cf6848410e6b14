package services

import (
	"context"

	"boqunits/models"
	"boqunits/repository"

	"go.uber.org/zap"
)

// UnitMigrationService converts legacy free-text units on BOQ items into unit_id references,
// creating units the company does not have yet. Items that already carry a unit_id are left alone.
type UnitMigrationService struct {
	tx       repository.Transactor
	resolver *UnitResolver
	logger   *zap.Logger
}

func NewUnitMigrationService(tx repository.Transactor, resolver *UnitResolver, logger *zap.Logger) *UnitMigrationService {
	return &UnitMigrationService{tx: tx, resolver: resolver, logger: logger}
}

func (s *UnitMigrationService) Run(ctx context.Context, opts BatchOptions) (*RunReport, error) {
	return runItemBatch(ctx, s.tx, s.logger, "unit-migration", opts,
		func(ctx context.Context, store repository.Store, companyID string, report *RunReport) (itemFunc, error) {
			units, err := store.ListUnits(ctx, companyID)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context, item *models.BOQItem) (bool, error) {
				if item.HasUnitID() {
					return false, nil
				}
				token := item.LegacyToken()
				if token == "" {
					return false, nil
				}
				unit, created, err := s.resolver.ResolveOrCreate(ctx, store, token, companyID, &units)
				if err != nil {
					return false, err
				}
				if created {
					report.UnitsCreated++
					s.logger.Info("unit created",
						zap.String("company_id", companyID),
						zap.String("unit_id", unit.ID),
						zap.String("name", unit.Name),
						zap.String("abbreviation", models.StringValue(unit.Abbreviation)),
					)
				}
				item.UnitID = models.StringPtr(unit.ID)
				item.UnitName = models.StringPtr(unit.Name)
				if unit.Abbreviation != nil && *unit.Abbreviation != "" {
					item.UnitAbbreviation = models.StringPtr(*unit.Abbreviation)
				} else {
					item.ClearUnitAbbreviation()
				}
				return true, nil
			}, nil
		})
}
