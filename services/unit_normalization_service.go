package services

import (
	"context"

	"boqunits/models"
	"boqunits/repository"

	"go.uber.org/zap"
)

// UnitNormalizationService fills in unit_abbreviation, and unit_id where it can
// be derived, from the company's existing units. It never creates units and
// never revisits an item whose abbreviation is already set, so it is safe to
// schedule repeatedly.
type UnitNormalizationService struct {
	tx       repository.Transactor
	resolver *UnitResolver
	logger   *zap.Logger
}

func NewUnitNormalizationService(tx repository.Transactor, resolver *UnitResolver, logger *zap.Logger) *UnitNormalizationService {
	return &UnitNormalizationService{tx: tx, resolver: resolver, logger: logger}
}

func (s *UnitNormalizationService) Run(ctx context.Context, opts BatchOptions) (*RunReport, error) {
	return runItemBatch(ctx, s.tx, s.logger, "unit-normalization", opts,
		func(ctx context.Context, store repository.Store, companyID string, report *RunReport) (itemFunc, error) {
			units, err := store.ListUnits(ctx, companyID)
			if err != nil {
				return nil, err
			}
			return func(_ context.Context, item *models.BOQItem) (bool, error) {
				if item.HasUnitAbbreviation() {
					return false, nil
				}
				changed := s.normalizeItem(item, units)
				if !changed && (item.HasUnitID() || item.LegacyToken() != "") {
					report.ItemsUnresolved++
				}
				return changed, nil
			}, nil
		})
}

// normalizeItem applies the first applicable rule: unit_id lookup, then
// unit_name by name, then legacy unit by name or abbreviation.
func (s *UnitNormalizationService) normalizeItem(item *models.BOQItem, units []models.Unit) bool {
	switch {
	case item.HasUnitID():
		unit, ok := s.resolver.FindByID(*item.UnitID, units)
		if !ok {
			return false
		}
		item.UnitAbbreviation = models.StringPtr(unit.DisplayAbbreviation())
		item.UnitName = models.StringPtr(unit.Name)
		return true

	case item.UnitName != nil && *item.UnitName != "":
		unit, ok := s.resolver.ResolveByName(*item.UnitName, units)
		if !ok {
			return false
		}
		item.UnitID = models.StringPtr(unit.ID)
		item.UnitAbbreviation = models.StringPtr(unit.DisplayAbbreviation())
		return true

	case item.Unit != nil && *item.Unit != "":
		unit, ok := s.resolver.Resolve(*item.Unit, units)
		if !ok {
			return false
		}
		item.UnitID = models.StringPtr(unit.ID)
		item.UnitAbbreviation = models.StringPtr(unit.DisplayAbbreviation())
		item.UnitName = models.StringPtr(unit.Name)
		return true
	}
	return false
}
