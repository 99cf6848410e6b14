package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"boqunits/config"
	"boqunits/models"
	"boqunits/repository"

	"github.com/google/uuid"
)

// ErrUnitNotFound is returned when a token matches no unit of the company.
var ErrUnitNotFound = errors.New("unit not found")

// MigrationCreatedBy marks units synthesized by the migration job.
const MigrationCreatedBy = "unit-migration"

// UnitCreator is the slice of the store ResolveOrCreate needs.
type UnitCreator interface {
	ListUnits(ctx context.Context, companyID string) ([]models.Unit, error)
	CreateUnit(ctx context.Context, unit *models.Unit) error
}

// UnitResolver matches free-text unit tokens against one company's units.
// Matching is exact and case-insensitive: names first, then abbreviations.
type UnitResolver struct {
	tieBreak string
}

func NewUnitResolver(tieBreak string) *UnitResolver {
	if tieBreak == "" {
		tieBreak = config.TieBreakStore
	}
	return &UnitResolver{tieBreak: tieBreak}
}

// Resolve finds the unit whose name, else abbreviation, equals token ignoring case.
func (r *UnitResolver) Resolve(token string, units []models.Unit) (models.Unit, bool) {
	if token == "" {
		return models.Unit{}, false
	}
	if u, ok := r.ResolveByName(token, units); ok {
		return u, true
	}
	return r.pick(units, func(u models.Unit) bool {
		return u.Abbreviation != nil && *u.Abbreviation != "" && strings.EqualFold(*u.Abbreviation, token)
	})
}

// ResolveByName matches names only.
func (r *UnitResolver) ResolveByName(token string, units []models.Unit) (models.Unit, bool) {
	if token == "" {
		return models.Unit{}, false
	}
	return r.pick(units, func(u models.Unit) bool {
		return strings.EqualFold(u.Name, token)
	})
}

// FindByID looks a unit up by its identifier.
func (r *UnitResolver) FindByID(id string, units []models.Unit) (models.Unit, bool) {
	return findUnitByID(id, units)
}

// ResolveOrCreate resolves token, creating the unit when nothing matches. The
// created unit is appended to *units so later tokens in the same run reuse it.
// A concurrent insert of the same name is absorbed by re-reading the company's units.
func (r *UnitResolver) ResolveOrCreate(ctx context.Context, store UnitCreator, token, companyID string, units *[]models.Unit) (models.Unit, bool, error) {
	if token == "" {
		return models.Unit{}, false, ErrUnitNotFound
	}
	if u, ok := r.Resolve(token, *units); ok {
		return u, false, nil
	}

	unit := models.Unit{
		ID:           uuid.NewString(),
		CompanyID:    companyID,
		Name:         token,
		Abbreviation: models.StringPtr(DeriveAbbreviation(token)),
		CreatedBy:    models.StringPtr(MigrationCreatedBy),
	}
	err := store.CreateUnit(ctx, &unit)
	if err == nil {
		*units = append(*units, unit)
		return unit, true, nil
	}
	if !errors.Is(err, repository.ErrDuplicateUnit) {
		return models.Unit{}, false, err
	}

	refreshed, listErr := store.ListUnits(ctx, companyID)
	if listErr != nil {
		return models.Unit{}, false, listErr
	}
	*units = refreshed
	if u, ok := r.Resolve(token, refreshed); ok {
		return u, false, nil
	}
	return models.Unit{}, false, fmt.Errorf("unit %q for company %s: %w", token, companyID, err)
}

// DeriveAbbreviation keeps tokens of up to six characters verbatim and
// otherwise upper-cases the first three.
func DeriveAbbreviation(token string) string {
	if utf8.RuneCountInString(token) <= 6 {
		return token
	}
	runes := []rune(token)
	return strings.ToUpper(string(runes[:3]))
}

func (r *UnitResolver) pick(units []models.Unit, match func(models.Unit) bool) (models.Unit, bool) {
	found := -1
	for i := range units {
		if !match(units[i]) {
			continue
		}
		if found < 0 {
			found = i
			if r.tieBreak == config.TieBreakStore {
				break
			}
			continue
		}
		switch r.tieBreak {
		case config.TieBreakNewest:
			if units[i].CreatedAt.After(units[found].CreatedAt) {
				found = i
			}
		case config.TieBreakOldest:
			if units[i].CreatedAt.Before(units[found].CreatedAt) {
				found = i
			}
		}
	}
	if found < 0 {
		return models.Unit{}, false
	}
	return units[found], true
}

func findUnitByID(id string, units []models.Unit) (models.Unit, bool) {
	if id == "" {
		return models.Unit{}, false
	}
	for _, u := range units {
		if u.ID == id {
			return u, true
		}
	}
	return models.Unit{}, false
}
