package repository

import (
	"context"
	"errors"

	"boqunits/models"
)

var (
	// ErrDuplicateUnit is returned when (company_id, name) already exists.
	ErrDuplicateUnit = errors.New("unit already exists for company")
	// ErrNotFound is returned when an addressed row does not exist.
	ErrNotFound = errors.New("record not found")
)

// Store is the persistence surface the unit batch jobs run against.
type Store interface {
	// ListCompanyIDs returns every company owning at least one BOQ, optionally
	// restricted to only. Order is stable.
	ListCompanyIDs(ctx context.Context, only []string) ([]string, error)
	// LockCompany serializes batch runs on one company until the transaction ends.
	LockCompany(ctx context.Context, companyID string) error
	ListUnits(ctx context.Context, companyID string) ([]models.Unit, error)
	// CreateUnit inserts unit; a uniqueness violation returns ErrDuplicateUnit
	// and leaves the surrounding transaction usable.
	CreateUnit(ctx context.Context, unit *models.Unit) error
	ListBOQs(ctx context.Context, companyID string) ([]models.BOQ, error)
	// SaveBOQData writes boq.Data back in one statement and bumps updated_at.
	SaveBOQData(ctx context.Context, boq *models.BOQ) error
}

// Transactor runs fn against a Store bound to a single transaction.
// Any error returned by fn rolls back everything fn wrote.
type Transactor interface {
	Transaction(ctx context.Context, fn func(Store) error) error
}
