package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boqunits/models"

	"gorm.io/gorm"
)

const (
	advisoryLockNamespace = "boq_units:"
	unitInsertSavepoint   = "unit_insert"
)

// GormStore implements Store and Transactor on GORM.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, now: s.now})
	})
}

func (s *GormStore) ListCompanyIDs(ctx context.Context, only []string) ([]string, error) {
	var ids []string
	q := s.db.WithContext(ctx).Model(&models.BOQ{}).Distinct("company_id")
	if len(only) > 0 {
		q = q.Where("company_id IN ?", only)
	}
	if err := q.Order("company_id").Pluck("company_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return ids, nil
}

// LockCompany takes a transaction-scoped advisory lock; it must run inside Transaction.
func (s *GormStore) LockCompany(ctx context.Context, companyID string) error {
	err := s.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", advisoryLockNamespace+companyID).Error
	if err != nil {
		return fmt.Errorf("lock company %s: %w", companyID, err)
	}
	return nil
}

func (s *GormStore) ListUnits(ctx context.Context, companyID string) ([]models.Unit, error) {
	var units []models.Unit
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at, id").
		Find(&units).Error
	if err != nil {
		return nil, fmt.Errorf("list units for company %s: %w", companyID, err)
	}
	return units, nil
}

// CreateUnit wraps the insert in a savepoint so a duplicate key does not abort
// the enclosing transaction. It must run inside Transaction.
func (s *GormStore) CreateUnit(ctx context.Context, unit *models.Unit) error {
	tx := s.db.WithContext(ctx)
	if unit.CreatedAt.IsZero() {
		unit.CreatedAt = s.now()
	}
	if unit.UpdatedAt.IsZero() {
		unit.UpdatedAt = unit.CreatedAt
	}

	if err := tx.SavePoint(unitInsertSavepoint).Error; err != nil {
		return fmt.Errorf("savepoint before unit insert: %w", err)
	}
	if err := tx.Create(unit).Error; err != nil {
		if rbErr := tx.RollbackTo(unitInsertSavepoint).Error; rbErr != nil {
			return fmt.Errorf("rollback unit insert: %w", rbErr)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUnit
		}
		return fmt.Errorf("create unit %q: %w", unit.Name, err)
	}
	return nil
}

func (s *GormStore) ListBOQs(ctx context.Context, companyID string) ([]models.BOQ, error) {
	var boqs []models.BOQ
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("number, id").
		Find(&boqs).Error
	if err != nil {
		return nil, fmt.Errorf("list boqs for company %s: %w", companyID, err)
	}
	return boqs, nil
}

func (s *GormStore) SaveBOQData(ctx context.Context, boq *models.BOQ) error {
	now := s.now()
	res := s.db.WithContext(ctx).
		Model(&models.BOQ{}).
		Where("id = ? AND company_id = ?", boq.ID, boq.CompanyID).
		Updates(map[string]interface{}{
			"data":       boq.Data,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("save boq %s: %w", boq.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save boq %s: %w", boq.ID, ErrNotFound)
	}
	boq.UpdatedAt = now
	return nil
}
