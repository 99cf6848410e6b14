package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"boqunits/models"

	"github.com/lib/pq"
)

// BOQReader is the read-only, database/sql side of the store used by the
// audit and export jobs and the viewer handlers.
type BOQReader struct {
	db *sql.DB
}

func NewBOQReader(db *sql.DB) *BOQReader {
	return &BOQReader{db: db}
}

// ForEachBOQ streams BOQs ordered by company then number. An empty companyIDs
// means all companies. Iteration stops at the first error returned by fn.
func (r *BOQReader) ForEachBOQ(ctx context.Context, companyIDs []string, fn func(models.BOQ) error) error {
	var filter interface{}
	if len(companyIDs) > 0 {
		filter = pq.Array(companyIDs)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, number, data
		FROM boqs
		WHERE ($1::text[] IS NULL OR company_id::text = ANY($1::text[]))
		ORDER BY company_id, number, id`, filter)
	if err != nil {
		return fmt.Errorf("query boqs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var boq models.BOQ
		if err := rows.Scan(&boq.ID, &boq.CompanyID, &boq.Number, &boq.Data); err != nil {
			return fmt.Errorf("scan boq: %w", err)
		}
		if err := fn(boq); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GetBOQ loads one BOQ scoped to its company.
func (r *BOQReader) GetBOQ(ctx context.Context, companyID, boqID string) (*models.BOQ, error) {
	var boq models.BOQ
	err := r.db.QueryRowContext(ctx, `
		SELECT id, company_id, number, client_name, currency, data, updated_at
		FROM boqs
		WHERE id = $1 AND company_id = $2`, boqID, companyID).
		Scan(&boq.ID, &boq.CompanyID, &boq.Number, &boq.ClientName, &boq.Currency, &boq.Data, &boq.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get boq %s: %w", boqID, err)
	}
	return &boq, nil
}

// ListUnits returns a company's units in creation order.
func (r *BOQReader) ListUnits(ctx context.Context, companyID string) ([]models.Unit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, name, abbreviation, created_by, created_at, updated_at
		FROM units
		WHERE company_id = $1
		ORDER BY created_at, id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	units := []models.Unit{}
	for rows.Next() {
		var u models.Unit
		if err := rows.Scan(&u.ID, &u.CompanyID, &u.Name, &u.Abbreviation, &u.CreatedBy, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}
