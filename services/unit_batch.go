package services

import (
	"context"
	"errors"
	"fmt"

	"boqunits/models"
	"boqunits/repository"

	"go.uber.org/zap"
)

var errDryRunRollback = errors.New("dry run: rolling back")

// BatchOptions apply to every mutating unit job.
type BatchOptions struct {
	// DryRun executes the whole run, then rolls it back.
	DryRun bool
	// CompanyIDs restricts the run; empty means every company.
	CompanyIDs []string
}

// BOQRef identifies a BOQ in logs and reports.
type BOQRef struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	CompanyID string `json:"company_id"`
}

// RunReport summarizes one batch run. On failure it describes work that was rolled back.
type RunReport struct {
	Job                      string   `json:"job"`
	DryRun                   bool     `json:"dry_run"`
	CompaniesScanned         int      `json:"companies_scanned"`
	BOQsScanned              int      `json:"boqs_scanned"`
	BOQsUpdated              int      `json:"boqs_updated"`
	ItemsUpdated             int      `json:"items_updated"`
	UnitsCreated             int      `json:"units_created"`
	ItemsUnresolved          int      `json:"items_unresolved"`
	ItemsSkipped             int      `json:"items_skipped"`
	ItemsWithoutAbbreviation int      `json:"items_stripped_without_abbreviation"`
	UpdatedBOQs              []BOQRef `json:"updated_boqs"`
}

// itemFunc mutates one item in place and reports whether it changed.
type itemFunc func(ctx context.Context, item *models.BOQItem) (bool, error)

// companyFunc prepares per-company state and returns the item step for that company.
type companyFunc func(ctx context.Context, store repository.Store, companyID string, report *RunReport) (itemFunc, error)

// runItemBatch walks companies, their BOQs and every item inside a single
// transaction, writing each changed BOQ once.
func runItemBatch(ctx context.Context, tx repository.Transactor, logger *zap.Logger, job string, opts BatchOptions, perCompany companyFunc) (*RunReport, error) {
	report := &RunReport{Job: job, DryRun: opts.DryRun, UpdatedBOQs: []BOQRef{}}
	log := logger.With(zap.String("job", job), zap.Bool("dry_run", opts.DryRun))
	log.Info("run started")

	err := tx.Transaction(ctx, func(store repository.Store) error {
		companies, err := store.ListCompanyIDs(ctx, opts.CompanyIDs)
		if err != nil {
			return err
		}
		for _, companyID := range companies {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := store.LockCompany(ctx, companyID); err != nil {
				return err
			}
			step, err := perCompany(ctx, store, companyID, report)
			if err != nil {
				return fmt.Errorf("company %s: %w", companyID, err)
			}
			if err := runCompany(ctx, store, log, companyID, step, report); err != nil {
				return err
			}
			report.CompaniesScanned++
		}
		if opts.DryRun {
			return errDryRunRollback
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRunRollback) {
		log.Error("run failed, all changes rolled back", zap.Error(err))
		return report, err
	}

	log.Info("run finished",
		zap.Int("companies", report.CompaniesScanned),
		zap.Int("boqs_scanned", report.BOQsScanned),
		zap.Int("boqs_updated", report.BOQsUpdated),
		zap.Int("items_updated", report.ItemsUpdated),
		zap.Int("units_created", report.UnitsCreated),
		zap.Int("items_unresolved", report.ItemsUnresolved),
		zap.Int("items_skipped", report.ItemsSkipped),
	)
	return report, nil
}

func runCompany(ctx context.Context, store repository.Store, log *zap.Logger, companyID string, step itemFunc, report *RunReport) error {
	boqs, err := store.ListBOQs(ctx, companyID)
	if err != nil {
		return err
	}
	for i := range boqs {
		boq := &boqs[i]
		report.BOQsScanned++

		changed := 0
		err := boq.Data.EachItem(func(_ *models.BOQSection, _ int, item *models.BOQItem) error {
			ok, err := step(ctx, item)
			if ok {
				changed++
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("boq %s (%s): %w", boq.Number, boq.ID, err)
		}
		if changed == 0 {
			continue
		}

		if err := store.SaveBOQData(ctx, boq); err != nil {
			return err
		}
		report.BOQsUpdated++
		report.ItemsUpdated += changed
		report.UpdatedBOQs = append(report.UpdatedBOQs, BOQRef{ID: boq.ID, Number: boq.Number, CompanyID: companyID})
		log.Info("boq updated",
			zap.String("company_id", companyID),
			zap.String("boq_id", boq.ID),
			zap.String("boq_number", boq.Number),
			zap.Int("items", changed),
		)
	}
	return nil
}
