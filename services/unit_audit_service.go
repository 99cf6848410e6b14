package services

import (
	"context"
	"fmt"
	"io"

	"boqunits/models"

	"go.uber.org/zap"
)

// BOQSource streams BOQs for the read-only jobs.
type BOQSource interface {
	ForEachBOQ(ctx context.Context, companyIDs []string, fn func(models.BOQ) error) error
}

// AuditReport counts BOQs still carrying legacy unit fields or missing cached abbreviations.
type AuditReport struct {
	BOQsScanned               int      `json:"boqs_scanned"`
	ItemsScanned              int      `json:"items_scanned"`
	BOQsWithLegacyFields      int      `json:"boqs_with_legacy_fields"`
	BOQsMissingAbbreviation   int      `json:"boqs_missing_abbreviation"`
	ItemsWithLegacyFields     int      `json:"items_with_legacy_fields"`
	ItemsMissingAbbreviation  int      `json:"items_missing_abbreviation"`
	LegacyFieldSample         []BOQRef `json:"legacy_field_sample"`
	MissingAbbreviationSample []BOQRef `json:"missing_abbreviation_sample"`
	AnomalousBOQs             int      `json:"anomalous_boqs"`
}

// UnitAuditService reports data quality; it never writes.
type UnitAuditService struct {
	source     BOQSource
	logger     *zap.Logger
	sampleSize int
}

func NewUnitAuditService(source BOQSource, logger *zap.Logger, sampleSize int) *UnitAuditService {
	if sampleSize <= 0 {
		sampleSize = 20
	}
	return &UnitAuditService{source: source, logger: logger, sampleSize: sampleSize}
}

func (s *UnitAuditService) Run(ctx context.Context, companyIDs []string) (*AuditReport, error) {
	report := &AuditReport{LegacyFieldSample: []BOQRef{}, MissingAbbreviationSample: []BOQRef{}}
	err := s.source.ForEachBOQ(ctx, companyIDs, func(boq models.BOQ) error {
		report.BOQsScanned++
		if !boq.Data.HasSections() {
			report.AnomalousBOQs++
			return nil
		}

		legacy, missing := 0, 0
		_ = boq.Data.EachItem(func(_ *models.BOQSection, _ int, item *models.BOQItem) error {
			report.ItemsScanned++
			if item.HasLegacyFields() {
				legacy++
			}
			if !item.HasUnitAbbreviation() {
				missing++
			}
			return nil
		})

		ref := BOQRef{ID: boq.ID, Number: boq.Number, CompanyID: boq.CompanyID}
		if legacy > 0 {
			report.BOQsWithLegacyFields++
			report.ItemsWithLegacyFields += legacy
			if len(report.LegacyFieldSample) < s.sampleSize {
				report.LegacyFieldSample = append(report.LegacyFieldSample, ref)
			}
		}
		if missing > 0 {
			report.BOQsMissingAbbreviation++
			report.ItemsMissingAbbreviation += missing
			if len(report.MissingAbbreviationSample) < s.sampleSize {
				report.MissingAbbreviationSample = append(report.MissingAbbreviationSample, ref)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit boqs: %w", err)
	}

	s.logger.Info("unit audit finished",
		zap.Int("boqs_scanned", report.BOQsScanned),
		zap.Int("boqs_with_legacy_fields", report.BOQsWithLegacyFields),
		zap.Int("boqs_missing_abbreviation", report.BOQsMissingAbbreviation),
		zap.Int("anomalous_boqs", report.AnomalousBOQs),
	)
	return report, nil
}

// WriteText prints the operator-facing summary.
func (r *AuditReport) WriteText(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("BOQ unit audit\n")
	ew.printf("  BOQs scanned:                     %d\n", r.BOQsScanned)
	ew.printf("  Items scanned:                    %d\n", r.ItemsScanned)
	ew.printf("  BOQs without a sections list:     %d\n", r.AnomalousBOQs)
	ew.printf("  BOQs with legacy unit fields:     %d (%d items)\n", r.BOQsWithLegacyFields, r.ItemsWithLegacyFields)
	ew.printf("  BOQs missing unit_abbreviation:   %d (%d items)\n", r.BOQsMissingAbbreviation, r.ItemsMissingAbbreviation)
	writeSample(ew, "Legacy unit fields", r.LegacyFieldSample)
	writeSample(ew, "Missing unit_abbreviation", r.MissingAbbreviationSample)
	return ew.err
}

func writeSample(ew *errWriter, title string, refs []BOQRef) {
	if len(refs) == 0 {
		return
	}
	ew.printf("\n%s (first %d):\n", title, len(refs))
	for _, ref := range refs {
		ew.printf("  - %s  number=%s  company=%s\n", ref.ID, ref.Number, ref.CompanyID)
	}
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
