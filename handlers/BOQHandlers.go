package handlers

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"boqunits/repository"
	"boqunits/services"
	"boqunits/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func loadBOQView(c *gin.Context, db *sql.DB) (services.BOQView, bool) {
	ctx, cancel := utils.GetDefaultQueryContext(c.Request.Context())
	defer cancel()

	reader := repository.NewBOQReader(db)
	companyID := c.Param("company_id")
	boq, err := reader.GetBOQ(ctx, companyID, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		utils.ErrorResponse(c, "BOQ not found", http.StatusNotFound)
		return services.BOQView{}, false
	}
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusInternalServerError)
		return services.BOQView{}, false
	}

	units, err := reader.ListUnits(ctx, companyID)
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusInternalServerError)
		return services.BOQView{}, false
	}
	return services.BuildBOQView(boq, units), true
}

// GetBOQView godoc
// @Summary      BOQ with resolved display units
// @Tags         boqs
// @Produce      json
// @Param        company_id  path      string  true  "Company ID"
// @Param        id          path      string  true  "BOQ ID"
// @Success      200  {object}  services.BOQView
// @Failure      404  {object}  object
// @Router       /api/companies/{company_id}/boqs/{id}/view [get]
func GetBOQView(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, ok := loadBOQView(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// GenerateBOQPDF godoc
// @Summary      Generate BOQ PDF
// @Tags         boqs
// @Param        company_id  path  string  true  "Company ID"
// @Param        id          path  string  true  "BOQ ID"
// @Success      200  "PDF file"
// @Failure      404  {object}  object
// @Router       /api/companies/{company_id}/boqs/{id}/pdf [get]
func GenerateBOQPDF(db *sql.DB, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, ok := loadBOQView(c, db)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := services.GenerateBOQPDF(view, &buf); err != nil {
			logger.Error("boq pdf generation failed", zap.String("boq_id", view.ID), zap.Error(err))
			utils.ErrorResponse(c, "Failed to generate PDF", http.StatusInternalServerError)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=boq_%s.pdf", safeFileName(view.Number)))
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
	}
}

// GetUnitAudit godoc
// @Summary      Unit data-quality audit
// @Tags         units
// @Produce      json
// @Param        company_id  query  string  false  "Comma-separated company IDs"
// @Success      200  {object}  services.AuditReport
// @Router       /api/unit-audit [get]
func GetUnitAudit(db *sql.DB, logger *zap.Logger, sampleSize int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.GetDefaultQueryContext(c.Request.Context())
		defer cancel()

		companyIDs := companyIDsQuery(c)

		report, err := services.NewUnitAuditService(repository.NewBOQReader(db), logger, sampleSize).Run(ctx, companyIDs)
		if err != nil {
			utils.ErrorResponse(c, err.Error(), http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// companyIDsQuery reads the optional comma-separated company_id filter.
func companyIDsQuery(c *gin.Context) []string {
	var ids []string
	for _, id := range strings.Split(c.Query("company_id"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func safeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
