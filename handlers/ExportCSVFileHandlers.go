package handlers

import (
	"bytes"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"boqunits/repository"
	"boqunits/services"
	"boqunits/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ExportBOQUnits godoc
// @Summary      Export BOQ items with their units
// @Tags         export
// @Produce      text/csv
// @Param        format      query  string  false  "csv (default) or xlsx"
// @Param        company_id  query  string  false  "Comma-separated company IDs"
// @Success      200  {file}  file  "Export file"
// @Failure      400  {object}  object
// @Router       /api/boq-units/export [get]
func ExportBOQUnits(db *sql.DB, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		format := strings.ToLower(c.DefaultQuery("format", "csv"))
		if format != "csv" && format != "xlsx" {
			utils.ErrorResponse(c, "format must be csv or xlsx", http.StatusBadRequest)
			return
		}

		ctx, cancel := utils.GetQueryContext(c.Request.Context(), 5*time.Minute)
		defer cancel()

		companyIDs := companyIDsQuery(c)

		svc := services.NewBOQExportService(repository.NewBOQReader(db), logger)
		rows, _, err := svc.CollectRows(ctx, companyIDs)
		if err != nil {
			utils.ErrorResponse(c, err.Error(), http.StatusInternalServerError)
			return
		}

		filename := "boq_unit_items_" + time.Now().Format("20060102")
		if format == "xlsx" {
			workbook, err := services.GenerateExportWorkbook(rows)
			if err != nil {
				utils.ErrorResponse(c, "Failed to generate workbook", http.StatusInternalServerError)
				return
			}
			c.Header("Content-Disposition", fmt.Sprintf("attachment;filename=%s.xlsx", filename))
			c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
			return
		}

		var buf bytes.Buffer
		if err := services.WriteExportCSV(&buf, rows); err != nil {
			utils.ErrorResponse(c, "Error writing CSV", http.StatusInternalServerError)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment;filename=%s.csv", filename))
		c.Data(http.StatusOK, "text/csv", buf.Bytes())
	}
}
