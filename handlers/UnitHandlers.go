package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"boqunits/models"
	"boqunits/repository"
	"boqunits/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// normalizeUnitRequest trims the name and turns a blank abbreviation into null.
func normalizeUnitRequest(req *models.UnitRequest) bool {
	req.Name = strings.TrimSpace(req.Name)
	if req.Abbreviation != nil {
		abbr := strings.TrimSpace(*req.Abbreviation)
		if abbr == "" {
			req.Abbreviation = nil
		} else {
			req.Abbreviation = &abbr
		}
	}
	return req.Name != ""
}

// CreateUnit godoc
// @Summary      Create unit
// @Tags         units
// @Accept       json
// @Produce      json
// @Param        company_id  path      string              true  "Company ID"
// @Param        body        body      models.UnitRequest  true  "Unit"
// @Success      201         {object}  models.Unit
// @Failure      400         {object}  object
// @Failure      409         {object}  object
// @Router       /api/companies/{company_id}/units [post]
func CreateUnit(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UnitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, err.Error(), http.StatusBadRequest)
			return
		}
		if !normalizeUnitRequest(&req) {
			utils.ErrorResponse(c, "Unit name is required", http.StatusBadRequest)
			return
		}

		ctx, cancel := utils.GetDefaultQueryContext(c.Request.Context())
		defer cancel()

		u := models.Unit{
			ID:           uuid.NewString(),
			CompanyID:    c.Param("company_id"),
			Name:         req.Name,
			Abbreviation: req.Abbreviation,
		}
		err := db.QueryRowContext(ctx, `
			INSERT INTO units (id, company_id, name, abbreviation, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			RETURNING created_at, updated_at`,
			u.ID, u.CompanyID, u.Name, u.Abbreviation).Scan(&u.CreatedAt, &u.UpdatedAt)
		if isUniqueViolation(err) {
			utils.ErrorResponse(c, "A unit with this name already exists", http.StatusConflict)
			return
		}
		if err != nil {
			utils.ErrorResponse(c, err.Error(), http.StatusInternalServerError)
			return
		}

		c.JSON(http.StatusCreated, u)
	}
}

// GetUnits godoc
// @Summary      List a company's units
// @Tags         units
// @Param        company_id  path  string  true  "Company ID"
// @Success      200  {array}  models.Unit
// @Router       /api/companies/{company_id}/units [get]
func GetUnits(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.GetDefaultQueryContext(c.Request.Context())
		defer cancel()

		units, err := repository.NewBOQReader(db).ListUnits(ctx, c.Param("company_id"))
		if err != nil {
			utils.ErrorResponse(c, err.Error(), http.StatusInternalServerError)
			return
		}

		c.JSON(http.StatusOK, units)
	}
}

// GetUnitByID godoc
// @Summary      Get unit by ID
// @Tags         units
// @Param        company_id  path      string  true  "Company ID"
// @Param        id          path      string  true  "Unit ID"
// @Success      200  {object}  models.Unit
// @Failure      404  {object}  object
// @Router       /api/companies/{company_id}/units/{id} [get]
func GetUnitByID(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.GetDefaultQueryContext(c.Request.Context())
		defer cancel()

		var u models.Unit
		err := db.QueryRowContext(ctx, `
			SELECT id, company_id, name, abbreviation, created_by, created_at, updated_at
			FROM units WHERE id = $1 AND company_id = $2`, c.Param("id"), c.Param("company_id")).
			Scan(&u.ID, &u.CompanyID, &u.Name, &u.Abbreviation, &u.CreatedBy, &u.CreatedAt, &u.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			utils.ErrorResponse(c, "Unit not found", http.StatusNotFound)
			return
		} else if err != nil {
			utils.ErrorResponse(c, err.Error(), http.StatusInternalServerError)
			return
		}

		c.JSON(http.StatusOK, u)
	}
}

// UpdateUnit godoc
// @Summary      Update unit
// @Description  Items keep referencing the unit by id; their cached abbreviation is refreshed by the next normalization run only when missing.
// @Tags         units
// @Param        company_id  path      string              true  "Company ID"
// @Param        id          path      string              true  "Unit ID"
// @Param        body        body      models.UnitRequest  true  "Unit"
// @Success      200   {object}  models.Unit
// @Failure      404   {object}  object
// @Failure      409   {object}  object
// @Router       /api/companies/{company_id}/units/{id} [put]
func UpdateUnit(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UnitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, err.Error(), http.StatusBadRequest)
			return
		}
		if !normalizeUnitRequest(&req) {
			utils.ErrorResponse(c, "Unit name is required", http.StatusBadRequest)
			return
		}

		ctx, cancel := utils.GetDefaultQueryContext(c.Request.Context())
		defer cancel()

		var u models.Unit
		err := db.QueryRowContext(ctx, `
			UPDATE units SET name = $1, abbreviation = $2, updated_at = NOW()
			WHERE id = $3 AND company_id = $4
			RETURNING id, company_id, name, abbreviation, created_by, created_at, updated_at`,
			req.Name, req.Abbreviation, c.Param("id"), c.Param("company_id")).
			Scan(&u.ID, &u.CompanyID, &u.Name, &u.Abbreviation, &u.CreatedBy, &u.CreatedAt, &u.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			utils.ErrorResponse(c, "Unit not found", http.StatusNotFound)
			return
		}
		if isUniqueViolation(err) {
			utils.ErrorResponse(c, "A unit with this name already exists", http.StatusConflict)
			return
		}
		if err != nil {
			utils.ErrorResponse(c, err.Error(), http.StatusInternalServerError)
			return
		}

		c.JSON(http.StatusOK, u)
	}
}

// DeleteUnit godoc
// @Summary      Delete unit
// @Tags         units
// @Param        company_id  path      string  true  "Company ID"
// @Param        id          path      string  true  "Unit ID"
// @Success      200  {object}  object
// @Failure      404  {object}  object
// @Router       /api/companies/{company_id}/units/{id} [delete]
func DeleteUnit(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.GetDefaultQueryContext(c.Request.Context())
		defer cancel()

		res, err := db.ExecContext(ctx, `DELETE FROM units WHERE id = $1 AND company_id = $2`, c.Param("id"), c.Param("company_id"))
		if err != nil {
			utils.ErrorResponse(c, err.Error(), http.StatusInternalServerError)
			return
		}

		rowsAffected, _ := res.RowsAffected()
		if rowsAffected == 0 {
			utils.ErrorResponse(c, "Unit not found", http.StatusNotFound)
			return
		}

		utils.SuccessResponse(c, "Unit deleted successfully", http.StatusOK)
	}
}
