package models

import "time"

// Unit is a canonical unit of measure owned by one company.
// Name is unique per company; matching against it is case-insensitive.
type Unit struct {
	ID           string    `gorm:"primaryKey;column:id" json:"id" example:"6f1c8a52-0c1e-4a7e-9d4b-2f1a3c5e7b90"`
	CompanyID    string    `gorm:"column:company_id;not null;uniqueIndex:idx_units_company_name" json:"company_id"`
	Name         string    `gorm:"column:name;not null;uniqueIndex:idx_units_company_name" json:"name" example:"Cubic Meters"`
	Abbreviation *string   `gorm:"column:abbreviation" json:"abbreviation,omitempty" example:"m³"`
	CreatedBy    *string   `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the table name for Unit
func (Unit) TableName() string {
	return "units"
}

// DisplayAbbreviation returns the abbreviation, or the name when no abbreviation is stored.
func (u Unit) DisplayAbbreviation() string {
	if u.Abbreviation != nil && *u.Abbreviation != "" {
		return *u.Abbreviation
	}
	return u.Name
}

// UnitRequest is the body accepted by the units create/update endpoints.
type UnitRequest struct {
	Name         string  `json:"name" binding:"required" example:"Square Meters"`
	Abbreviation *string `json:"abbreviation" example:"m²"`
}
