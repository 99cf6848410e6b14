package services

import (
	"boqunits/models"
)

// DisplayUnitPlaceholder is shown for items with no usable unit reference.
const DisplayUnitPlaceholder = "-"

// DisplayUnit resolves the unit text shown for an item by the viewer and PDF.
// Precedence: the referenced unit (abbreviation, else name), the cached
// unit_abbreviation, unit_name, legacy unit, then the placeholder.
// It never fails on partial data.
func DisplayUnit(item *models.BOQItem, units []models.Unit) string {
	if item.HasUnitID() {
		if unit, ok := findUnitByID(*item.UnitID, units); ok {
			return unit.DisplayAbbreviation()
		}
	}
	for _, candidate := range []*string{item.UnitAbbreviation, item.UnitName, item.Unit} {
		if candidate != nil && *candidate != "" {
			return *candidate
		}
	}
	return DisplayUnitPlaceholder
}

// BOQView is the render-ready form of a BOQ shared by the JSON viewer and the PDF.
type BOQView struct {
	ID         string        `json:"id"`
	CompanyID  string        `json:"company_id"`
	Number     string        `json:"number"`
	ClientName string        `json:"client_name,omitempty"`
	Currency   string        `json:"currency,omitempty"`
	Sections   []SectionView `json:"sections"`
	Total      float64       `json:"total"`
}

type SectionView struct {
	Title    string     `json:"title"`
	Items    []ItemView `json:"items"`
	Subtotal float64    `json:"subtotal"`
}

type ItemView struct {
	Index       int     `json:"index"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitID      string  `json:"unit_id,omitempty"`
	Rate        float64 `json:"rate"`
	LineTotal   float64 `json:"line_total"`
}

// BuildBOQView flattens a BOQ into display rows using the company's current units.
func BuildBOQView(boq *models.BOQ, units []models.Unit) BOQView {
	view := BOQView{
		ID:         boq.ID,
		CompanyID:  boq.CompanyID,
		Number:     boq.Number,
		ClientName: models.StringValue(boq.ClientName),
		Currency:   models.StringValue(boq.Currency),
		Sections:   []SectionView{},
	}
	for _, section := range boq.Data.Sections {
		sv := SectionView{Title: section.Title, Items: []ItemView{}}
		for i, item := range section.Items {
			if !section.HasItems() || !item.Valid() {
				continue
			}
			iv := ItemView{
				Index:       i,
				Description: item.Description,
				Quantity:    item.Quantity,
				Unit:        DisplayUnit(item, units),
				UnitID:      models.StringValue(item.UnitID),
				Rate:        item.Rate,
				LineTotal:   item.LineTotal(),
			}
			sv.Subtotal += iv.LineTotal
			sv.Items = append(sv.Items, iv)
		}
		view.Total += sv.Subtotal
		view.Sections = append(view.Sections, sv)
	}
	return view
}
