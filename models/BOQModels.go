package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// BOQ represents the boqs table. Only the columns the unit jobs read or write are mapped.
type BOQ struct {
	ID         string      `gorm:"primaryKey;column:id" json:"id"`
	CompanyID  string      `gorm:"column:company_id;not null" json:"company_id"`
	Number     string      `gorm:"column:number;not null" json:"number"`
	ClientName *string     `gorm:"column:client_name" json:"client_name,omitempty"`
	Currency   *string     `gorm:"column:currency" json:"currency,omitempty"`
	Data       BOQDocument `gorm:"column:data;type:jsonb" json:"data"`
	UpdatedAt  time.Time   `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for BOQ
func (BOQ) TableName() string {
	return "boqs"
}

// Item keys that carry unit references. Everything else on an item is preserved as stored.
const (
	ItemKeyUnit             = "unit"
	ItemKeyUnitName         = "unit_name"
	ItemKeyUnitID           = "unit_id"
	ItemKeyUnitAbbreviation = "unit_abbreviation"
)

var itemUnitKeys = []string{ItemKeyUnit, ItemKeyUnitName, ItemKeyUnitID, ItemKeyUnitAbbreviation}

// BOQDocument is the semi-structured data column of a BOQ.
// Keys it does not model are carried through untouched; a data value that is
// not an object, or a sections value that is not a list, is kept verbatim and
// exposes no sections.
type BOQDocument struct {
	Sections []*BOQSection

	fields        map[string]json.RawMessage
	raw           json.RawMessage
	sectionsValid bool
}

// BOQSection is one entry of data.sections.
type BOQSection struct {
	Title string
	Items []*BOQItem

	fields     map[string]json.RawMessage
	raw        json.RawMessage
	itemsValid bool
}

// BOQItem is one entry of data.sections[].items. Any subset of the four unit
// fields may be present; nil means absent or null.
type BOQItem struct {
	Description string
	Quantity    float64
	Rate        float64

	Unit             *string
	UnitName         *string
	UnitID           *string
	UnitAbbreviation *string

	fields map[string]json.RawMessage
	orig   map[string]*string
	nulls  map[string]bool
	raw    json.RawMessage
}

// Value implements driver.Valuer for the jsonb column.
func (d BOQDocument) Value() (driver.Value, error) {
	b, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for the jsonb column. NULL yields an empty document.
func (d *BOQDocument) Scan(value interface{}) error {
	*d = BOQDocument{}
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return d.UnmarshalJSON(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("boq data: unsupported scan type %T", value)
	}
}

// UnmarshalJSON never fails on shape anomalies; it only records what it cannot model.
func (d *BOQDocument) UnmarshalJSON(b []byte) error {
	*d = BOQDocument{}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		d.raw = append(json.RawMessage(nil), trimmed...)
		return nil
	}
	d.fields = fields
	rawSections, ok := fields["sections"]
	if !ok {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(rawSections, &list); err != nil || list == nil {
		return nil
	}
	d.sectionsValid = true
	d.Sections = make([]*BOQSection, 0, len(list))
	for _, raw := range list {
		s := &BOQSection{}
		if err := s.UnmarshalJSON(raw); err != nil {
			return err
		}
		d.Sections = append(d.Sections, s)
	}
	return nil
}

// MarshalJSON writes back every key that was read, replacing sections with their current state.
func (d BOQDocument) MarshalJSON() ([]byte, error) {
	if d.raw != nil {
		return d.raw, nil
	}
	if d.fields == nil && !d.sectionsValid {
		if len(d.Sections) == 0 {
			return []byte("null"), nil
		}
		d.sectionsValid = true
	}
	out := make(map[string]json.RawMessage, len(d.fields)+1)
	for k, v := range d.fields {
		out[k] = v
	}
	if d.sectionsValid {
		sections, err := json.Marshal(d.Sections)
		if err != nil {
			return nil, fmt.Errorf("boq data: marshal sections: %w", err)
		}
		out["sections"] = sections
	}
	return json.Marshal(out)
}

// HasSections reports whether data.sections was a list.
func (d *BOQDocument) HasSections() bool {
	return d.sectionsValid
}

// EachItem calls fn for every well-formed item with its zero-based position in
// its section, stopping at the first error.
func (d *BOQDocument) EachItem(fn func(section *BOQSection, index int, item *BOQItem) error) error {
	for _, s := range d.Sections {
		if !s.itemsValid {
			continue
		}
		for i, item := range s.Items {
			if item.raw != nil {
				continue
			}
			if err := fn(s, i, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *BOQSection) UnmarshalJSON(b []byte) error {
	*s = BOQSection{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		s.raw = append(json.RawMessage(nil), b...)
		return nil
	}
	s.fields = fields
	if rawTitle, ok := fields["title"]; ok {
		var title interface{}
		if json.Unmarshal(rawTitle, &title) == nil && title != nil {
			s.Title = cast.ToString(title)
		}
	}
	rawItems, ok := fields["items"]
	if !ok {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(rawItems, &list); err != nil || list == nil {
		return nil
	}
	s.itemsValid = true
	s.Items = make([]*BOQItem, 0, len(list))
	for _, raw := range list {
		item := &BOQItem{}
		if err := item.UnmarshalJSON(raw); err != nil {
			return err
		}
		s.Items = append(s.Items, item)
	}
	return nil
}

func (s BOQSection) MarshalJSON() ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}
	out := make(map[string]json.RawMessage, len(s.fields)+1)
	for k, v := range s.fields {
		out[k] = v
	}
	if s.itemsValid || (s.fields == nil && len(s.Items) > 0) {
		items, err := json.Marshal(s.Items)
		if err != nil {
			return nil, err
		}
		out["items"] = items
	}
	return json.Marshal(out)
}

// HasItems reports whether the section's items value was a list.
func (s *BOQSection) HasItems() bool {
	return s.itemsValid
}

func (it *BOQItem) UnmarshalJSON(b []byte) error {
	*it = BOQItem{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		it.raw = append(json.RawMessage(nil), b...)
		return nil
	}
	it.fields = fields
	it.Description = cast.ToString(decodeScalar(fields["description"]))
	it.Quantity = cast.ToFloat64(decodeScalar(fields["quantity"]))
	it.Rate = cast.ToFloat64(decodeScalar(fields["rate"]))

	it.orig = make(map[string]*string, len(itemUnitKeys))
	for _, key := range itemUnitKeys {
		it.orig[key] = decodeOptionalString(fields[key])
	}
	it.Unit = copyString(it.orig[ItemKeyUnit])
	it.UnitName = copyString(it.orig[ItemKeyUnitName])
	it.UnitID = copyString(it.orig[ItemKeyUnitID])
	it.UnitAbbreviation = copyString(it.orig[ItemKeyUnitAbbreviation])
	return nil
}

// MarshalJSON keeps the stored encoding of any unit field that was not changed.
func (it BOQItem) MarshalJSON() ([]byte, error) {
	if it.raw != nil {
		return it.raw, nil
	}
	out := make(map[string]json.RawMessage, len(it.fields)+len(itemUnitKeys))
	for k, v := range it.fields {
		out[k] = v
	}
	if it.fields == nil {
		out["description"], _ = json.Marshal(it.Description)
		out["quantity"], _ = json.Marshal(it.Quantity)
		out["rate"], _ = json.Marshal(it.Rate)
	}
	current := map[string]*string{
		ItemKeyUnit:             it.Unit,
		ItemKeyUnitName:         it.UnitName,
		ItemKeyUnitID:           it.UnitID,
		ItemKeyUnitAbbreviation: it.UnitAbbreviation,
	}
	for _, key := range itemUnitKeys {
		val := current[key]
		if val == nil && it.nulls[key] {
			out[key] = json.RawMessage("null")
			continue
		}
		if sameString(val, it.orig[key]) {
			continue
		}
		if val == nil {
			delete(out, key)
			continue
		}
		encoded, err := json.Marshal(*val)
		if err != nil {
			return nil, err
		}
		out[key] = encoded
	}
	return json.Marshal(out)
}

// ClearUnitAbbreviation sets unit_abbreviation to an explicit JSON null.
func (it *BOQItem) ClearUnitAbbreviation() {
	it.UnitAbbreviation = nil
	if it.nulls == nil {
		it.nulls = map[string]bool{}
	}
	it.nulls[ItemKeyUnitAbbreviation] = true
}

// Valid reports whether the item was a JSON object.
func (it *BOQItem) Valid() bool {
	return it.raw == nil
}

// HasUnitID reports a non-empty unit_id.
func (it *BOQItem) HasUnitID() bool {
	return nonEmpty(it.UnitID)
}

// HasUnitAbbreviation reports a non-empty unit_abbreviation.
func (it *BOQItem) HasUnitAbbreviation() bool {
	return nonEmpty(it.UnitAbbreviation)
}

// HasLegacyFields reports whether unit or unit_name is present with a non-null value.
func (it *BOQItem) HasLegacyFields() bool {
	return it.Unit != nil || it.UnitName != nil
}

// LegacyToken returns unit_name if non-empty, else unit, else "".
func (it *BOQItem) LegacyToken() string {
	if nonEmpty(it.UnitName) {
		return *it.UnitName
	}
	if nonEmpty(it.Unit) {
		return *it.Unit
	}
	return ""
}

// LineTotal is quantity times rate.
func (it *BOQItem) LineTotal() float64 {
	return it.Quantity * it.Rate
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func nonEmpty(p *string) bool {
	return p != nil && *p != ""
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func decodeScalar(raw json.RawMessage) interface{} {
	if raw == nil {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// decodeOptionalString reads a string-ish scalar; numbers are stringified, null and non-scalars are nil.
func decodeOptionalString(raw json.RawMessage) *string {
	v := decodeScalar(raw)
	switch v.(type) {
	case nil, map[string]interface{}, []interface{}:
		return nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil
	}
	return &s
}
