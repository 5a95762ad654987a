// Package inspection models production-order inspection records as they travel
// between the REST service and the terminal front end.
package inspection

import (
	"encoding/json"
	"strings"
	"unicode/utf16"
)

// DomesticCustomer is the fixed customer for domestic sales.
const DomesticCustomer = "大井"

// OrderNumberLength is the required length of a production order number,
// counted in UTF-16 code units.
const OrderNumberLength = 16

// SalesType distinguishes domestic from export orders.
type SalesType string

const (
	SalesDomestic SalesType = "domestic"
	SalesExport   SalesType = "export"
)

var salesTypeLabels = map[SalesType]string{
	SalesDomestic: "內銷",
	SalesExport:   "外銷",
}

// ParseSalesType accepts either the wire value or the display label.
func ParseSalesType(value string) (SalesType, bool) {
	trimmed := strings.TrimSpace(value)
	for st, label := range salesTypeLabels {
		if strings.EqualFold(trimmed, string(st)) || trimmed == label {
			return st, true
		}
	}
	return SalesType(trimmed), false
}

// Label returns the display label, falling back to the raw value.
func (s SalesType) Label() string {
	if label, ok := salesTypeLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of the known sales types.
func (s SalesType) Valid() bool {
	_, ok := salesTypeLabels[s]
	return ok
}

// UnmarshalJSON maps display labels onto wire values. Unknown strings are kept
// verbatim so malformed records can still be loaded into the form.
func (s *SalesType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, _ := ParseSalesType(raw)
	*s = parsed
	return nil
}

// Record is one inspection record. ID is assigned by the server.
type Record struct {
	ID              string    `json:"_id,omitempty"`
	SalesType       SalesType `json:"salesType"`
	Customer        string    `json:"customer"`
	ProductionOrder string    `json:"productionOrder"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	Operator        string    `json:"operator"`
	DrawingVersion  string    `json:"drawingVersion"`
	Inspector       string    `json:"inspector"`

	// Populated by the backend, never edited here.
	Department           Text `json:"department,omitempty"`
	FirstPieceInspection Text `json:"firstPieceInspection,omitempty"`

	Defects []Defect `json:"defects"`
}

// Clone returns a deep copy; a nil defect list stays nil.
func (r Record) Clone() Record {
	out := r
	if r.Defects != nil {
		out.Defects = make([]Defect, len(r.Defects))
		copy(out.Defects, r.Defects)
	}
	return out
}

// DefectCount returns the number of entries that carry a category.
func (r Record) DefectCount() int {
	n := 0
	for _, d := range r.Defects {
		if d.HasCategory() {
			n++
		}
	}
	return n
}

// UnitLength counts s the way browsers measure string length: in UTF-16 code
// units, so characters outside the BMP count twice.
func UnitLength(s string) int {
	n := 0
	for _, r := range s {
		if w := utf16.RuneLen(r); w > 0 {
			n += w
		} else {
			n++
		}
	}
	return n
}

// OrderNumberValid reports whether order has exactly OrderNumberLength units.
func OrderNumberValid(order string) bool {
	return UnitLength(order) == OrderNumberLength
}

// Text is a display-only string that decodes from any JSON scalar.
type Text string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*t = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(trimmed)
	return nil
}

// Display renders booleans as 是/否 and everything else verbatim.
func (t Text) Display() string {
	switch strings.ToLower(string(t)) {
	case "true":
		return "是"
	case "false":
		return "否"
	}
	return string(t)
}
