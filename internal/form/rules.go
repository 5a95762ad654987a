package form

import (
	"github.com/kingrea/qc-desk/internal/inspection"
)

// customerRule derives the customer value that follows a sales type change.
type customerRule func(current string) string

func forceCustomer(value string) customerRule {
	return func(string) string { return value }
}

func clearCustomer(string) string { return "" }

// salesTypeRules is the transition table for the salesType/customer coupling.
var salesTypeRules = map[inspection.SalesType]customerRule{
	inspection.SalesDomestic: forceCustomer(inspection.DomesticCustomer),
	inspection.SalesExport:   clearCustomer,
}

// defectChain orders the dependent defect fields. A field is writable only
// when the field before it is non-empty, and a change clears every field
// after it.
var defectChain = []string{
	FieldDefectCategory,
	FieldDefectStatus,
	FieldCountermeasure,
}

func chainPosition(field string) int {
	for i, name := range defectChain {
		if name == field {
			return i
		}
	}
	return -1
}

func chainValues(d inspection.Defect) []string {
	return []string{string(d.Category), d.Status, d.Countermeasure}
}

func defectFromChain(values []string) inspection.Defect {
	return inspection.Defect{
		Category:       inspection.DefectCategory(values[0]),
		Status:         values[1],
		Countermeasure: values[2],
	}
}

// defectFieldEnabled reports whether field may be written on d.
func defectFieldEnabled(d inspection.Defect, field string) bool {
	pos := chainPosition(field)
	if pos < 0 {
		return false
	}
	if pos == 0 {
		return true
	}
	return chainValues(d)[pos-1] != ""
}

// applyDefectWrite is the single place the cascading reset rule lives.
func applyDefectWrite(d inspection.Defect, field, value string) (inspection.Defect, error) {
	pos := chainPosition(field)
	if pos < 0 {
		return d, ErrUnknownField
	}
	if !defectFieldEnabled(d, field) {
		return d, ErrFieldDisabled
	}
	if pos == 0 && value != "" && !inspection.DefectCategory(value).Valid() {
		return d, ErrUnknownCategory
	}
	values := chainValues(d)
	if values[pos] == value {
		return d, nil
	}
	values[pos] = value
	for i := pos + 1; i < len(values); i++ {
		values[i] = ""
	}
	return defectFromChain(values), nil
}
