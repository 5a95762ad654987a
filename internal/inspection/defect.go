package inspection

// DefectCategory is one of a closed set of defect classes.
type DefectCategory string

const (
	CategoryNone              DefectCategory = ""
	CategoryNoDrawing         DefectCategory = "無圖面"
	CategoryDrawingMismatch   DefectCategory = "圖面不符"
	CategoryDimensionNG       DefectCategory = "尺寸NG"
	CategoryAppearanceNG      DefectCategory = "外觀NG"
	CategoryOperatorError     DefectCategory = "人員疏失"
	CategoryCharacteristicBad DefectCategory = "特性異常"
)

// Categories lists the selectable categories in display order.
var Categories = []DefectCategory{
	CategoryNoDrawing,
	CategoryDrawingMismatch,
	CategoryDimensionNG,
	CategoryAppearanceNG,
	CategoryOperatorError,
	CategoryCharacteristicBad,
}

// Valid reports whether c belongs to the closed set. The empty category is
// not valid but is allowed on unfinished entries.
func (c DefectCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Defect is one nested defect entry on a record.
type Defect struct {
	Category       DefectCategory `json:"defectCategory"`
	Status         string         `json:"defectStatus"`
	Countermeasure string         `json:"countermeasure"`
}

// HasCategory reports whether the entry is complete enough to submit.
func (d Defect) HasCategory() bool {
	return d.Category != CategoryNone
}
