// Package form owns the draft of one inspection record while a form session
// is open and keeps its field dependencies consistent.
package form

import (
	"errors"
	"fmt"
	"time"

	"github.com/kingrea/qc-desk/internal/inspection"
)

// Top-level field names, matching the JSON keys of inspection.Record.
const (
	FieldSalesType            = "salesType"
	FieldCustomer             = "customer"
	FieldProductionOrder      = "productionOrder"
	FieldDate                 = "date"
	FieldTime                 = "time"
	FieldOperator             = "operator"
	FieldDrawingVersion       = "drawingVersion"
	FieldInspector            = "inspector"
	FieldDepartment           = "department"
	FieldFirstPieceInspection = "firstPieceInspection"
)

// Defect entry field names.
const (
	FieldDefectCategory = "defectCategory"
	FieldDefectStatus   = "defectStatus"
	FieldCountermeasure = "countermeasure"
)

var (
	ErrNoSession        = errors.New("form: no open form session")
	ErrUnknownField     = errors.New("form: unknown field")
	ErrReadOnlyField    = errors.New("form: field is display-only")
	ErrFieldLocked      = errors.New("form: customer is fixed for domestic sales")
	ErrFieldDisabled    = errors.New("form: field requires the preceding defect field")
	ErrUnknownSalesType = errors.New("form: unknown sales type")
	ErrUnknownCategory  = errors.New("form: unknown defect category")
	ErrDefectIndex      = errors.New("form: defect index out of range")
	ErrSubmitInFlight   = errors.New("form: submission already in progress")
	ErrNotSubmittable   = errors.New("form: draft is not ready to submit")
)

// Mode is the form session state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeCreate
	ModeEdit
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeEdit:
		return "edit"
	default:
		return "idle"
	}
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock lets tests pin the creation defaults.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLocation sets the zone used for defaults and for normalizing fetched
// timestamps.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithValidator overrides the shared submission validator.
func WithValidator(v *Validator) Option {
	return func(m *Manager) {
		if v != nil {
			m.validator = v
		}
	}
}

var textFields = map[string]func(*inspection.Record) *string{
	FieldCustomer:        func(r *inspection.Record) *string { return &r.Customer },
	FieldProductionOrder: func(r *inspection.Record) *string { return &r.ProductionOrder },
	FieldDate:            func(r *inspection.Record) *string { return &r.Date },
	FieldTime:            func(r *inspection.Record) *string { return &r.Time },
	FieldOperator:        func(r *inspection.Record) *string { return &r.Operator },
	FieldDrawingVersion:  func(r *inspection.Record) *string { return &r.DrawingVersion },
	FieldInspector:       func(r *inspection.Record) *string { return &r.Inspector },
}

// Manager holds exactly one draft record.
type Manager struct {
	mode       Mode
	draft      inspection.Record
	orderValid bool
	busy       bool

	clock     func() time.Time
	loc       *time.Location
	validator *Validator
}

// NewManager returns an idle manager holding creation defaults.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		clock: time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.validator == nil {
		m.validator = defaultValidator()
	}
	m.reset()
	return m
}

func (m *Manager) defaults() inspection.Record {
	now := m.clock().In(m.loc)
	return inspection.Record{
		SalesType: inspection.SalesDomestic,
		Customer:  inspection.DomesticCustomer,
		Date:      now.Format(inspection.DateLayout),
		Time:      now.Format(inspection.TimeLayout),
		Defects:   []inspection.Defect{},
	}
}

func (m *Manager) reset() {
	m.mode = ModeIdle
	m.busy = false
	m.draft = m.defaults()
	m.orderValid = inspection.OrderNumberValid(m.draft.ProductionOrder)
}

// StartCreate opens a session on a fresh draft.
func (m *Manager) StartCreate() {
	m.reset()
	m.mode = ModeCreate
}

// StartEdit opens a session on a fetched record. The record is not
// validated; only dates, times and a missing defect list are normalized.
func (m *Manager) StartEdit(rec inspection.Record) {
	m.reset()
	draft := rec.Clone()
	draft.Date = inspection.NormalizeDate(draft.Date, m.loc)
	draft.Time = inspection.NormalizeTime(draft.Time, m.loc)
	if draft.Defects == nil {
		draft.Defects = []inspection.Defect{}
	}
	m.draft = draft
	m.orderValid = inspection.OrderNumberValid(draft.ProductionOrder)
	if draft.ID != "" {
		m.mode = ModeEdit
	} else {
		m.mode = ModeCreate
	}
}

// Cancel closes the session and drops the draft.
func (m *Manager) Cancel() {
	m.reset()
}

// Mode reports the current session state.
func (m *Manager) Mode() Mode { return m.mode }

// Busy reports whether a submission is outstanding.
func (m *Manager) Busy() bool { return m.busy }

// OrderValid reports whether the production order has the required length.
func (m *Manager) OrderValid() bool { return m.orderValid }

// Snapshot returns a copy of the draft for rendering.
func (m *Manager) Snapshot() inspection.Record {
	return m.draft.Clone()
}

// DefectCount returns the number of entries, complete or not.
func (m *Manager) DefectCount() int { return len(m.draft.Defects) }

// FieldEditable reports whether SetField would accept a write to name.
func (m *Manager) FieldEditable(name string) bool {
	if m.mode == ModeIdle || m.busy {
		return false
	}
	switch name {
	case FieldSalesType:
		return true
	case FieldCustomer:
		return m.draft.SalesType != inspection.SalesDomestic
	}
	_, ok := textFields[name]
	return ok
}

// DefectFieldEditable reports whether SetDefectField would accept a write.
func (m *Manager) DefectFieldEditable(index int, field string) bool {
	if m.mode == ModeIdle || m.busy || index < 0 || index >= len(m.draft.Defects) {
		return false
	}
	return defectFieldEnabled(m.draft.Defects[index], field)
}

func (m *Manager) checkWritable() error {
	if m.mode == ModeIdle {
		return ErrNoSession
	}
	if m.busy {
		return ErrSubmitInFlight
	}
	return nil
}

// SetField writes one top-level field.
func (m *Manager) SetField(name, value string) error {
	if err := m.checkWritable(); err != nil {
		return err
	}
	switch name {
	case FieldSalesType:
		return m.setSalesType(value)
	case FieldDepartment, FieldFirstPieceInspection:
		return fmt.Errorf("%w: %s", ErrReadOnlyField, name)
	case FieldCustomer:
		if m.draft.SalesType == inspection.SalesDomestic {
			return ErrFieldLocked
		}
	}
	field, ok := textFields[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	*field(&m.draft) = value
	if name == FieldProductionOrder {
		m.orderValid = inspection.OrderNumberValid(value)
	}
	return nil
}

func (m *Manager) setSalesType(value string) error {
	st, ok := inspection.ParseSalesType(value)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSalesType, value)
	}
	m.draft.SalesType = st
	m.draft.Customer = salesTypeRules[st](m.draft.Customer)
	return nil
}

// AddDefect appends an empty entry.
func (m *Manager) AddDefect() {
	if m.checkWritable() != nil {
		return
	}
	m.draft.Defects = append(m.draft.Defects, inspection.Defect{})
}

// RemoveDefect drops the entry at index; out-of-range indexes are ignored.
func (m *Manager) RemoveDefect(index int) {
	if m.checkWritable() != nil {
		return
	}
	if index < 0 || index >= len(m.draft.Defects) {
		return
	}
	m.draft.Defects = append(m.draft.Defects[:index], m.draft.Defects[index+1:]...)
}

// SetDefectField writes one field of the entry at index and clears the
// fields that depend on it.
func (m *Manager) SetDefectField(index int, field, value string) error {
	if err := m.checkWritable(); err != nil {
		return err
	}
	if index < 0 || index >= len(m.draft.Defects) {
		return fmt.Errorf("%w: %d", ErrDefectIndex, index)
	}
	updated, err := applyDefectWrite(m.draft.Defects[index], field, value)
	if err != nil {
		return fmt.Errorf("defects[%d].%s: %w", index, field, err)
	}
	m.draft.Defects[index] = updated
	return nil
}

// SubmissionPayload returns the draft as it should be sent: entries without
// a category are dropped and display-only fields are stripped.
func (m *Manager) SubmissionPayload() inspection.Record {
	payload := m.draft.Clone()
	payload.Department = ""
	payload.FirstPieceInspection = ""
	kept := make([]inspection.Defect, 0, len(payload.Defects))
	for _, d := range payload.Defects {
		if d.HasCategory() {
			kept = append(kept, d)
		}
	}
	payload.Defects = kept
	return payload
}

// Validate returns inline messages for every field that blocks submission.
func (m *Manager) Validate() Issues {
	if m.mode == ModeIdle {
		return nil
	}
	return m.validator.Check(m.draft)
}

// Submittable reports whether the draft passes the submission policy.
func (m *Manager) Submittable() bool {
	return m.mode != ModeIdle && len(m.Validate()) == 0
}

// BeginSubmit marks the draft busy and returns the payload to send.
func (m *Manager) BeginSubmit() (inspection.Record, error) {
	if m.mode == ModeIdle {
		return inspection.Record{}, ErrNoSession
	}
	if m.busy {
		return inspection.Record{}, ErrSubmitInFlight
	}
	if issues := m.Validate(); len(issues) > 0 {
		return inspection.Record{}, fmt.Errorf("%w: %s", ErrNotSubmittable, issues)
	}
	m.busy = true
	return m.SubmissionPayload(), nil
}

// FinishSubmit records the outcome of the request started by BeginSubmit.
// Success closes the session; failure keeps the draft for a retry.
func (m *Manager) FinishSubmit(err error) {
	if !m.busy {
		return
	}
	if err != nil {
		m.busy = false
		return
	}
	m.reset()
}
