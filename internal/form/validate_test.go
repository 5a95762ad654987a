package form

import (
	"strings"
	"testing"

	"github.com/kingrea/qc-desk/internal/inspection"
)

func TestValidatorMessages(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	issues := v.Check(inspection.Record{
		SalesType:       inspection.SalesExport,
		Customer:        "   ",
		ProductionOrder: "MO123",
	})
	for _, field := range []string{FieldCustomer, FieldProductionOrder, FieldOperator, FieldDrawingVersion, FieldInspector} {
		if _, ok := issues[field]; !ok {
			t.Fatalf("expected issue for %s, got %s", field, issues)
		}
	}
	if msg := issues[FieldProductionOrder]; !strings.Contains(msg, "製令單號") || !strings.Contains(msg, "16") {
		t.Fatalf("order message = %q", msg)
	}
	if msg := issues[FieldOperator]; !strings.Contains(msg, "作業員") {
		t.Fatalf("operator message = %q", msg)
	}
}

func TestValidatorDomesticNeedsNoCustomerInput(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	issues := v.Check(inspection.Record{
		SalesType:       inspection.SalesDomestic,
		Customer:        inspection.DomesticCustomer,
		ProductionOrder: strings.Repeat("7", 16),
		Operator:        "a",
		DrawingVersion:  "b",
		Inspector:       "c",
	})
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %s", issues)
	}
}

func TestValidatorRejectsUnknownSalesType(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	issues := v.Check(inspection.Record{
		SalesType:       "consignment",
		ProductionOrder: strings.Repeat("7", 16),
		Operator:        "a",
		DrawingVersion:  "b",
		Inspector:       "c",
	})
	if _, ok := issues[FieldSalesType]; !ok {
		t.Fatalf("expected salesType issue, got %s", issues)
	}
}
