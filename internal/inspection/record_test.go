package inspection

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestOrderNumberValidCountsUTF16Units(t *testing.T) {
	cases := []struct {
		name  string
		order string
		want  bool
	}{
		{name: "empty", order: "", want: false},
		{name: "fifteen", order: strings.Repeat("A", 15), want: false},
		{name: "sixteen", order: "MO20261018000001", want: true},
		{name: "seventeen", order: strings.Repeat("9", 17), want: false},
		{name: "sixteen cjk", order: strings.Repeat("製", 16), want: true},
		{name: "mixed cjk", order: "製令" + strings.Repeat("0", 14), want: true},
		{name: "astral counts twice", order: "𠀀" + strings.Repeat("0", 14), want: true},
		{name: "astral overflows", order: "𠀀" + strings.Repeat("0", 15), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OrderNumberValid(tc.order); got != tc.want {
				t.Fatalf("OrderNumberValid(%q) = %v, want %v (units=%d)", tc.order, got, tc.want, UnitLength(tc.order))
			}
		})
	}
}

func TestRecordDecodesLenientFields(t *testing.T) {
	payload := `{
		"_id": "665f1c",
		"salesType": "外銷",
		"customer": "ACME",
		"productionOrder": "MO20261018000001",
		"date": "2026-10-18T00:00:00.000Z",
		"time": "08:30",
		"department": 12,
		"firstPieceInspection": true
	}`
	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.SalesType != SalesExport {
		t.Fatalf("sales type = %q, want export", rec.SalesType)
	}
	if rec.Department != "12" {
		t.Fatalf("department = %q, want 12", rec.Department)
	}
	if got := rec.FirstPieceInspection.Display(); got != "是" {
		t.Fatalf("first piece display = %q, want 是", got)
	}
	if rec.Defects != nil {
		t.Fatalf("expected absent defects to decode as nil, got %v", rec.Defects)
	}
}

func TestRecordEncodingOmitsDisplayOnlyFields(t *testing.T) {
	rec := Record{SalesType: SalesDomestic, Customer: DomesticCustomer, Defects: []Defect{}}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)
	for _, key := range []string{"_id", "department", "firstPieceInspection"} {
		if strings.Contains(body, key) {
			t.Fatalf("expected %s to be omitted: %s", key, body)
		}
	}
	if !strings.Contains(body, `"defects":[]`) {
		t.Fatalf("expected empty defects array, got %s", body)
	}
}

func TestCloneDoesNotShareDefects(t *testing.T) {
	rec := Record{Defects: []Defect{{Category: CategoryAppearanceNG}}}
	clone := rec.Clone()
	clone.Defects[0].Category = CategoryDimensionNG
	if rec.Defects[0].Category != CategoryAppearanceNG {
		t.Fatalf("clone mutated original defects")
	}
}

func TestNormalizeDateAndTime(t *testing.T) {
	taipei := time.FixedZone("CST", 8*3600)
	cases := []struct {
		raw      string
		wantDate string
		wantTime string
	}{
		{raw: "2026-10-17T16:30:00.000Z", wantDate: "2026-10-18", wantTime: "00:30"},
		{raw: "2026-10-18", wantDate: "2026-10-18", wantTime: "2026-10-18"},
		{raw: "2026/1/5", wantDate: "2026-01-05", wantTime: "2026/1/5"},
		{raw: "08:05:59", wantDate: "08:05:59", wantTime: "08:05"},
		{raw: "not a date", wantDate: "not a date", wantTime: "not a date"},
		{raw: "", wantDate: "", wantTime: ""},
	}
	for _, tc := range cases {
		if got := NormalizeDate(tc.raw, taipei); got != tc.wantDate {
			t.Fatalf("NormalizeDate(%q) = %q, want %q", tc.raw, got, tc.wantDate)
		}
		if got := NormalizeTime(tc.raw, taipei); got != tc.wantTime {
			t.Fatalf("NormalizeTime(%q) = %q, want %q", tc.raw, got, tc.wantTime)
		}
	}
}

func TestDisplayDate(t *testing.T) {
	if got := DisplayDate("2026-10-18"); got != "2026/10/18" {
		t.Fatalf("DisplayDate = %q", got)
	}
	if got := DisplayDate("garbage"); got != "garbage" {
		t.Fatalf("DisplayDate should pass through unparseable values, got %q", got)
	}
}

func TestDefectCountIgnoresUncategorized(t *testing.T) {
	rec := Record{Defects: []Defect{{}, {Category: CategoryAppearanceNG}}}
	if got := rec.DefectCount(); got != 1 {
		t.Fatalf("DefectCount = %d, want 1", got)
	}
}
