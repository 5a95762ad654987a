package stubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/qc-desk/internal/inspection"
)

func startTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	srv := NewServer(Settings{Host: "127.0.0.1", Port: 0, MaxBodyBytes: 1024}, opts...)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	return srv
}

func TestServerHealth(t *testing.T) {
	t.Parallel()
	srv := startTestServer(t)
	resp, err := http.Get(srv.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", resp.StatusCode)
	}
	if srv.Status() != StatusReady {
		t.Fatalf("status = %s, want ready", srv.Status())
	}
}

func TestServerCreateAssignsIDAndDepartment(t *testing.T) {
	t.Parallel()
	srv := startTestServer(t, WithIDGenerator(func() string { return "rec-1" }))
	body := `{"salesType":"domestic","customer":"大井","productionOrder":"MO20261018000001"}`
	resp, err := http.Post(srv.BaseURL()+DefaultItemsPath, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created inspection.Record
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID != "rec-1" {
		t.Fatalf("id = %q, want rec-1", created.ID)
	}
	if created.Department != DefaultDepartment {
		t.Fatalf("department = %q, want %q", created.Department, DefaultDepartment)
	}
	if created.Defects == nil {
		t.Fatalf("expected defects to be normalized to an empty list")
	}
	if got := len(srv.Records()); got != 1 {
		t.Fatalf("records = %d, want 1", got)
	}
}

func TestServerUpdateKeepsBackendFields(t *testing.T) {
	t.Parallel()
	srv := startTestServer(t, WithRecords(inspection.Record{
		ID:                   "r1",
		Operator:             "old",
		Department:           "製造一課",
		FirstPieceInspection: "true",
	}))
	req, err := http.NewRequest(http.MethodPut, srv.BaseURL()+DefaultItemsPath+"/r1", strings.NewReader(`{"operator":"new","department":"hacked"}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := srv.Records()[0]
	if got.Operator != "new" || got.Department != "製造一課" || got.FirstPieceInspection != "true" {
		t.Fatalf("unexpected record after update: %#v", got)
	}
}

func TestServerDeleteUnknownReturnsNotFound(t *testing.T) {
	t.Parallel()
	srv := startTestServer(t)
	req, err := http.NewRequest(http.MethodDelete, srv.BaseURL()+DefaultItemsPath+"/missing", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestServerEnforcesPayloadLimit(t *testing.T) {
	t.Parallel()
	srv := startTestServer(t)
	payload := map[string]any{"operator": string(bytes.Repeat([]byte("a"), 4096))}
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(srv.BaseURL()+DefaultItemsPath, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestSettingsNormalize(t *testing.T) {
	s := Settings{Port: 70000, ItemsPath: "records/"}
	s.normalize()
	if s.Port != DefaultPort {
		t.Fatalf("port = %d, want default", s.Port)
	}
	if s.ItemsPath != "/records" {
		t.Fatalf("items path = %q, want /records", s.ItemsPath)
	}
	if s.Host != DefaultHost {
		t.Fatalf("host = %q, want %q", s.Host, DefaultHost)
	}
}

func TestLoadSeedAcceptsServiceShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	body := `[{"_id":"64f0c0ffee","salesType":"外銷","customer":"ACME","productionOrder":"MO20240502000002",
	"date":"2024-05-02","time":"08:15","operator":"林","drawingVersion":"C","inspector":"黃",
	"firstPieceInspection":true,"defects":[{"defectCategory":"尺寸NG","defectStatus":"偏大","countermeasure":""}]}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	records, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(records) != 1 || records[0].SalesType != inspection.SalesExport {
		t.Fatalf("unexpected seed %+v", records)
	}
	srv := startTestServer(t, WithRecords(records...))
	stored := srv.Records()
	if stored[0].ID != "64f0c0ffee" || stored[0].FirstPieceInspection.Display() != "是" {
		t.Fatalf("seed not preserved: %+v", stored[0])
	}
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing seed")
	}
}
