package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadProjectConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	qcDir := filepath.Join(projectDir, QCDir)
	if err := os.MkdirAll(qcDir, 0755); err != nil {
		t.Fatal(err)
	}
	c := &Config{ProjectDir: projectDir, QCProjectDir: qcDir, Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.Project.API.BaseURL != defaultBaseURL {
		t.Fatalf("expected default base url %q, got %q", defaultBaseURL, c.Project.API.BaseURL)
	}
	if c.Project.API.Timeout != defaultTimeout {
		t.Fatalf("expected default timeout %s, got %s", defaultTimeout, c.Project.API.Timeout)
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	qcDir := filepath.Join(projectDir, QCDir)
	if err := os.MkdirAll(qcDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
api:
  base_url: http://qc.internal:8080/
  items_path: records/
  timeout: 3s
display:
  timezone: UTC
export:
  dir: /tmp/qc-exports
  csv_encoding: BIG5
stub:
  port: 5100
  department: 製造課
`)
	if err := os.WriteFile(filepath.Join(qcDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c := &Config{ProjectDir: projectDir, QCProjectDir: qcDir, Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.Project.API.BaseURL != "http://qc.internal:8080" {
		t.Fatalf("base url not normalized: %q", c.Project.API.BaseURL)
	}
	if c.Project.API.ItemsPath != "/records" {
		t.Fatalf("items path not normalized: %q", c.Project.API.ItemsPath)
	}
	if c.Project.API.Timeout != 3*time.Second {
		t.Fatalf("timeout = %s", c.Project.API.Timeout)
	}
	if c.Project.Export.CSVEncoding != "big5" {
		t.Fatalf("csv encoding = %q", c.Project.Export.CSVEncoding)
	}
	if c.ExportDir() != "/tmp/qc-exports" {
		t.Fatalf("export dir = %q", c.ExportDir())
	}
	if c.Project.Stub.Host != defaultStubHost || c.Project.Stub.Port != 5100 {
		t.Fatalf("unexpected stub config %+v", c.Project.Stub)
	}
	if c.Project.Stub.Department != "製造課" {
		t.Fatalf("department = %q", c.Project.Stub.Department)
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	cases := map[string]string{
		"scheme":   "api:\n  base_url: ftp://example.com\n",
		"encoding": "export:\n  csv_encoding: shift-jis\n",
		"port":     "stub:\n  port: 70000\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			projectDir := t.TempDir()
			qcDir := filepath.Join(projectDir, QCDir)
			if err := os.MkdirAll(qcDir, 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(qcDir, "config.yaml"), []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			c := &Config{ProjectDir: projectDir, QCProjectDir: qcDir, Project: defaultProjectConfig()}
			if err := c.loadProjectConfig(); err == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}
}

func TestInitDirWritesDefaultConfig(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir: %v", err)
	}
	for _, rel := range []string{"config.yaml", "logs", "exports"} {
		if _, err := os.Stat(filepath.Join(projectDir, QCDir, rel)); err != nil {
			t.Fatalf("expected %s to exist: %v", rel, err)
		}
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig on default config: %v", err)
	}
	if cfg.Location().String() != defaultTimezone {
		t.Fatalf("location = %s", cfg.Location())
	}
	if cfg.JourneyLogPath() != filepath.Join(projectDir, QCDir, "logs", "journey.log") {
		t.Fatalf("journey log path = %s", cfg.JourneyLogPath())
	}
}

func TestInitDirKeepsExistingConfig(t *testing.T) {
	projectDir := t.TempDir()
	qcDir := filepath.Join(projectDir, QCDir)
	if err := os.MkdirAll(qcDir, 0755); err != nil {
		t.Fatal(err)
	}
	custom := "version: 1\nstub:\n  port: 5200\n"
	path := filepath.Join(qcDir, "config.yaml")
	if err := os.WriteFile(path, []byte(custom), 0644); err != nil {
		t.Fatal(err)
	}
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != custom {
		t.Fatalf("InitDir overwrote config: %q", data)
	}
}

func TestNewConfigEnvOverrides(t *testing.T) {
	projectDir := t.TempDir()
	t.Setenv(EnvAPIURL, "https://qc.example.com/")
	t.Setenv(EnvAPITimeout, "2500ms")
	t.Setenv(EnvTimezone, "UTC")
	t.Setenv(EnvStubPort, "5300")
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Project.API.BaseURL != "https://qc.example.com" {
		t.Fatalf("base url = %q", cfg.Project.API.BaseURL)
	}
	if cfg.Project.API.Timeout != 2500*time.Millisecond {
		t.Fatalf("timeout = %s", cfg.Project.API.Timeout)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("location = %s", cfg.Location())
	}
	if cfg.Project.Stub.Port != 5300 {
		t.Fatalf("stub port = %d", cfg.Project.Stub.Port)
	}
}

func TestNewConfigIgnoresMalformedEnvValues(t *testing.T) {
	t.Setenv(EnvAPITimeout, "soon")
	t.Setenv(EnvStubPort, "not-a-port")
	cfg, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Project.API.Timeout != defaultTimeout {
		t.Fatalf("timeout = %s", cfg.Project.API.Timeout)
	}
	if cfg.Project.Stub.Port != defaultStubPort {
		t.Fatalf("stub port = %d", cfg.Project.Stub.Port)
	}
}

func TestNewConfigRejectsUnknownTimezone(t *testing.T) {
	t.Setenv(EnvTimezone, "Mars/Olympus")
	if _, err := NewConfig(t.TempDir()); err == nil {
		t.Fatalf("expected timezone error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	projectDir := t.TempDir()
	if err := LoadDotEnv(projectDir); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
	t.Setenv(EnvAPIURL, "")
	os.Unsetenv(EnvAPIURL)
	env := EnvAPIURL + "=http://dotenv.local:5000\n"
	if err := os.WriteFile(filepath.Join(projectDir, ".env"), []byte(env), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(projectDir); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Project.API.BaseURL != "http://dotenv.local:5000" {
		t.Fatalf("base url = %q", cfg.Project.API.BaseURL)
	}
}
