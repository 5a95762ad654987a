// internal/config/config.go
//
// This package handles configuration and the .qcdesk directory structure.
// Every directory qcdesk runs in gets a .qcdesk/ folder holding the config
// file, logs and exports.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// QCDir is the name of the directory we create in each project
	QCDir = ".qcdesk"

	defaultBaseURL     = "http://localhost:5000"
	defaultItemsPath   = "/api/items"
	defaultTimeout     = 10 * time.Second
	defaultTimezone    = "Asia/Taipei"
	defaultExportDir   = "exports"
	defaultCSVEncoding = "utf-8"
	defaultStubHost    = "127.0.0.1"
	defaultStubPort    = 5000
)

// Environment overrides, applied after the config file.
const (
	EnvAPIURL     = "QCDESK_API_URL"
	EnvAPITimeout = "QCDESK_API_TIMEOUT"
	EnvTimezone   = "QCDESK_TIMEZONE"
	EnvStubPort   = "QCDESK_STUB_PORT"
)

const defaultProjectConfigYAML = `# qcdesk configuration
version: 1

# Inspection record service. QCDESK_API_URL overrides base_url.
api:
  base_url: http://localhost:5000
  items_path: /api/items
  timeout: 10s

# Zone used for creation defaults and for normalizing fetched timestamps.
display:
  timezone: Asia/Taipei

# csv_encoding: utf-8 or big5
export:
  dir: exports
  csv_encoding: utf-8

# In-memory service started by "qcdesk stub".
stub:
  host: 127.0.0.1
  port: 5000
`

// APIConfig locates the REST service.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	ItemsPath string        `yaml:"items_path"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DisplayConfig controls date/time rendering.
type DisplayConfig struct {
	Timezone string `yaml:"timezone"`
}

// ExportConfig controls list exports.
type ExportConfig struct {
	Dir         string `yaml:"dir"`
	CSVEncoding string `yaml:"csv_encoding"`
}

// StubConfig controls the development stub server.
type StubConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Department string `yaml:"department,omitempty"`
}

// ProjectConfig models .qcdesk/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	API     APIConfig     `yaml:"api"`
	Display DisplayConfig `yaml:"display"`
	Export  ExportConfig  `yaml:"export"`
	Stub    StubConfig    `yaml:"stub"`
}

// Config holds the runtime configuration for qcdesk.
type Config struct {
	// ProjectDir is the directory where the user ran `qcdesk` from
	ProjectDir string

	// QCProjectDir is ProjectDir/.qcdesk
	QCProjectDir string

	Project ProjectConfig

	location *time.Location
}

// InitDir creates the .qcdesk directory structure in the given project directory.
//
// Structure created:
// .qcdesk/
// ├── config.yaml
// ├── logs/       <- journey.log (TUI) and qcdesk.log (headless commands)
// └── exports/    <- default export destination
func InitDir(projectDir string) error {
	qcDir := filepath.Join(projectDir, QCDir)
	dirs := []string{
		filepath.Join(qcDir, "logs"),
		filepath.Join(qcDir, defaultExportDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(qcDir, "config.yaml"))
}

// LoadDotEnv loads ProjectDir/.env into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(projectDir string) error {
	path := filepath.Join(projectDir, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// NewConfig creates a new Config instance populated with project settings
// and environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:   projectDir,
		QCProjectDir: filepath.Join(projectDir, QCDir),
		Project:      defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.Project.applyEnvOverrides()
	cfg.Project.normalize()
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Project.Display.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: display.timezone %q: %w", cfg.Project.Display.Timezone, err)
	}
	cfg.location = loc
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.QCProjectDir, "logs")
}

// JourneyLogPath is the logbook shown in the TUI log panel.
func (c *Config) JourneyLogPath() string {
	return filepath.Join(c.LogsDir(), "journey.log")
}

// ExportDir returns the resolved export directory.
func (c *Config) ExportDir() string {
	return resolvePath(c.QCProjectDir, c.Project.Export.Dir)
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.QCProjectDir, "config.yaml")
}

// Location returns the display time zone.
func (c *Config) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.Local
	}
	return c.location
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.API.BaseURL) == "" {
		pc.API.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(pc.API.ItemsPath) == "" {
		pc.API.ItemsPath = defaultItemsPath
	}
	if pc.API.Timeout == 0 {
		pc.API.Timeout = defaultTimeout
	}
	if strings.TrimSpace(pc.Display.Timezone) == "" {
		pc.Display.Timezone = defaultTimezone
	}
	if strings.TrimSpace(pc.Export.Dir) == "" {
		pc.Export.Dir = defaultExportDir
	}
	if strings.TrimSpace(pc.Export.CSVEncoding) == "" {
		pc.Export.CSVEncoding = defaultCSVEncoding
	}
	if strings.TrimSpace(pc.Stub.Host) == "" {
		pc.Stub.Host = defaultStubHost
	}
	if pc.Stub.Port == 0 {
		pc.Stub.Port = defaultStubPort
	}
}

func (pc *ProjectConfig) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv(EnvAPIURL)); value != "" {
		pc.API.BaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv(EnvAPITimeout)); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			pc.API.Timeout = d
		}
	}
	if value := strings.TrimSpace(os.Getenv(EnvTimezone)); value != "" {
		pc.Display.Timezone = value
	}
	if value := strings.TrimSpace(os.Getenv(EnvStubPort)); value != "" {
		if port, err := strconv.Atoi(value); err == nil && isValidPort(port) {
			pc.Stub.Port = port
		}
	}
}

func (pc *ProjectConfig) normalize() {
	pc.API.BaseURL = strings.TrimRight(strings.TrimSpace(pc.API.BaseURL), "/")
	pc.API.ItemsPath = "/" + strings.Trim(strings.TrimSpace(pc.API.ItemsPath), "/")
	pc.Display.Timezone = strings.TrimSpace(pc.Display.Timezone)
	pc.Export.Dir = strings.TrimSpace(pc.Export.Dir)
	pc.Export.CSVEncoding = strings.ToLower(strings.TrimSpace(pc.Export.CSVEncoding))
	pc.Stub.Host = strings.TrimSpace(pc.Stub.Host)
	pc.Stub.Department = strings.TrimSpace(pc.Stub.Department)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	parsed, err := url.Parse(pc.API.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", pc.API.BaseURL)
	}
	if pc.API.ItemsPath == "/" {
		return fmt.Errorf("api.items_path is required")
	}
	if pc.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	switch pc.Export.CSVEncoding {
	case "utf-8", "utf8", "big5":
	default:
		return fmt.Errorf("export.csv_encoding must be 'utf-8' or 'big5'")
	}
	if !isValidPort(pc.Stub.Port) {
		return fmt.Errorf("stub.port must be between 1 and 65535")
	}
	return nil
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return base
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}
