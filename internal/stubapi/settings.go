package stubapi

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/qc-desk/internal/inspection"
)

const (
	// DefaultHost is the loopback interface used when no host override is provided.
	DefaultHost = "127.0.0.1"
	// DefaultPort matches the port the real service listens on in development.
	DefaultPort = 5000
	// DefaultItemsPath is the collection route.
	DefaultItemsPath = "/api/items"
	// DefaultDepartment is stamped on created records.
	DefaultDepartment = "品保課"
	// DefaultMaxBodyBytes limits request payloads to 1 MB.
	DefaultMaxBodyBytes int64 = 1 << 20
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Settings captures runtime configuration for the stub server. Port 0 binds
// an ephemeral port.
type Settings struct {
	Host         string
	Port         int
	ItemsPath    string
	Department   string
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultSettings returns loopback settings on DefaultPort.
func DefaultSettings() Settings {
	s := Settings{Port: DefaultPort}
	s.normalize()
	return s
}

func (s *Settings) normalize() {
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port < 0 || s.Port > 65535 {
		s.Port = DefaultPort
	}
	s.ItemsPath = "/" + strings.Trim(strings.TrimSpace(s.ItemsPath), "/")
	if s.ItemsPath == "/" {
		s.ItemsPath = DefaultItemsPath
	}
	if strings.TrimSpace(s.Department) == "" {
		s.Department = DefaultDepartment
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

// LoadSeed reads a JSON array of records, in the same shape the items
// endpoint returns, for seeding the collection.
func LoadSeed(path string) ([]inspection.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stubapi: read seed %s: %w", path, err)
	}
	var records []inspection.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("stubapi: parse seed %s: %w", path, err)
	}
	return records, nil
}
