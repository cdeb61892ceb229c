// Package config provides configuration loading and management for the flight data server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flightops/flight-data-server/internal/kwargs"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/telemetry"
)

const (
	// StorageTypeMemory keeps all records in process, optionally snapshotted to disk
	StorageTypeMemory = "memory"

	// StorageTypeDatabase keeps all records in PostgreSQL
	StorageTypeDatabase = "database"
)

const (
	// DuplicatesReject refuses a second event in an occupied (flight, code, kind) slot
	DuplicatesReject = "reject"

	// DuplicatesLowestID accepts duplicates and derives durations from the lowest event id
	DuplicatesLowestID = "lowest-id"
)

// PasswordEnvVar is consulted for the database password when no password file is set
const PasswordEnvVar = "FLIGHTD_DATABASE_PASSWORD"

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; this also cleans the path
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// ServerName identifies this instance in logs and telemetry
	ServerName string `yaml:"serverName,omitempty"`

	Storage     StorageConfig     `yaml:"storage"`
	Database    *DatabaseConfig   `yaml:"database,omitempty"`
	PhasePolicy PhasePolicyConfig `yaml:"phasePolicy,omitempty"`
	Seed        *SeedConfig       `yaml:"seed,omitempty"`
	Providers   []ProviderConfig  `yaml:"providers,omitempty"`
	Telemetry   *telemetry.Config `yaml:"telemetry,omitempty"`
}

// StorageConfig selects the record store backend
type StorageConfig struct {
	// Type is either "memory" (default) or "database"
	Type string `yaml:"type,omitempty"`

	// SnapshotPath makes the memory store persist its state to this file
	SnapshotPath string `yaml:"snapshotPath,omitempty"`
}

// PhasePolicyConfig decides how the phase engine treats ambiguous event data
type PhasePolicyConfig struct {
	// Duplicates is "reject" (default) or "lowest-id"
	Duplicates string `yaml:"duplicates,omitempty"`

	// AllowNegative keeps durations whose end precedes their start.
	// Defaults to true.
	AllowNegative *bool `yaml:"allowNegative,omitempty"`
}

// GetDuplicates returns the duplicate policy, using "reject" if not specified
func (p *PhasePolicyConfig) GetDuplicates() string {
	if p.Duplicates == "" {
		return DuplicatesReject
	}
	return p.Duplicates
}

// GetAllowNegative returns whether negative durations are kept
func (p *PhasePolicyConfig) GetAllowNegative() bool {
	return p.AllowNegative == nil || *p.AllowNegative
}

// SeedConfig lists the reference data created at startup when missing
type SeedConfig struct {
	EventCodes []EventCodeConfig `yaml:"eventCodes,omitempty"`
	Phases     []PhaseConfig     `yaml:"phases,omitempty"`
}

// EventCodeConfig seeds one event code
type EventCodeConfig struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Sequence    int    `yaml:"sequence,omitempty"`
}

// PhaseConfig seeds one phase. Start and End name event codes.
type PhaseConfig struct {
	Name     string `yaml:"name"`
	Sequence int    `yaml:"sequence,omitempty"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
}

// ProviderConfig seeds one sync provider with its schedules
type ProviderConfig struct {
	Name         string           `yaml:"name"`
	Service      string           `yaml:"service"`
	Active       *bool            `yaml:"active,omitempty"`
	APIBase      string           `yaml:"apiBase,omitempty"`
	Username     string           `yaml:"username,omitempty"`
	PasswordFile string           `yaml:"passwordFile,omitempty"`
	RunAs        string           `yaml:"runAs,omitempty"`
	Schedules    []ScheduleConfig `yaml:"schedules,omitempty"`
}

// IsActive returns whether the provider is active, defaulting to true
func (p *ProviderConfig) IsActive() bool {
	return p.Active == nil || *p.Active
}

// GetPassword reads the provider password file, if any
func (p *ProviderConfig) GetPassword() (string, error) {
	if p.PasswordFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(filepath.Clean(p.PasswordFile))
	if err != nil {
		return "", fmt.Errorf("failed to read password from file %s: %w", p.PasswordFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ScheduleConfig seeds one schedule
type ScheduleConfig struct {
	Name           string `yaml:"name"`
	Model          string `yaml:"model"`
	Active         *bool  `yaml:"active,omitempty"`
	IntervalNumber int    `yaml:"intervalNumber,omitempty"`
	IntervalType   string `yaml:"intervalType,omitempty"`
	Kwargs         string `yaml:"kwargs,omitempty"`
}

// ToModel converts the seed entry to a schedule record with defaults applied
func (s *ScheduleConfig) ToModel(providerID int64) models.Schedule {
	sched := models.Schedule{
		ProviderID:     providerID,
		Name:           s.Name,
		Model:          s.Model,
		Active:         s.Active == nil || *s.Active,
		IntervalNumber: s.IntervalNumber,
		IntervalType:   models.IntervalType(s.IntervalType),
		Kwargs:         s.Kwargs,
	}
	sched.ApplyDefaults()
	return sched
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of idle connections kept in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from FLIGHTD_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(PasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", PasswordEnvVar,
	)
}

// GetConnectionString builds a PostgreSQL connection URL.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML document
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when no file is given:
// a memory store without seed data.
func Default() *Config {
	return &Config{Storage: StorageConfig{Type: StorageTypeMemory}}
}

// GetServerName returns the server name, using "flightd" if not specified
func (c *Config) GetServerName() string {
	if c.ServerName == "" {
		return "flightd"
	}
	return c.ServerName
}

// GetStorageType returns the storage type, using "memory" if not specified
func (c *Config) GetStorageType() string {
	if c.Storage.Type == "" {
		return StorageTypeMemory
	}
	return c.Storage.Type
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	switch c.GetStorageType() {
	case StorageTypeMemory:
	case StorageTypeDatabase:
		if c.Database == nil {
			return fmt.Errorf("storage.type %q requires a database section", StorageTypeDatabase)
		}
		if err := c.Database.validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	default:
		return fmt.Errorf("storage.type must be %q or %q, got %q",
			StorageTypeMemory, StorageTypeDatabase, c.Storage.Type)
	}

	switch c.PhasePolicy.GetDuplicates() {
	case DuplicatesReject, DuplicatesLowestID:
	default:
		return fmt.Errorf("phasePolicy.duplicates must be %q or %q, got %q",
			DuplicatesReject, DuplicatesLowestID, c.PhasePolicy.Duplicates)
	}

	if err := c.Seed.validate(); err != nil {
		return err
	}

	providerNames := make(map[string]bool)
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if providerNames[p.Name] {
			return fmt.Errorf("providers[%d]: duplicate provider name '%s'", i, p.Name)
		}
		providerNames[p.Name] = true

		if err := p.validate(fmt.Sprintf("providers[%d] (%s)", i, p.Name)); err != nil {
			return err
		}
	}

	return c.Telemetry.Validate()
}

func (d *DatabaseConfig) validate() error {
	var errs []error
	if d.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if d.Port == 0 {
		errs = append(errs, errors.New("port is required"))
	}
	if d.User == "" {
		errs = append(errs, errors.New("user is required"))
	}
	if d.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	return errors.Join(errs...)
}

func (s *SeedConfig) validate() error {
	if s == nil {
		return nil
	}

	codes := make(map[string]bool)
	for i, c := range s.EventCodes {
		if c.Code == "" {
			return fmt.Errorf("seed.eventCodes[%d]: code is required", i)
		}
		if codes[c.Code] {
			return fmt.Errorf("seed.eventCodes[%d]: duplicate code '%s'", i, c.Code)
		}
		codes[c.Code] = true
	}

	for i, p := range s.Phases {
		if p.Name == "" {
			return fmt.Errorf("seed.phases[%d]: name is required", i)
		}
		if !codes[p.Start] {
			return fmt.Errorf("seed.phases[%d] (%s): unknown start code '%s'", i, p.Name, p.Start)
		}
		if !codes[p.End] {
			return fmt.Errorf("seed.phases[%d] (%s): unknown end code '%s'", i, p.Name, p.End)
		}
	}
	return nil
}

func (p *ProviderConfig) validate(prefix string) error {
	if p.Service == "" {
		return fmt.Errorf("%s: service is required", prefix)
	}
	for j := range p.Schedules {
		s := p.Schedules[j].ToModel(1)
		schedPrefix := fmt.Sprintf("%s: schedules[%d]", prefix, j)
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%s: %w", schedPrefix, err)
		}
		if err := kwargs.Validate(s.Kwargs); err != nil {
			return fmt.Errorf("%s: %w", schedPrefix, err)
		}
	}
	return nil
}
