package atomq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/atomq/progress"
	"github.com/viant/atomq/service/consumer"
	"github.com/viant/atomq/service/messaging"
	"github.com/viant/atomq/service/meta"
	"github.com/viant/atomq/service/registry"
	"github.com/viant/atomq/service/schedule"
	"github.com/viant/atomq/service/statusset"
)

// Config is a serialisable representation of the engine configuration. It can
// be populated from YAML or JSON; LoadConfig starts from DefaultConfig so that
// omitted fields keep their defaults.
type Config struct {
	Queue     QueueConfig     `json:"queue" yaml:"queue"`
	Listener  ListenerConfig  `json:"listener" yaml:"listener"`
	StatusSet StatusSetConfig `json:"statusSet" yaml:"statusSet"`
	Recorder  RecorderConfig  `json:"recorder" yaml:"recorder"`
	Plan      PlanConfig      `json:"plan" yaml:"plan"`
	Schedule  ScheduleConfig  `json:"schedule" yaml:"schedule"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing"`
}

// QueueConfig configures the job queue and the active queues
type QueueConfig struct {
	Root           string           `json:"root" yaml:"root"`
	Vendor         messaging.Vendor `json:"vendor" yaml:"vendor"`
	BasePath       string           `json:"basePath,omitempty" yaml:"basePath,omitempty"`
	JobWorkers     int              `json:"jobWorkers" yaml:"jobWorkers"`
	ActiveWorkers  int              `json:"activeWorkers" yaml:"activeWorkers"`
	PauseOnFailure bool             `json:"pauseOnFailure" yaml:"pauseOnFailure"`
	PollInterval   time.Duration    `json:"pollInterval" yaml:"pollInterval"`
}

// ListenerConfig configures child progress aggregation
type ListenerConfig struct {
	// CompletePercent is the share of the owner's progress covered by its children
	CompletePercent float64 `json:"completePercent" yaml:"completePercent"`
}

// StatusSetConfig configures where the latest bean snapshots are kept
type StatusSetConfig struct {
	Vendor  messaging.Vendor `json:"vendor" yaml:"vendor"`
	BaseURL string           `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	// DSN names the SQLite database for the sqlite vendor
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// RecorderConfig configures monitor output files
type RecorderConfig struct {
	BaseURL      string `json:"baseURL" yaml:"baseURL"`
	RunDirectory string `json:"runDirectory,omitempty" yaml:"runDirectory,omitempty"`
}

// PlanConfig configures plan document lookup
type PlanConfig struct {
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

// ScheduleConfig lists plans submitted on cron schedules
type ScheduleConfig struct {
	CheckInterval time.Duration    `json:"checkInterval,omitempty" yaml:"checkInterval,omitempty"`
	Entries       []schedule.Entry `json:"entries,omitempty" yaml:"entries,omitempty"`
}

// TracingConfig configures the OpenTelemetry stdout exporter
type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	ServiceName    string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	ServiceVersion string `json:"serviceVersion,omitempty" yaml:"serviceVersion,omitempty"`
	OutputFile     string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// DefaultConfig returns a Config with in-memory queues, a single worker per
// queue and a job queue that pauses after a failed job.
func DefaultConfig() *Config {
	return &Config{
		Queue: QueueConfig{
			Root:           registry.DefaultRoot,
			Vendor:         messaging.VendorMemory,
			JobWorkers:     1,
			ActiveWorkers:  1,
			PauseOnFailure: true,
			PollInterval:   consumer.DefaultConfig().PollInterval,
		},
		Listener:  ListenerConfig{CompletePercent: progress.DefaultCompletePercent},
		StatusSet: StatusSetConfig{Vendor: messaging.VendorMemory},
		Recorder:  RecorderConfig{BaseURL: "mem://localhost/atomq/data"},
		Tracing:   TracingConfig{ServiceName: "atomq"},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	switch c.Queue.Vendor {
	case messaging.VendorMemory:
	case messaging.VendorFS:
		if c.Queue.BasePath == "" {
			errs = append(errs, fmt.Errorf("queue.basePath is required for %v vendor", c.Queue.Vendor))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported queue.vendor: %q", c.Queue.Vendor))
	}
	if c.Queue.JobWorkers <= 0 {
		errs = append(errs, fmt.Errorf("queue.jobWorkers must be > 0"))
	}
	if c.Queue.ActiveWorkers <= 0 {
		errs = append(errs, fmt.Errorf("queue.activeWorkers must be > 0"))
	}
	if c.Queue.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("queue.pollInterval must be >= 0"))
	}
	if p := c.Listener.CompletePercent; p <= 0 || p > 100 {
		errs = append(errs, fmt.Errorf("listener.completePercent must be in (0, 100]"))
	}
	switch c.StatusSet.Vendor {
	case messaging.VendorMemory:
	case messaging.VendorFS:
		if c.StatusSet.BaseURL == "" {
			errs = append(errs, fmt.Errorf("statusSet.baseURL is required for %v vendor", c.StatusSet.Vendor))
		}
	case statusset.VendorSQLite:
		if c.StatusSet.DSN == "" {
			errs = append(errs, fmt.Errorf("statusSet.dsn is required for %v vendor", c.StatusSet.Vendor))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported statusSet.vendor: %q", c.StatusSet.Vendor))
	}
	if c.Recorder.BaseURL == "" {
		errs = append(errs, fmt.Errorf("recorder.baseURL is required"))
	}
	for i := range c.Schedule.Entries {
		if err := c.Schedule.Entries[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("schedule.entries[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// registryConfig maps queue settings onto the registry
func (c *Config) registryConfig() registry.Config {
	ret := registry.DefaultConfig()
	ret.Root = c.Queue.Root
	ret.JobQueue = consumer.Config{WorkerCount: c.Queue.JobWorkers, PauseOnFailure: c.Queue.PauseOnFailure, PollInterval: c.Queue.PollInterval}
	ret.ActiveQueue = consumer.Config{WorkerCount: c.Queue.ActiveWorkers, PollInterval: c.Queue.PollInterval}
	return ret
}

// LoadConfig loads a YAML or JSON configuration from any afs supported URL
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	ret := DefaultConfig()
	if err := meta.New(afs.New(), "").Load(ctx, URL, ret); err != nil {
		return nil, err
	}
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}
