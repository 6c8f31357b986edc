// SPDX-License-Identifier: Apache-2.0

// Package policyfile loads retry and periodic policies from YAML files.
//
// A policy file names reusable settings so that deployments can tune retry
// budgets and intervals without a rebuild:
//
//	retry:
//	  api:
//	    max_retries: 4
//	    backoff: exponential
//	    delay: 200ms
//	    max_delay: 5s
//	    jitter: full
//	periodic:
//	  heartbeat:
//	    interval: 30s
//	    max_recoveries: 3
//	    retry: api
//
// Unset fields take the defaults from the struct tags, then the whole file is
// validated.
package policyfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sam-fredrickson/resultflow"
)

// ErrUnknownPolicy is returned when a named policy is not in the file.
var ErrUnknownPolicy = errors.New("unknown policy")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report yaml keys instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// File is the content of a policy file.
type File struct {
	Retry    map[string]RetrySpec    `yaml:"retry" validate:"dive"`
	Periodic map[string]PeriodicSpec `yaml:"periodic" validate:"dive"`
}

// RetrySpec describes a [resultflow.RetryPolicy].
type RetrySpec struct {
	// MaxRetries is a pointer so that an explicit zero survives defaulting.
	MaxRetries *int `yaml:"max_retries" default:"1" validate:"required,gte=0,lte=100"`

	Backoff    string        `yaml:"backoff" default:"immediate" validate:"oneof=immediate fixed exponential"`
	Delay      time.Duration `yaml:"delay" validate:"required_unless=Backoff immediate,gte=0"`
	MaxDelay   time.Duration `yaml:"max_delay" validate:"gte=0"`
	Multiplier float64       `yaml:"multiplier" default:"2" validate:"gte=1"`

	Jitter        string  `yaml:"jitter" default:"none" validate:"oneof=none full percent"`
	JitterPercent float64 `yaml:"jitter_percent" validate:"required_if=Jitter percent,gte=0,lte=100"`
}

// PeriodicSpec describes the schedule of a periodic session.
type PeriodicSpec struct {
	Interval      time.Duration `yaml:"interval" default:"30s" validate:"gt=0"`
	MaxRecoveries int           `yaml:"max_recoveries" validate:"gte=0"`

	// Retry optionally names the retry policy applied to each evaluation.
	Retry string `yaml:"retry"`
}

// Load reads and parses the policy file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided policy file
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a policy file, applies defaults and validates it. Unknown
// keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode policies: %w", err)
	}

	for name, spec := range f.Retry {
		if err := defaults.Set(&spec); err != nil {
			return nil, fmt.Errorf("retry %q: failed to apply defaults: %w", name, err)
		}
		f.Retry[name] = spec
	}
	for name, spec := range f.Periodic {
		if err := defaults.Set(&spec); err != nil {
			return nil, fmt.Errorf("periodic %q: failed to apply defaults: %w", name, err)
		}
		f.Periodic[name] = spec
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed validation (rule: %s)", fe.Namespace(), fe.Tag()))
			}
			sort.Strings(msgs)
			return fmt.Errorf("policy validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
		}
		return fmt.Errorf("policy validation failed: %w", err)
	}
	for name, p := range f.Periodic {
		if p.Retry == "" {
			continue
		}
		if _, ok := f.Retry[p.Retry]; !ok {
			return fmt.Errorf("periodic %q: retry %q: %w", name, p.Retry, ErrUnknownPolicy)
		}
	}
	return nil
}

// RetryPolicy returns the named retry spec.
func (f *File) RetryPolicy(name string) (RetrySpec, error) {
	spec, ok := f.Retry[name]
	if !ok {
		return RetrySpec{}, fmt.Errorf("retry %q: %w", name, ErrUnknownPolicy)
	}
	return spec, nil
}

// PeriodicPolicy returns the named periodic spec.
func (f *File) PeriodicPolicy(name string) (PeriodicSpec, error) {
	spec, ok := f.Periodic[name]
	if !ok {
		return PeriodicSpec{}, fmt.Errorf("periodic %q: %w", name, ErrUnknownPolicy)
	}
	return spec, nil
}

// Strategy builds the delay strategy described by s.
func (s RetrySpec) Strategy() resultflow.DelayStrategy {
	var opts []resultflow.BackoffOption
	if s.MaxDelay > 0 {
		opts = append(opts, resultflow.WithMaxDelay(s.MaxDelay))
	}
	switch s.Jitter {
	case "full":
		opts = append(opts, resultflow.WithFullJitter())
	case "percent":
		opts = append(opts, resultflow.WithPercentageJitter(s.JitterPercent / 100))
	}

	switch s.Backoff {
	case "fixed":
		return resultflow.FixedDelay(s.Delay, opts...)
	case "exponential":
		return resultflow.ExponentialBackoff(s.Delay, append(opts, resultflow.WithMultiplier(s.Multiplier))...)
	default:
		return resultflow.Immediate()
	}
}

// Retries returns the retry budget, or [resultflow.DefaultMaxRetries] for a
// spec that was not produced by [Parse].
func (s RetrySpec) Retries() int {
	if s.MaxRetries == nil {
		return resultflow.DefaultMaxRetries
	}
	return *s.MaxRetries
}

// ApplyRetry sets the budget and delay of p from s. The condition, hook and
// clock of p are kept.
func ApplyRetry[E, C any](p resultflow.RetryPolicy[E, C], s RetrySpec) resultflow.RetryPolicy[E, C] {
	return p.WithMaxRetries(s.Retries()).WithDelay(s.Strategy())
}

// ApplyPeriodic sets the schedule of cfg from s.
func ApplyPeriodic[E, C any](cfg resultflow.PeriodicConfig[E, C], s PeriodicSpec) resultflow.PeriodicConfig[E, C] {
	cfg.Interval = s.Interval
	cfg.MaxRecoveries = s.MaxRecoveries
	return cfg
}
