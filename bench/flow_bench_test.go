// SPDX-License-Identifier: Apache-2.0

package resultflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sam-fredrickson/resultflow"
	"github.com/sam-fredrickson/resultflow/result"
)

// BenchConfig controls the behavior of benchmark operations.
type BenchConfig struct {
	// StepDuration is the simulated I/O delay per step.
	// Set to 0 for CPU-bound benchmarks, >0 to simulate I/O operations.
	StepDuration time.Duration

	// DNSFailures is how many DNS updates fail before one succeeds.
	DNSFailures int32
}

// DeployError is the domain failure of the deployment workflow.
type DeployError struct {
	Step   string
	Reason string
}

func (e DeployError) String() string {
	return e.Step + ": " + e.Reason
}

// Deployment is the environment shared by every step of a deployment.
type Deployment struct {
	Port         int
	Environment  string
	ServiceNames []string

	mu              sync.Mutex
	StepsExecuted   atomic.Int32
	DNSAttempts     atomic.Int32
	ServicesStarted []string

	StepDuration time.Duration
	DNSFailures  int32
}

// Release summarizes a finished deployment.
type Release struct {
	Services []string
	Notified bool
}

func newDeployment(cfg BenchConfig) *Deployment {
	return &Deployment{
		Port:         8080,
		Environment:  "production",
		ServiceNames: []string{"api", "worker", "cache"},
		StepDuration: cfg.StepDuration,
		DNSFailures:  cfg.DNSFailures,
	}
}

// simulateWork performs minimal work to prevent compiler elimination
// and optionally simulates I/O delay.
func (d *Deployment) simulateWork() {
	d.StepsExecuted.Add(1)
	if d.StepDuration > 0 {
		time.Sleep(d.StepDuration)
	}
}

var errPanicked = errors.New("service crashed")

// =============================================================================
// Flow Implementation
// =============================================================================

type Step[A any] = resultflow.Flow[A, DeployError, *Deployment]

// ValidateConfig checks basic configuration validity.
func ValidateConfig() Step[int] {
	return resultflow.FromFunc(func(_ context.Context, d *Deployment) resultflow.Source[int, DeployError] {
		d.simulateWork()
		if d.Port == 0 {
			return result.Failure[int](DeployError{Step: "validate", Reason: "port required"})
		}
		return result.Success[int, DeployError](d.Port)
	})
}

// StartService starts one service and records it.
func StartService(name string) Step[string] {
	return resultflow.Of(func(_ context.Context, s *resultflow.Scope[DeployError, *Deployment]) (string, error) {
		d := s.Env()
		d.simulateWork()
		if name == "" {
			return "", errPanicked
		}
		d.mu.Lock()
		d.ServicesStarted = append(d.ServicesStarted, name)
		d.mu.Unlock()
		return name, nil
	})
}

// StartServices starts every configured service in parallel.
func StartServices() Step[[]string] {
	return resultflow.Of(func(ctx context.Context, s *resultflow.Scope[DeployError, *Deployment]) ([]string, error) {
		return resultflow.TryTo(ctx, s, resultflow.TraverseParallel(
			resultflow.ParallelOptions{},
			s.Env().ServiceNames,
			StartService,
		))
	})
}

// UpdateDNS fails DNSFailures times before succeeding.
func UpdateDNS() Step[struct{}] {
	return resultflow.FromFunc(func(_ context.Context, d *Deployment) resultflow.Source[struct{}, DeployError] {
		d.simulateWork()
		if d.DNSAttempts.Add(1) <= d.DNSFailures {
			return result.Failure[struct{}](DeployError{Step: "dns", Reason: "propagation timeout"})
		}
		return result.Success[struct{}, DeployError](struct{}{})
	})
}

// Notify reports the release.
func Notify(services []string) Step[Release] {
	return resultflow.FromFunc(func(_ context.Context, d *Deployment) resultflow.Source[Release, DeployError] {
		d.simulateWork()
		return result.Success[Release, DeployError](Release{Services: services, Notified: true})
	})
}

func dnsPolicy() resultflow.RetryPolicy[DeployError, *Deployment] {
	return resultflow.NewRetryPolicy[DeployError, *Deployment]().WithMaxRetries(3)
}

// Deploy is the full workflow.
func Deploy() Step[Release] {
	return resultflow.Named("deploy", resultflow.Of(
		func(ctx context.Context, s *resultflow.Scope[DeployError, *Deployment]) (Release, error) {
			if _, err := resultflow.TryTo(ctx, s, resultflow.Named("validate", ValidateConfig())); err != nil {
				return Release{}, err
			}
			services, err := resultflow.TryTo(ctx, s, resultflow.Named("start", StartServices()))
			if err != nil {
				return Release{}, err
			}
			if _, err := resultflow.TryTo(ctx, s, resultflow.Named("dns", resultflow.Retry(UpdateDNS(), dnsPolicy()))); err != nil {
				return Release{}, err
			}
			return resultflow.TryTo(ctx, s, resultflow.Named("notify", Notify(services)))
		},
	))
}

// deployStatic is built once and reused.
var deployStatic = Deploy()

// =============================================================================
// Traditional Implementation
// =============================================================================

func validateConfig(_ context.Context, d *Deployment) (int, *DeployError) {
	d.simulateWork()
	if d.Port == 0 {
		return 0, &DeployError{Step: "validate", Reason: "port required"}
	}
	return d.Port, nil
}

func startServices(ctx context.Context, d *Deployment) ([]string, error) {
	out := make([]string, len(d.ServiceNames))
	errs := make([]error, len(d.ServiceNames))
	var wg sync.WaitGroup
	for i, name := range d.ServiceNames {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			d.simulateWork()
			if name == "" {
				errs[i] = fmt.Errorf("element %d: %w", i, errPanicked)
				return
			}
			d.mu.Lock()
			d.ServicesStarted = append(d.ServicesStarted, name)
			d.mu.Unlock()
			out[i] = name
		}()
	}
	wg.Wait()
	return out, errors.Join(errs...)
}

func updateDNS(_ context.Context, d *Deployment) *DeployError {
	var last *DeployError
	for range 4 {
		d.simulateWork()
		if d.DNSAttempts.Add(1) > d.DNSFailures {
			return nil
		}
		last = &DeployError{Step: "dns", Reason: "propagation timeout"}
	}
	return last
}

func deployTraditional(ctx context.Context, d *Deployment) (Release, *DeployError, error) {
	if _, derr := validateConfig(ctx, d); derr != nil {
		return Release{}, derr, nil
	}
	services, err := startServices(ctx, d)
	if err != nil {
		return Release{}, nil, err
	}
	if derr := updateDNS(ctx, d); derr != nil {
		return Release{}, derr, nil
	}
	d.simulateWork()
	return Release{Services: services, Notified: true}, nil, nil
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkFlow_Simple(b *testing.B) {
	step := ValidateConfig()
	ctx := b.Context()
	d := newDeployment(BenchConfig{})
	b.ReportAllocs()
	for b.Loop() {
		r, err := step.Run(ctx, resultflow.WithEnv(d))
		if err != nil || r.IsFailure() {
			b.Fatal(r, err)
		}
	}
}

func BenchmarkTraditional_Simple(b *testing.B) {
	ctx := b.Context()
	d := newDeployment(BenchConfig{})
	b.ReportAllocs()
	for b.Loop() {
		if _, derr := validateConfig(ctx, d); derr != nil {
			b.Fatal(derr)
		}
	}
}

func BenchmarkFlow_Parallel(b *testing.B) {
	step := StartServices()
	ctx := b.Context()
	b.ReportAllocs()
	for b.Loop() {
		d := newDeployment(BenchConfig{})
		r, err := step.Run(ctx, resultflow.WithEnv(d))
		if err != nil || r.IsFailure() {
			b.Fatal(r, err)
		}
	}
}

func BenchmarkTraditional_Parallel(b *testing.B) {
	ctx := b.Context()
	b.ReportAllocs()
	for b.Loop() {
		d := newDeployment(BenchConfig{})
		if _, err := startServices(ctx, d); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFlow_Full(b *testing.B) {
	ctx := b.Context()
	b.ReportAllocs()
	for b.Loop() {
		d := newDeployment(BenchConfig{DNSFailures: 2})
		r, err := Deploy().Run(ctx, resultflow.WithEnv(d))
		if err != nil || r.IsFailure() {
			b.Fatal(r, err)
		}
	}
}

func BenchmarkFlow_FullStatic(b *testing.B) {
	ctx := b.Context()
	b.ReportAllocs()
	for b.Loop() {
		d := newDeployment(BenchConfig{DNSFailures: 2})
		r, err := deployStatic.Run(ctx, resultflow.WithEnv(d))
		if err != nil || r.IsFailure() {
			b.Fatal(r, err)
		}
	}
}

func BenchmarkTraditional_Full(b *testing.B) {
	ctx := b.Context()
	b.ReportAllocs()
	for b.Loop() {
		d := newDeployment(BenchConfig{DNSFailures: 2})
		if _, derr, err := deployTraditional(ctx, d); derr != nil || err != nil {
			b.Fatal(derr, err)
		}
	}
}

func BenchmarkFlow_FullWithIO(b *testing.B) {
	ctx := b.Context()
	cfg := BenchConfig{StepDuration: 100 * time.Microsecond, DNSFailures: 1}
	for b.Loop() {
		d := newDeployment(cfg)
		r, err := deployStatic.Run(ctx, resultflow.WithEnv(d))
		if err != nil || r.IsFailure() {
			b.Fatal(r, err)
		}
	}
}

func BenchmarkTraditional_FullWithIO(b *testing.B) {
	ctx := b.Context()
	cfg := BenchConfig{StepDuration: 100 * time.Microsecond, DNSFailures: 1}
	for b.Loop() {
		d := newDeployment(cfg)
		if _, derr, err := deployTraditional(ctx, d); derr != nil || err != nil {
			b.Fatal(derr, err)
		}
	}
}
