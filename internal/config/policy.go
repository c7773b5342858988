package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// GovernancePolicy is the hot-reloadable part of the assignment rules, read from POLICY_FILE
type GovernancePolicy struct {
	ReclaimTimeoutMinutes  int `yaml:"reclaim_timeout_minutes"`
	SweepIntervalSeconds   int `yaml:"sweep_interval_seconds"`
	SweepDeadlineSeconds   int `yaml:"sweep_deadline_seconds"`
	SweepConcurrency       int `yaml:"sweep_concurrency"`
	DefaultMaxOrdersPerDay int `yaml:"default_max_orders_per_day"`
}

// DefaultGovernancePolicy returns the values used when no policy file exists
func DefaultGovernancePolicy() GovernancePolicy {
	return GovernancePolicy{
		ReclaimTimeoutMinutes:  15,
		SweepIntervalSeconds:   60,
		SweepDeadlineSeconds:   30,
		SweepConcurrency:       4,
		DefaultMaxOrdersPerDay: 3,
	}
}

// Validate collects every problem of the policy into one error
func (p GovernancePolicy) Validate() error {
	var problems []string
	if p.ReclaimTimeoutMinutes < 1 {
		problems = append(problems, "reclaim_timeout_minutes must be at least 1")
	}
	if p.SweepIntervalSeconds < 1 {
		problems = append(problems, "sweep_interval_seconds must be at least 1")
	}
	if p.SweepDeadlineSeconds < 1 {
		problems = append(problems, "sweep_deadline_seconds must be at least 1")
	}
	if p.SweepDeadlineSeconds > p.SweepIntervalSeconds {
		problems = append(problems, "sweep_deadline_seconds can't be greater than sweep_interval_seconds")
	}
	if p.SweepConcurrency < 1 || p.SweepConcurrency > 64 {
		problems = append(problems, "sweep_concurrency must be in range from 1 to 64")
	}
	if p.DefaultMaxOrdersPerDay < 1 {
		problems = append(problems, "default_max_orders_per_day must be at least 1")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// PolicyWatcher serves the current GovernancePolicy and reloads it when the file changes.
// An invalid update is logged and ignored; the last good policy stays in force.
type PolicyWatcher struct {
	path string

	mu      sync.RWMutex
	current GovernancePolicy
}

// LoadPolicy reads the policy file once. A missing file yields the defaults;
// an unreadable or invalid file is an error.
func LoadPolicy(path string) (*PolicyWatcher, error) {
	w := &PolicyWatcher{path: path, current: DefaultGovernancePolicy()}

	p, err := readPolicy(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️  Policy file %s not found, using defaults", path)
		return w, nil
	}
	if err != nil {
		return nil, err
	}
	w.current = p
	log.Printf("✅ Governance policy loaded from %s", path)
	return w, nil
}

func readPolicy(path string) (GovernancePolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return GovernancePolicy{}, err
	}
	p := DefaultGovernancePolicy()
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return GovernancePolicy{}, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return GovernancePolicy{}, fmt.Errorf("invalid policy %s: %w", path, err)
	}
	return p, nil
}

// Watch reloads the policy on every write to the file until ctx is cancelled.
func (w *PolicyWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(w.path)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					w.Reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️  Policy watcher: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Reload re-reads the file and reports whether the new policy was applied.
func (w *PolicyWatcher) Reload() bool {
	p, err := readPolicy(w.path)
	if err != nil {
		log.Printf("⚠️  Policy update ignored: %v", err)
		return false
	}
	w.mu.Lock()
	w.current = p
	w.mu.Unlock()
	log.Printf("🔄 Governance policy reloaded (timeout %dm, interval %ds)", p.ReclaimTimeoutMinutes, p.SweepIntervalSeconds)
	return true
}

// Current returns a copy of the policy in force.
func (w *PolicyWatcher) Current() GovernancePolicy {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *PolicyWatcher) ReclaimTimeout() time.Duration {
	return time.Duration(w.Current().ReclaimTimeoutMinutes) * time.Minute
}

func (w *PolicyWatcher) SweepInterval() time.Duration {
	return time.Duration(w.Current().SweepIntervalSeconds) * time.Second
}

func (w *PolicyWatcher) SweepDeadline() time.Duration {
	return time.Duration(w.Current().SweepDeadlineSeconds) * time.Second
}

func (w *PolicyWatcher) SweepConcurrency() int {
	return w.Current().SweepConcurrency
}

func (w *PolicyWatcher) DefaultMaxOrdersPerDay() int {
	return w.Current().DefaultMaxOrdersPerDay
}
