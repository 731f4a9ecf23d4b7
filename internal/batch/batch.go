// Package batch loads a list of servers from YAML and queries them concurrently.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultParallel is the worker count when neither the file nor the caller sets one.
const DefaultParallel = 8

// File is a batch target file.
type File struct {
	Targets  []Target      `yaml:"targets"`
	Timeout  time.Duration `yaml:"timeout"`
	Parallel int           `yaml:"parallel"`
}

// Target is one server to query. Host may carry a ":port" suffix when Port is zero.
type Target struct {
	Host    string        `yaml:"host"`
	Type    string        `yaml:"type"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// Querier runs status queries, implemented by query.Service.
type Querier interface {
	QueryServer(ctx context.Context, host string, port int, edition string, timeout time.Duration) models.QueryResult
}

// Load reads and parses the target file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read target file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a target file.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse target file: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target file: %w", err)
	}

	return f, nil
}

// Validate checks the file for values no query could accept.
func (f *File) Validate() error {
	if len(f.Targets) == 0 {
		return errors.New("no targets")
	}
	if f.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if f.Parallel < 0 {
		return errors.New("parallel must not be negative")
	}

	for i, t := range f.Targets {
		if t.Host == "" {
			return fmt.Errorf("target %d: host is required", i+1)
		}
		if _, ok := models.ParseEdition(t.Type); !ok {
			return fmt.Errorf("target %d: unknown type %q", i+1, t.Type)
		}
		if t.Port < 0 || t.Port > 65535 {
			return fmt.Errorf("target %d: port %d out of range", i+1, t.Port)
		}
		if t.Timeout < 0 {
			return fmt.Errorf("target %d: timeout must not be negative", i+1)
		}
	}

	return nil
}

// Run queries every target with at most parallel concurrent queries.
// Results keep the order of the targets. A zero parallel uses the file value or DefaultParallel.
func Run(ctx context.Context, q Querier, f *File, parallel int) []models.QueryResult {
	if parallel <= 0 {
		parallel = f.Parallel
	}
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	if parallel > len(f.Targets) {
		parallel = len(f.Targets)
	}

	results := make([]models.QueryResult, len(f.Targets))
	jobs := make(chan int, len(f.Targets))
	var wg sync.WaitGroup

	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				t := f.Targets[idx]
				timeout := t.Timeout
				if timeout == 0 {
					timeout = f.Timeout
				}

				results[idx] = q.QueryServer(ctx, t.Host, t.Port, t.Type, timeout)
				log.Debug().
					Str("host", t.Host).
					Str("status", string(results[idx].Status)).
					Msg("Batch target done")
			}
		}()
	}

	for i := range f.Targets {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}
