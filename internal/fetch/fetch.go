// Package fetch downloads channel files and source archives with a
// bounded worker pool.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// Job represents a single download.
type Job struct {
	URL      string
	DestPath string
}

// Result pairs a job with its outcome.
type Result struct {
	Job   Job
	Error error
}

// Fetcher handles parallel HTTP downloads.
type Fetcher struct {
	workers int
	client  *http.Client
	log     zerolog.Logger
}

// New creates a fetcher with the given number of workers.
func New(workers int, log zerolog.Logger) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{
		workers: workers,
		client:  &http.Client{},
		log:     log,
	}
}

// Fetch downloads all jobs in parallel. Results come back in completion
// order, one per job. Files already on disk are skipped. Cancelling ctx
// fails the jobs still in flight.
func (f *Fetcher) Fetch(ctx context.Context, jobs []Job) []Result {
	jobChan := make(chan Job, len(jobs))
	resultChan := make(chan Result, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				resultChan <- Result{Job: job, Error: f.fetchOne(ctx, job)}
			}
		}()
	}

	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]Result, 0, len(jobs))
	for result := range resultChan {
		results = append(results, result)
	}
	return results
}

// FetchOne downloads a single file.
func (f *Fetcher) FetchOne(ctx context.Context, job Job) error {
	return f.fetchOne(ctx, job)
}

func (f *Fetcher) fetchOne(ctx context.Context, job Job) error {
	if _, err := os.Stat(job.DestPath); err == nil {
		f.log.Debug().Str("path", job.DestPath).Msg("already on disk, skipping")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(job.DestPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", job.URL, err)
	}

	f.log.Debug().Str("url", job.URL).Msg("downloading")
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", job.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", job.URL, resp.StatusCode)
	}

	pending, err := renameio.NewPendingFile(job.DestPath)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer pending.Cleanup()

	if _, err := io.Copy(pending, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", job.DestPath, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing %s: %w", job.DestPath, err)
	}
	return nil
}
