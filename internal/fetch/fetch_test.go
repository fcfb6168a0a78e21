package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newFetcher(workers int) *Fetcher {
	return New(workers, zerolog.Nop())
}

func TestFetcher_Fetch_SingleFile(t *testing.T) {
	content := []byte("archive content")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	dir := t.TempDir()
	destPath := filepath.Join(dir, "src.tar.gz")

	results := newFetcher(2).Fetch(context.Background(), []Job{{
		URL:      server.URL + "/src.tar.gz",
		DestPath: destPath,
	}})

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Error != nil {
		t.Errorf("Fetch() error = %v", results[0].Error)
	}

	data, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("file content = %q, want %q", data, content)
	}
}

func TestFetcher_Fetch_SkipsExisting(t *testing.T) {
	dir := t.TempDir()
	destPath := filepath.Join(dir, "cached.tar.gz")
	if err := os.WriteFile(destPath, []byte("cached"), 0644); err != nil {
		t.Fatal(err)
	}

	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.Write([]byte("new content"))
	}))
	defer server.Close()

	results := newFetcher(1).Fetch(context.Background(), []Job{{
		URL:      server.URL + "/cached.tar.gz",
		DestPath: destPath,
	}})

	if results[0].Error != nil {
		t.Errorf("Fetch() error = %v", results[0].Error)
	}
	if requestCount != 0 {
		t.Errorf("server was called %d times, want 0", requestCount)
	}

	data, _ := os.ReadFile(destPath)
	if string(data) != "cached" {
		t.Error("existing file was overwritten")
	}
}

func TestFetcher_Fetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dir := t.TempDir()
	results := newFetcher(1).Fetch(context.Background(), []Job{{
		URL:      server.URL + "/missing.tar.gz",
		DestPath: filepath.Join(dir, "missing.tar.gz"),
	}})

	if results[0].Error == nil {
		t.Error("Fetch() should return error for 404")
	}
	if _, err := os.Stat(filepath.Join(dir, "missing.tar.gz")); err == nil {
		t.Error("failed download left a file behind")
	}
}

func TestFetcher_Fetch_Parallel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content for " + r.URL.Path))
	}))
	defer server.Close()

	dir := t.TempDir()
	jobs := []Job{
		{URL: server.URL + "/file1.tar.gz", DestPath: filepath.Join(dir, "file1.tar.gz")},
		{URL: server.URL + "/file2.tar.gz", DestPath: filepath.Join(dir, "file2.tar.gz")},
		{URL: server.URL + "/file3.tar.gz", DestPath: filepath.Join(dir, "file3.tar.gz")},
	}

	results := newFetcher(3).Fetch(context.Background(), jobs)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if r.Error != nil {
			t.Errorf("Fetch(%s) error = %v", r.Job.URL, r.Error)
		}
	}
	for _, job := range jobs {
		if _, err := os.Stat(job.DestPath); os.IsNotExist(err) {
			t.Errorf("file %s was not created", job.DestPath)
		}
	}
}

func TestFetcher_Fetch_CreatesSubdirectories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content"))
	}))
	defer server.Close()

	dir := t.TempDir()
	destPath := filepath.Join(dir, "downloads", "sources", "src.tar.gz")

	results := newFetcher(1).Fetch(context.Background(), []Job{{
		URL:      server.URL + "/src.tar.gz",
		DestPath: destPath,
	}})

	if results[0].Error != nil {
		t.Errorf("Fetch() error = %v", results[0].Error)
	}
	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		t.Error("file was not created with subdirectories")
	}
}

func TestFetcher_Fetch_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	destPath := filepath.Join(dir, "src.tar.gz")
	results := newFetcher(1).Fetch(ctx, []Job{{
		URL:      server.URL + "/src.tar.gz",
		DestPath: destPath,
	}})

	if results[0].Error == nil {
		t.Error("Fetch() with cancelled context should fail")
	}
	if _, err := os.Stat(destPath); err == nil {
		t.Error("cancelled download left a file behind")
	}
}
