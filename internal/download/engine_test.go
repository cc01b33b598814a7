package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brfin/datafinance/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	return New(cfg, http.DefaultClient, nil, nil)
}

func TestDownloadOneFailureDoesNotAbortTheBatch(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.zip":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("zipdata"))
		case "/fail.zip":
			attempts++
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	plan := domain.DownloadPlan{Items: map[string][]domain.PlanItem{
		"DFP": {
			{Year: 2023, URL: srv.URL + "/ok.zip", LocalFilename: "ok.zip"},
			{Year: 2024, URL: srv.URL + "/fail.zip", LocalFilename: "fail.zip"},
		},
	}}

	destDir := t.TempDir()
	e := newTestEngine(t)
	outcome, err := e.Download(context.Background(), plan, destDir)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.SuccessCount)
	assert.Equal(t, 1, outcome.ErrorCount)
	assert.Equal(t, plan.TotalURLs(), outcome.SuccessCount+outcome.ErrorCount)

	_, err = os.Stat(filepath.Join(destDir, "DFP", "ok.zip"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(destDir, "DFP", "fail.zip"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestDownloadNoPartialFileOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	plan := domain.DownloadPlan{Items: map[string][]domain.PlanItem{
		"ITR": {{Year: 2023, URL: srv.URL + "/missing.zip", LocalFilename: "missing.zip"}},
	}}
	destDir := t.TempDir()
	e := newTestEngine(t)
	outcome, err := e.Download(context.Background(), plan, destDir)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.ErrorCount)

	entries, _ := os.ReadDir(filepath.Join(destDir, "ITR"))
	assert.Empty(t, entries)
}

func TestDownloadTruncatedBodyIsRecordedAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "999")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	plan := domain.DownloadPlan{Items: map[string][]domain.PlanItem{
		"FCA": {{Year: 2023, URL: srv.URL + "/x.zip", LocalFilename: "x.zip"}},
	}}
	destDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	e := New(cfg, http.DefaultClient, nil, nil)
	outcome, err := e.Download(context.Background(), plan, destDir)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.ErrorCount)
}

func TestDownloadTotalCountInvariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	items := make([]domain.PlanItem, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, domain.PlanItem{Year: 2020 + i, URL: srv.URL + "/f.zip", LocalFilename: filepathJoinName(i)})
	}
	plan := domain.DownloadPlan{Items: map[string][]domain.PlanItem{"DFP": items}}
	destDir := t.TempDir()
	e := newTestEngine(t)
	outcome, err := e.Download(context.Background(), plan, destDir)
	require.NoError(t, err)
	assert.Equal(t, plan.TotalURLs(), outcome.SuccessCount+outcome.ErrorCount)
}

// TestDownloadAbortsOnStalledRead verifies the per-chunk read deadline
// fires well before the (much longer) total timeout when a connection
// stalls mid-transfer.
func TestDownloadAbortsOnStalledRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("first-chunk"))
		flusher.Flush()
		time.Sleep(500 * time.Millisecond) // stalls longer than ReadTimeout below
	}))
	defer srv.Close()

	plan := domain.DownloadPlan{Items: map[string][]domain.PlanItem{
		"DFP": {{Year: 2023, URL: srv.URL + "/slow.zip", LocalFilename: "slow.zip"}},
	}}
	destDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	cfg.ReadTimeout = 50 * time.Millisecond
	cfg.TotalTimeout = 30 * time.Second
	e := New(cfg, http.DefaultClient, nil, nil)

	outcome, err := e.Download(context.Background(), plan, destDir)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.ErrorCount)

	_, statErr := os.Stat(filepath.Join(destDir, "DFP", "slow.zip"))
	assert.True(t, os.IsNotExist(statErr))
}

func filepathJoinName(i int) string {
	return "f" + string(rune('0'+i)) + ".zip"
}
