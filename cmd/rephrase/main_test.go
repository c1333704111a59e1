package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rephrase/pkg/auth"
	"rephrase/pkg/config"
	rerrors "rephrase/pkg/errors"
	"rephrase/pkg/logger"
	"rephrase/pkg/metadata"
	"rephrase/pkg/transform"
	"rephrase/pkg/walker"
)

func newFlagCommand(t *testing.T, args ...string) (*cobra.Command, *crawlFlags) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	f := &crawlFlags{}
	f.register(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, f
}

func TestCrawlFlagsValidate(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"defaults", nil, false},
		{"zero delay", []string{"--delay", "0"}, false},
		{"negative delay", []string{"--delay", "-1"}, true},
		{"zero budget", []string{"--max-requests", "0"}, true},
		{"negative budget", []string{"--max-requests", "-3"}, true},
		{"zero timeout", []string{"--timeout", "0"}, true},
		{"valid overrides", []string{"--delay", "0.5", "--max-requests", "3"}, false},
		{"header", []string{"-H", "Referer: https://example.com/"}, false},
		{"header without colon", []string{"--header", "Referer"}, true},
		{"header without name", []string{"--header", ": value"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, f := newFlagCommand(t, tt.args...)
			err := f.validate(cmd)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			kind, ok := rerrors.KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, rerrors.KindConfig, kind)
		})
	}
}

func TestCrawlFlagsMergeOnlyChanged(t *testing.T) {
	cmd, f := newFlagCommand(t, "--max-requests", "7")
	flags := map[string]interface{}{}
	f.merge(cmd, flags)

	assert.Equal(t, map[string]interface{}{"max-requests": 7}, flags)

	cfg := config.DefaultConfig()
	cfg.MergeCommandLineFlags(flags)
	assert.Equal(t, 7, cfg.Crawl.MaxRequests)
	assert.Equal(t, config.DefaultConfig().Crawl.Delay, cfg.Crawl.Delay)
}

func TestCrawlFlagsMergeHeaders(t *testing.T) {
	cmd, f := newFlagCommand(t,
		"--header", "Cookie: age_verified=1",
		"-H", "Referer: https://example.com/a",
		"-H", "Referer:https://example.com/b",
	)
	flags := map[string]interface{}{}
	f.merge(cmd, flags)

	assert.Equal(t, map[string]string{
		"Cookie":  "age_verified=1",
		"Referer": "https://example.com/b",
	}, flags["header"])
}

func TestResolveAPIKey(t *testing.T) {
	store := auth.NewMockStore()
	require.NoError(t, store.Store(&auth.Credential{Name: auth.DefaultAccount, Backend: "anthropic", APIKey: "sk-stored"}))
	require.NoError(t, store.Store(&auth.Credential{Name: "work", Backend: "anthropic", APIKey: "sk-work"}))
	credentials := func() (*auth.Manager, error) { return auth.NewManagerWithStores(store), nil }

	cfg := config.DefaultConfig()
	key, err := resolveAPIKey(cfg, credentials)
	require.NoError(t, err)
	assert.Equal(t, "sk-stored", key)

	cfg.Transform.Account = "work"
	key, err = resolveAPIKey(cfg, credentials)
	require.NoError(t, err)
	assert.Equal(t, "sk-work", key)

	cfg.Transform.APIKey = "sk-config"
	key, err = resolveAPIKey(cfg, credentials)
	require.NoError(t, err)
	assert.Equal(t, "sk-config", key, "a configured key wins over the store")

	cfg.Transform.APIKey = ""
	cfg.Transform.Account = "missing"
	_, err = resolveAPIKey(cfg, credentials)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrCredentialsNotFound)
}

func TestNewTransformer(t *testing.T) {
	noCredentials := func() (*auth.Manager, error) { return nil, errors.New("no store") }
	log := logger.NewNopLogger()

	cfg := config.DefaultConfig()
	tr, err := newTransformer(cfg, log, noCredentials)
	require.NoError(t, err)
	assert.IsType(t, &transform.OllamaClient{}, tr)

	cfg.Transform.Backend = "anthropic"
	cfg.Transform.APIKey = "sk-test"
	tr, err = newTransformer(cfg, log, noCredentials)
	require.NoError(t, err)
	assert.IsType(t, &transform.AnthropicClient{}, tr)

	cfg.Transform.APIKey = ""
	_, err = newTransformer(cfg, log, noCredentials)
	assert.Error(t, err)

	cfg.Transform.Backend = "telepathy"
	_, err = newTransformer(cfg, log, noCredentials)
	assert.Error(t, err)
}

func chainServer(t *testing.T, pages int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for i := 1; i <= pages; i++ {
		n := i
		mux.HandleFunc(fmt.Sprintf("/novel/chapter-%d.html", n), func(w http.ResponseWriter, r *http.Request) {
			next := ""
			if n < pages {
				next = fmt.Sprintf(`<a id="next_chap" href="chapter-%d.html">Next</a>`, n+1)
			}
			fmt.Fprintf(w, `<html><body><div id="chapter-content"><p>Chapter %d</p><p>Text of chapter %d.</p></div>%s</body></html>`, n, n, next)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlThenProcess(t *testing.T) {
	srv := chainServer(t, 3)

	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Crawl.StartURL = srv.URL + "/novel/chapter-1.html"
	cfg.Crawl.Delay = 0
	log := logger.NewNopLogger()
	ctx := context.Background()

	res, err := crawl(ctx, cfg, log, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, walker.OutcomeCompleted, res.Outcome)
	assert.Equal(t, []string{"chapter-1", "chapter-2", "chapter-3"}, res.Fetched)

	var prompts []string
	tr := transform.Func(func(ctx context.Context, req transform.Request) (string, error) {
		prompts = append(prompts, req.Prompt)
		first := strings.SplitN(strings.TrimPrefix(req.Prompt, cfg.Transform.Prompt+"\n\n"), "\n", 2)[0]
		return first + "\n\n\nRewritten.", nil
	})

	dry, err := process(ctx, cfg, log, nil, true, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chapter 1.md", "Chapter 2.md", "Chapter 3.md"}, dry.Outputs)
	assert.NoFileExists(t, filepath.Join(cfg.ProcessedPath(), "Chapter 1.md"))

	out, err := process(ctx, cfg, log, tr, false, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Processed)
	assert.Len(t, prompts, 3)
	assert.FileExists(t, filepath.Join(cfg.ProcessedPath(), "Chapter 2.md"))

	again, err := process(ctx, cfg, log, tr, false, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Processed)
	assert.Equal(t, 3, again.Skipped)
	assert.Len(t, prompts, 3, "processed chapters are not sent again")
}

func TestReportErrorDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		reportError(rerrors.Fetch("https://example.com/chapter-9.html", 503, errors.New("unavailable")))
		reportError(fmt.Errorf("walk: %w", context.Canceled))
		reportError(errors.New("plain"))
		reportError(rerrors.New(rerrors.KindLoopDetected, "walk", "https://example.com/chapter-1.html", nil))
	})
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(fmt.Errorf("walk: %w", context.Canceled)))
	assert.Equal(t, 0, exitCode(rerrors.New(rerrors.KindExtractionMiss, "extract", "x", nil)))
	assert.Equal(t, 1, exitCode(rerrors.Fetch("https://example.com/chapter-9.html", 503, errors.New("unavailable"))))
	assert.Equal(t, 1, exitCode(rerrors.Transform("chapter-1", errors.New("backend down"))))
	assert.Equal(t, 1, exitCode(errors.New("plain")))
}

func TestResetCrawlRemovesOrphanedMetadata(t *testing.T) {
	srv := chainServer(t, 2)

	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Crawl.StartURL = srv.URL + "/novel/chapter-1.html"
	cfg.Crawl.Delay = 0
	cfg.Output.SaveMetadata = true
	log := logger.NewNopLogger()

	_, err := crawl(context.Background(), cfg, log, io.Discard)
	require.NoError(t, err)
	require.True(t, metadata.MetadataExists(cfg.RawPath(), "chapter-1"))
	require.True(t, metadata.MetadataExists(cfg.RawPath(), "chapter-2"))

	rows := lastPageRows(cfg.RawPath(), srv.URL+"/novel/chapter-2.html")
	require.NotEmpty(t, rows)
	assert.Equal(t, "Last page size", rows[0][0])
	assert.Empty(t, lastPageRows(cfg.RawPath(), srv.URL+"/novel/chapter-9.html"))

	require.NoError(t, os.Remove(filepath.Join(cfg.RawPath(), "chapter-2.txt")))
	require.NoError(t, resetJob(cfg, log, true, false))

	assert.NoFileExists(t, filepath.Join(cfg.RawPath(), "state.json"))
	assert.FileExists(t, filepath.Join(cfg.RawPath(), "state.json.backup"))
	assert.True(t, metadata.MetadataExists(cfg.RawPath(), "chapter-1"))
	assert.False(t, metadata.MetadataExists(cfg.RawPath(), "chapter-2"))
}
