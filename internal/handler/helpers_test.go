package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/repo-rater/internal/auth"
	"github.com/sakif/repo-rater/internal/events"
	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository/memory"
	"github.com/sakif/repo-rater/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePreviewer returns a fixed preview per URL, or err for every URL when set.
type fakePreviewer struct {
	mu       sync.Mutex
	previews map[string]*model.Preview
	err      error
	calls    []string
}

func (f *fakePreviewer) Preview(_ context.Context, url string) (*model.Preview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.previews[url]; ok {
		return p, nil
	}
	return &model.Preview{Title: url, Favicon: "/favicon.ico"}, nil
}

// env is a real service stack on the in-memory store.
type env struct {
	store       *events.PublishingStore
	notifier    *events.Local
	previews    *fakePreviewer
	submissions *service.SubmissionService
	feed        *service.FeedService
}

func newEnv(t *testing.T, words ...string) *env {
	t.Helper()

	logger := testLogger()
	notifier := events.NewLocal()
	store := events.NewPublishingStore(memory.New(), notifier, logger)
	t.Cleanup(func() {
		notifier.Close()
		store.Close()
	})

	if len(words) > 0 {
		bl := &model.Blacklist{}
		for _, w := range words {
			bl.Words = append(bl.Words, model.BlacklistEntry{Word: w, Category: model.CategoryOther})
		}
		_, err := store.CreateBlacklistIfNotExists(context.Background(), bl)
		require.NoError(t, err)
	}

	previews := &fakePreviewer{}
	return &env{
		store:       store,
		notifier:    notifier,
		previews:    previews,
		submissions: service.NewSubmissionService(store, store, store, logger),
		feed:        service.NewFeedService(store, previews, notifier, logger),
	}
}

// withSession attaches sess to every request, standing in for auth.OptionalAuth.
func withSession(sess *model.Session, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sess != nil {
			r = r.WithContext(auth.WithSession(r.Context(), sess))
		}
		next(w, r)
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(r).Decode(&v))
	return v
}

var octocat = &model.Session{
	ExternalID: "583231",
	Name:       "The Octocat",
	Handle:     "octocat",
	Image:      "https://avatars.githubusercontent.com/u/583231",
}
