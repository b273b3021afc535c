package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/sakif/repo-rater/internal/auth"
	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/service"
)

// maxSubmitBody bounds the submission request body.
const maxSubmitBody = 16 << 10

// Submitter runs the submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, c service.Candidate, session *model.Session) (*service.Receipt, error)
}

// Feed lists and watches the card feed.
type Feed interface {
	List(ctx context.Context, opts service.FeedOptions) ([]service.FeedItem, error)
	Watch(ctx context.Context, opts service.FeedOptions, fn func([]service.FeedItem) error) error
}

// CardHandler serves card submission and the feed listing.
type CardHandler struct {
	submissions Submitter
	feed        Feed
	logger      *slog.Logger
}

func NewCardHandler(submissions Submitter, feed Feed, logger *slog.Logger) *CardHandler {
	return &CardHandler{
		submissions: submissions,
		feed:        feed,
		logger:      logger,
	}
}

// SubmitRequest is the body of POST /api/cards.
//
// Rating is kept raw so a fractional or quoted value reaches the rating rule
// as a field error instead of failing the whole body.
type SubmitRequest struct {
	RepoURL         string          `json:"repoUrl"`
	Comment         string          `json:"comment"`
	Rating          json.RawMessage `json:"rating"`
	PostAsAnonymous bool            `json:"postAsAnonymous"`
}

// ratingValue returns the rating when raw is a JSON integer, and 0 (never a
// valid rating) for anything else: missing, null, fractional, quoted.
func ratingValue(raw json.RawMessage) int {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		if i < math.MinInt32 || i > math.MaxInt32 {
			return 0
		}
		return int(i)
	}
	// 5.0 is an integer written as a float
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// SubmitResponse tells the client which card was created and when to
// reload the feed.
type SubmitResponse struct {
	ID                  string `json:"id"`
	RefreshAfterSeconds int    `json:"refreshAfterSeconds"`
}

// HandleSubmit creates a card.
//
// HTTP: POST /api/cards
// Auth: optional; a session attaches the card to the signed-in user
//
// RESPONSES:
//
//	201 {"id": "...", "refreshAfterSeconds": 10}
//	400 validation error with per-field messages
//	403 account blocked, or blacklisted content
//	429 posted less than a minute ago
//	500 store failure
func (h *CardHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxSubmitBody), &req); err != nil {
		h.logger.Warn("invalid submission JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid JSON body",
		})
		return
	}

	receipt, err := h.submissions.Submit(r.Context(), service.Candidate{
		RepoURL:         req.RepoURL,
		Comment:         req.Comment,
		Rating:          ratingValue(req.Rating),
		PostAsAnonymous: req.PostAsAnonymous,
	}, auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, SubmitResponse{
		ID:                  receipt.CardID,
		RefreshAfterSeconds: int(receipt.RefreshAfter.Seconds()),
	})
}

// HandleList returns the feed, newest first.
//
// HTTP: GET /api/cards?previews=true&limit=20&offset=0
//
// Every parameter is optional. Without limit the whole feed is returned.
func (h *CardHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts, ok := feedOptions(w, r)
	if !ok {
		return
	}

	items, err := h.feed.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	render.JSON(w, r, items)
}

// feedOptions parses the feed query parameters, answering 400 on bad input.
func feedOptions(w http.ResponseWriter, r *http.Request) (service.FeedOptions, bool) {
	q := r.URL.Query()
	var opts service.FeedOptions

	if v := q.Get("previews"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "previews must be true or false"})
			return opts, false
		}
		opts.WithPreviews = b
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &opts.Limit},
		{"offset", &opts.Offset},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: p.name + " must be a non-negative integer"})
			return opts, false
		}
		*p.dst = n
	}

	return opts, true
}
