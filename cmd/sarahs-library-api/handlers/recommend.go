// Package handlers provides HTTP handlers for the recommendation API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/observability"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/prompt"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/recommend"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/routing"
)

const (
	// MaxQueryLength bounds the reader's message in runes.
	MaxQueryLength = 2000
	maxBodyBytes   = 64 << 10
)

// HistoryLoader loads a reader's stored queue and owned books.
type HistoryLoader interface {
	Load(ctx context.Context, userID uuid.UUID) ([]catalog.ReadingQueueItem, []catalog.OwnedBook, error)
}

// RecommendHandler serves routing, shortlist, prompt preview and
// recommendation requests.
type RecommendHandler struct {
	logger  *observability.Logger
	service *recommend.Service
	history HistoryLoader
}

// NewRecommendHandler creates a new recommendation handler. history may be nil.
func NewRecommendHandler(logger *observability.Logger, service *recommend.Service, history HistoryLoader) *RecommendHandler {
	return &RecommendHandler{
		logger:  logger,
		service: service,
		history: history,
	}
}

// QueryRequestDTO is the body of the route and shortlist endpoints.
type QueryRequestDTO struct {
	Query string `json:"query"`
}

// RecommendRequestDTO is the body of the prompt and recommendation endpoints.
type RecommendRequestDTO struct {
	Query        string                `json:"query"`
	UserID       string                `json:"userId,omitempty"`
	ReadingQueue []ReadingQueueItemDTO `json:"readingQueue,omitempty"`
	Owned        []OwnedBookDTO        `json:"owned,omitempty"`
}

// ReadingQueueItemDTO is one reading-queue entry.
type ReadingQueueItemDTO struct {
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	Status string `json:"status"`
	Rating int    `json:"rating,omitempty"`
}

// OwnedBookDTO is one owned book.
type OwnedBookDTO struct {
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
}

// DecisionDTO is a routing decision.
type DecisionDTO struct {
	Path          string  `json:"path"`
	Reason        string  `json:"reason"`
	Confidence    string  `json:"confidence"`
	Stage         string  `json:"stage"`
	TopSimilarity float64 `json:"topSimilarity,omitempty"`
	Cached        bool    `json:"cached,omitempty"`
}

// ShortlistBookDTO is one shortlisted book.
type ShortlistBookDTO struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Genre    string   `json:"genre,omitempty"`
	Themes   []string `json:"themes,omitempty"`
	Favorite bool     `json:"favorite,omitempty"`
	ISBN     string   `json:"isbn,omitempty"`
}

// ShortlistResponseDTO is the response of the shortlist endpoint.
type ShortlistResponseDTO struct {
	CatalogSize int                `json:"catalogSize"`
	Books       []ShortlistBookDTO `json:"books"`
	Rendered    string             `json:"rendered"`
}

// SegmentDTO is one system prompt segment.
type SegmentDTO struct {
	Text      string `json:"text"`
	Cacheable bool   `json:"cacheable"`
}

// PromptResponseDTO is the assembled prompt.
type PromptResponseDTO struct {
	Decision  DecisionDTO  `json:"decision"`
	Shortlist []string     `json:"shortlist,omitempty"`
	System    []SegmentDTO `json:"system"`
	User      string       `json:"user"`
}

// UsageDTO reports token usage.
type UsageDTO struct {
	InputTokens         int64 `json:"inputTokens"`
	OutputTokens        int64 `json:"outputTokens"`
	CacheReadTokens     int64 `json:"cacheReadTokens"`
	CacheCreationTokens int64 `json:"cacheCreationTokens"`
}

// RecommendResponseDTO is the response of the recommendation endpoint.
type RecommendResponseDTO struct {
	Decision  DecisionDTO `json:"decision"`
	Shortlist []string    `json:"shortlist,omitempty"`
	Text      string      `json:"text"`
	Titles    []string    `json:"titles"`
	Model     string      `json:"model"`
	Usage     UsageDTO    `json:"usage"`
	LatencyMs int64       `json:"latencyMs"`
}

// Route handles POST /api/v1/route.
func (h *RecommendHandler) Route(w http.ResponseWriter, r *http.Request) {
	var reqDTO QueryRequestDTO
	if !h.decode(w, r, &reqDTO) {
		return
	}
	if !h.validQuery(w, reqDTO.Query) {
		return
	}

	decision := h.service.Route(r.Context(), reqDTO.Query)
	h.writeJSON(w, http.StatusOK, toDecisionDTO(decision))
}

// Shortlist handles POST /api/v1/shortlist.
func (h *RecommendHandler) Shortlist(w http.ResponseWriter, r *http.Request) {
	var reqDTO QueryRequestDTO
	if !h.decode(w, r, &reqDTO) {
		return
	}
	if !h.validQuery(w, reqDTO.Query) {
		return
	}

	list := h.service.Shortlist(reqDTO.Query)

	respDTO := ShortlistResponseDTO{
		CatalogSize: list.CatalogSize,
		Books:       make([]ShortlistBookDTO, 0, list.Len()),
		Rendered:    list.Render(),
	}
	for _, b := range list.Books {
		respDTO.Books = append(respDTO.Books, ShortlistBookDTO{
			Title:    b.Title,
			Author:   b.Author,
			Genre:    b.Genre,
			Themes:   b.Themes,
			Favorite: b.Favorite,
			ISBN:     b.PreferredISBN(),
		})
	}
	h.writeJSON(w, http.StatusOK, respDTO)
}

// Prompt handles POST /api/v1/prompt. It returns the assembled prompt
// without calling the model.
func (h *RecommendHandler) Prompt(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRecommendRequest(w, r)
	if !ok {
		return
	}

	res, err := h.service.Preview(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, PromptResponseDTO{
		Decision:  toDecisionDTO(res.Decision),
		Shortlist: res.ShortlistTitles(),
		System:    toSegmentDTOs(res.System),
		User:      res.User,
	})
}

// Recommend handles POST /api/v1/recommendations.
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRecommendRequest(w, r)
	if !ok {
		return
	}

	res, err := h.service.Recommend(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	respDTO := RecommendResponseDTO{
		Decision:  toDecisionDTO(res.Decision),
		Shortlist: res.ShortlistTitles(),
		Titles:    res.Titles,
	}
	if respDTO.Titles == nil {
		respDTO.Titles = []string{}
	}
	if c := res.Completion; c != nil {
		respDTO.Text = c.Text
		respDTO.Model = c.Model
		respDTO.LatencyMs = c.Latency.Milliseconds()
		respDTO.Usage = UsageDTO{
			InputTokens:         c.Usage.InputTokens,
			OutputTokens:        c.Usage.OutputTokens,
			CacheReadTokens:     c.Usage.CacheReadInputTokens,
			CacheCreationTokens: c.Usage.CacheCreationInputTokens,
		}
	}
	h.writeJSON(w, http.StatusOK, respDTO)
}

// parseRecommendRequest decodes and validates the body and merges stored
// history when a userId is given.
func (h *RecommendHandler) parseRecommendRequest(w http.ResponseWriter, r *http.Request) (recommend.Request, bool) {
	var reqDTO RecommendRequestDTO
	if !h.decode(w, r, &reqDTO) {
		return recommend.Request{}, false
	}
	if !h.validQuery(w, reqDTO.Query) {
		return recommend.Request{}, false
	}

	req := recommend.Request{Query: reqDTO.Query}

	if reqDTO.UserID != "" {
		userID, err := uuid.Parse(reqDTO.UserID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid userId", err.Error())
			return recommend.Request{}, false
		}
		req.ReadingQueue, req.Owned = h.loadHistory(r.Context(), userID)
	}

	for i, item := range reqDTO.ReadingQueue {
		status := catalog.QueueStatus(item.Status)
		if !status.Valid() {
			h.writeError(w, http.StatusBadRequest, "invalid reading queue status",
				fmt.Sprintf("readingQueue[%d].status: %q", i, item.Status))
			return recommend.Request{}, false
		}
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		req.ReadingQueue = append(req.ReadingQueue, catalog.ReadingQueueItem{
			BookTitle:  item.Title,
			BookAuthor: item.Author,
			Status:     status,
			Rating:     item.Rating,
		})
	}
	for _, o := range reqDTO.Owned {
		if strings.TrimSpace(o.Title) == "" {
			continue
		}
		req.Owned = append(req.Owned, catalog.OwnedBook{Title: o.Title, Author: o.Author})
	}

	return req, true
}

// loadHistory returns stored history, or nothing when storage is missing or
// failing. Missing history degrades personalization but not the request.
func (h *RecommendHandler) loadHistory(ctx context.Context, userID uuid.UUID) ([]catalog.ReadingQueueItem, []catalog.OwnedBook) {
	if h.history == nil {
		h.logger.WithContext(ctx).Debug().Str("user_id", userID.String()).Msg("No history store, ignoring userId")
		return nil, nil
	}
	queue, owned, err := h.history.Load(ctx, userID)
	if err != nil {
		h.logger.WithContext(ctx).Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to load reader history")
		return nil, nil
	}
	return queue, owned
}

func (h *RecommendHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

func (h *RecommendHandler) validQuery(w http.ResponseWriter, query string) bool {
	if strings.TrimSpace(query) == "" {
		h.writeError(w, http.StatusBadRequest, "query is required", "")
		return false
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		h.writeError(w, http.StatusBadRequest, "query is too long",
			fmt.Sprintf("%d characters, limit is %d", n, MaxQueryLength))
		return false
	}
	return true
}

func (h *RecommendHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, recommend.ErrEmptyQuery):
		h.writeError(w, http.StatusBadRequest, "query is required", "")
	case errors.Is(err, recommend.ErrNoCompleter):
		h.writeError(w, http.StatusServiceUnavailable, "recommendations unavailable", "completion model is not configured")
	case errors.Is(err, recommend.ErrCompletionFailed):
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Recommendation failed")
		h.writeError(w, http.StatusBadGateway, "recommendation failed", err.Error())
	default:
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Request failed")
		h.writeError(w, http.StatusInternalServerError, "request failed", err.Error())
	}
}

func (h *RecommendHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *RecommendHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}

func toDecisionDTO(d routing.Decision) DecisionDTO {
	return DecisionDTO{
		Path:          string(d.Path),
		Reason:        d.Reason,
		Confidence:    string(d.Confidence),
		Stage:         string(d.Stage),
		TopSimilarity: d.TopSimilarity,
		Cached:        d.Cached,
	}
}

func toSegmentDTOs(segments []prompt.Segment) []SegmentDTO {
	out := make([]SegmentDTO, len(segments))
	for i, s := range segments {
		out[i] = SegmentDTO{Text: s.Text, Cacheable: s.Cacheable}
	}
	return out
}
