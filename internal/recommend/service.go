// Package recommend ties routing, shortlisting, prompt assembly and the
// completion call into a single recommendation request.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/library"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/llm"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/observability"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/prompt"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/routing"
)

var (
	// ErrEmptyQuery is returned for blank requests.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrCompletionFailed wraps completion errors. The result still carries the prompt.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrNoCompleter is returned by Recommend when no completer is configured.
	ErrNoCompleter = errors.New("no completer configured")
)

// Router decides the recommendation path for a query.
type Router interface {
	Route(ctx context.Context, query string) routing.Decision
}

// Request is one reader's recommendation request.
type Request struct {
	Query        string                     `json:"query"`
	ReadingQueue []catalog.ReadingQueueItem `json:"reading_queue,omitempty"`
	Owned        []catalog.OwnedBook        `json:"owned,omitempty"`
}

// Result is the outcome of a request. Completion and Titles are empty for previews
// and degraded requests.
type Result struct {
	Decision   routing.Decision   `json:"decision"`
	Shortlist  *library.Shortlist `json:"-"`
	System     []prompt.Segment   `json:"system"`
	User       string             `json:"user"`
	Completion *llm.Completion    `json:"completion,omitempty"`
	Titles     []string           `json:"titles,omitempty"`
}

// ShortlistTitles returns the shortlisted titles, or nil when no shortlist was built.
func (r *Result) ShortlistTitles() []string {
	if r.Shortlist == nil {
		return nil
	}
	return r.Shortlist.Titles()
}

// Service serves recommendation requests over a fixed catalog.
type Service struct {
	logger    *observability.Logger
	router    Router
	completer llm.Completer
	books     []catalog.Book
	shortlist library.ShortlistOptions
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithShortlistOptions overrides shortlist bounds.
func WithShortlistOptions(opts library.ShortlistOptions) Option {
	return func(s *Service) { s.shortlist = opts }
}

// WithClock overrides the clock used for the reference year.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service. books is treated as read-only. completer may
// be nil when only previews are served.
func NewService(logger *observability.Logger, router Router, completer llm.Completer, books []catalog.Book, opts ...Option) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Service{
		logger:    logger.WithComponent("recommend"),
		router:    router,
		completer: completer,
		books:     books,
		shortlist: library.DefaultShortlistOptions(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CatalogSize returns the number of books the service recommends from.
func (s *Service) CatalogSize() int {
	return len(s.books)
}

// Route returns the routing decision for query.
func (s *Service) Route(ctx context.Context, query string) routing.Decision {
	return s.router.Route(ctx, query)
}

// Shortlist builds the catalog shortlist for query regardless of routing.
func (s *Service) Shortlist(query string) library.Shortlist {
	return library.BuildShortlist(query, s.books, s.shortlist)
}

// Preview routes, shortlists and assembles the prompt without calling the model.
func (s *Service) Preview(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}

	decision := s.router.Route(ctx, req.Query)

	res := &Result{Decision: decision}
	if decision.Path.UsesCatalog() {
		list := s.Shortlist(req.Query)
		res.Shortlist = &list
	}

	res.System = prompt.BuildSystemPrompt(prompt.SystemInput{
		Decision: decision,
		History:  req.ReadingQueue,
		Query:    req.Query,
		Now:      s.now(),
	})
	res.User = prompt.BuildUserMessage(prompt.UserInput{
		Decision:  decision,
		Shortlist: res.Shortlist,
		Owned:     req.Owned,
		Query:     req.Query,
	})

	s.logger.WithContext(ctx).Debug().
		Str("path", string(decision.Path)).
		Int("shortlist", len(res.ShortlistTitles())).
		Int("system_segments", len(res.System)).
		Msg("Prompt assembled")

	return res, nil
}

// Recommend runs Preview and sends the prompt to the completer. On completion
// failure it returns the assembled result together with ErrCompletionFailed.
func (s *Service) Recommend(ctx context.Context, req Request) (*Result, error) {
	res, err := s.Preview(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.completer == nil {
		return res, ErrNoCompleter
	}

	completion, err := s.completer.Complete(ctx, llm.Request{System: res.System, User: res.User})
	if err != nil {
		s.logger.WithContext(ctx).Warn().Err(err).Str("path", string(res.Decision.Path)).Msg("Completion failed")
		return res, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	res.Completion = completion
	res.Titles = ParseTitles(completion.Text)

	s.logger.WithContext(ctx).Info().
		Str("path", string(res.Decision.Path)).
		Str("reason", res.Decision.Reason).
		Int("titles", len(res.Titles)).
		Int64("input_tokens", completion.Usage.InputTokens).
		Int64("cache_read_tokens", completion.Usage.CacheReadInputTokens).
		Dur("latency", completion.Latency).
		Msg("Recommendation completed")

	return res, nil
}

var titleLine = regexp.MustCompile(`(?i)^[\s>*_#-]*(?:\d+[.)]\s*)?\**title\**\s*:\**\s*(.+?)\s*$`)

// ParseTitles extracts the values of "Title:" lines in reply order,
// stripping markdown emphasis and surrounding quotes.
func ParseTitles(reply string) []string {
	var titles []string
	for _, line := range strings.Split(reply, "\n") {
		m := titleLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		title := strings.Trim(m[1], "*_ \t")
		title = strings.Trim(title, `"“”'`)
		title = strings.TrimSpace(title)
		if title != "" {
			titles = append(titles, title)
		}
	}
	return titles
}
