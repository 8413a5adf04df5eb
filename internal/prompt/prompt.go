// Package prompt assembles the system prompt segments and user message sent
// to the completion model.
package prompt

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/library"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/routing"
)

//go:embed instructions.tmpl
var instructionsText string

var instructionsTmpl = template.Must(template.New("instructions").Parse(instructionsText))

// MaxOwnedExclusions caps the owned-books list in the user message.
const MaxOwnedExclusions = 12

// Segment is one block of the system prompt. Cacheable segments are static
// or slowly changing and may be marked for provider-side prompt caching.
type Segment struct {
	Text      string `json:"text"`
	Cacheable bool   `json:"cacheable"`
}

// SystemInput holds what the system prompt depends on.
type SystemInput struct {
	Decision routing.Decision
	History  []catalog.ReadingQueueItem
	Query    string
	Now      time.Time
}

// UserInput holds what the user message depends on.
type UserInput struct {
	Decision  routing.Decision
	Shortlist *library.Shortlist
	Owned     []catalog.OwnedBook
	Query     string
}

var pathInstructions = map[routing.Path]string{
	routing.PathCatalog: "Recommend only books from Sarah's curated library, which is listed in the user message. " +
		"Use the descriptions provided and do not recommend anything that is not on that list.",
	routing.PathHybrid: "Start from Sarah's curated library, which is listed in the user message. " +
		"At least two recommendations must come from that list; the third may come from outside it when it is a clearly better fit.",
	routing.PathWorld: "Sarah's curated library is not a strong match for this request. " +
		"Draw on your broad knowledge of published books and choose well-regarded titles that fit the request closely.",
	routing.PathTemporal: "The reader is asking about new or upcoming releases. " +
		"Prefer books published in or just before the reference year. If you are not certain a book has been published, say so in its Why line rather than inventing details.",
}

// BuildSystemPrompt returns the system segments in order: instructions with
// the response format, path instructions, then one segment per non-empty
// reading-history group.
func BuildSystemPrompt(in SystemInput) []Segment {
	segments := []Segment{
		{Text: staticInstructions(ReferenceYear(in.Query, in.Now)), Cacheable: true},
	}

	path := in.Decision.Path
	if !path.Valid() {
		path = routing.PathWorld
	}
	segments = append(segments, Segment{Text: pathInstructions[path], Cacheable: true})

	return append(segments, historySegments(in.History)...)
}

func staticInstructions(year int) string {
	var b strings.Builder
	if err := instructionsTmpl.Execute(&b, struct{ Year int }{year}); err != nil {
		// the template is embedded and only references Year
		panic(fmt.Sprintf("render instructions: %v", err))
	}
	return strings.TrimSpace(b.String())
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// ReferenceYear returns the first explicit year named in query, or the year of now.
// A zero now means the current time.
func ReferenceYear(query string, now time.Time) int {
	if m := yearPattern.FindString(query); m != "" {
		if y, err := strconv.Atoi(m); err == nil {
			return y
		}
	}
	if now.IsZero() {
		now = time.Now()
	}
	return now.Year()
}

func historySegments(history []catalog.ReadingQueueItem) []Segment {
	var loved, liked, disliked, read []string
	seen := map[string]map[string]bool{
		"loved": {}, "liked": {}, "disliked": {}, "read": {},
	}
	add := func(group string, list *[]string, item catalog.ReadingQueueItem) {
		key := library.BookKey(item.BookTitle, item.BookAuthor)
		if seen[group][key] {
			return
		}
		seen[group][key] = true
		*list = append(*list, item.Label())
	}

	for _, item := range history {
		if strings.TrimSpace(item.BookTitle) == "" {
			continue
		}
		switch {
		case item.Rating == 5:
			add("loved", &loved, item)
		case item.Rating == 4:
			add("liked", &liked, item)
		case item.Rating == 1 || item.Rating == 2:
			add("disliked", &disliked, item)
		}
		if item.Status.IsRead() {
			add("read", &read, item)
		}
	}

	var segments []Segment
	if len(loved) > 0 {
		segments = append(segments, listSegment(
			"The reader loved these books (5 stars). Look for recommendations that share their strengths:", loved))
	}
	if len(liked) > 0 {
		segments = append(segments, listSegment(
			"The reader liked these books (4 stars):", liked))
	}
	if len(disliked) > 0 {
		segments = append(segments, listSegment(
			"The reader disliked these books (1-2 stars). Avoid similar themes and styles:", disliked))
	}
	if len(read) > 0 {
		segments = append(segments, listSegment(
			"The reader has already read these books. Never recommend any of them:", read))
	}
	return segments
}

func listSegment(header string, items []string) Segment {
	var b strings.Builder
	b.WriteString(header)
	for _, it := range items {
		b.WriteString("\n- ")
		b.WriteString(it)
	}
	return Segment{Text: b.String(), Cacheable: true}
}

// BuildUserMessage joins, in order, the shortlist (CATALOG and HYBRID only),
// the owned-books exclusion list and the verbatim request.
func BuildUserMessage(in UserInput) string {
	var blocks []string

	if in.Decision.Path.UsesCatalog() && in.Shortlist != nil {
		blocks = append(blocks, in.Shortlist.Render())
	}

	if owned := ownedExclusions(in.Owned); len(owned) > 0 {
		var b strings.Builder
		b.WriteString("The reader already owns these books. Do not recommend them:")
		for _, o := range owned {
			b.WriteString("\n- ")
			b.WriteString(o)
		}
		blocks = append(blocks, b.String())
	}

	blocks = append(blocks, "User request: "+in.Query)
	return strings.Join(blocks, "\n\n")
}

func ownedExclusions(owned []catalog.OwnedBook) []string {
	seen := make(map[string]bool, len(owned))
	var out []string
	for _, o := range owned {
		if len(out) == MaxOwnedExclusions {
			break
		}
		if strings.TrimSpace(o.Title) == "" {
			continue
		}
		key := library.BookKey(o.Title, o.Author)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, o.Label())
	}
	return out
}

// SystemText concatenates segments for logging and previews.
func SystemText(segments []Segment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, "\n\n")
}
