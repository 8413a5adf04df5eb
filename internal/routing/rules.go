package routing

import (
	"regexp"
	"strings"
)

// Rule is one pre-filter pattern group. Rules are evaluated in table order
// and the first match wins.
type Rule struct {
	Name     string
	Path     Path
	Reason   string
	patterns []*regexp.Regexp
}

// Match reports whether the lowercased query matches any of the rule's patterns.
func (r Rule) Match(query string) bool {
	for _, p := range r.patterns {
		if p.MatchString(query) {
			return true
		}
	}
	return false
}

func newRule(name string, path Path, reason string, exprs ...string) Rule {
	r := Rule{Name: name, Path: path, Reason: reason}
	for _, e := range exprs {
		r.patterns = append(r.patterns, regexp.MustCompile(e))
	}
	return r
}

// DefaultRules returns the pre-filter table in priority order.
func DefaultRules() []Rule {
	return []Rule{
		newRule("new_author", PathTemporal, ReasonNewAuthorPattern,
			`\bnew (book|novel|release|memoir) (by|from)\b`,
			`\b[a-z]+'s (new|latest|newest) (book|novel|release|memoir)\b`,
			`\b(newest|latest)\b.*\bby\b`,
		),
		newRule("temporal", PathTemporal, ReasonTemporalKeyword,
			`\b(new|latest|newest|upcoming)\b`,
			`\b(just|recently) (published|released|out)\b`,
			`\bnew releases?\b`,
			`\bthis (year|month|season)\b`,
			`\bcoming out\b`,
		),
		newRule("world", PathWorld, ReasonWorldKeyword,
			`\bbest[- ]?sellers?\b`,
			`\bbest[- ]?selling\b`,
			`\baward[- ](winners?|winning)\b`,
			`\bpulitzer\b`,
			`\bbooker\b`,
			`\bnational book award\b`,
			`\btrending\b`,
			`\bviral\b`,
			`\bbooktok\b`,
			`\bthrillers?\b`,
			`\bsci[- ]?fi\b`,
			`\bscience fiction\b`,
			`\bcozy myster(y|ies)\b`,
		),
		newRule("outside_catalog", PathWorld, ReasonOutsideCatalog,
			`\b(japan|japanese|china|chinese|india|indian|korea|korean|vietnam|russia|russian|france|french|italy|italian|germany|german|spain|spanish|mexico|mexican|brazil|nigeria|nigerian|egypt|ireland|irish|iran|ukraine|argentina|australia)\b`,
			`\b(1[0-9]|20)[0-9]0s\b`,
			`\b(victorian|edwardian|elizabethan|regency|medieval|renaissance|tudor|ancient rome|ancient greece)\b`,
			`\b(civil war|world war (i|ii|one|two|1|2)|world war|wwi|wwii|ww1|ww2|cold war|great depression)\b`,
		),
		newRule("catalog", PathCatalog, ReasonCatalogKeyword,
			`\byour (collection|library|catalog|catalogue|list|favorites|favourites|shelf|shelves|picks|books)\b`,
			`\bsarah'?s (picks|books|library|collection|favorites|favourites|list)\b`,
		),
	}
}

// normalizeQuery lowercases the query and folds typographic apostrophes.
func normalizeQuery(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = strings.NewReplacer("’", "'", "‘", "'").Replace(q)
	return strings.Join(strings.Fields(q), " ")
}

// Prefilter returns the first rule matching query, or false when none match.
func Prefilter(rules []Rule, query string) (Rule, bool) {
	q := normalizeQuery(query)
	for _, r := range rules {
		if r.Match(q) {
			return r, true
		}
	}
	return Rule{}, false
}
