// Package library ranks the curated catalog against free-text queries and
// renders the shortlist handed to the recommendation model.
package library

import (
	"strings"
	"unicode"
)

// StopWords are dropped by Tokenize. The set mixes ordinary English function
// words with request filler ("book", "recommend") that matches everything.
var StopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "can": {}, "could": {}, "do": {}, "for": {}, "from": {},
	"get": {}, "give": {}, "has": {}, "have": {}, "how": {}, "i": {},
	"if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "just": {},
	"like": {}, "looking": {}, "me": {}, "more": {}, "my": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "read": {}, "reading": {}, "some": {}, "something": {},
	"suggest": {}, "that": {}, "the": {}, "their": {}, "them": {}, "these": {},
	"this": {}, "those": {}, "to": {}, "want": {}, "was": {}, "what": {},
	"which": {}, "who": {}, "with": {}, "would": {}, "you": {}, "your": {},
	"book": {}, "books": {}, "novel": {}, "novels": {}, "recommend": {},
	"recommendation": {}, "recommendations": {}, "about": {}, "any": {},
	"good": {}, "great": {}, "please": {}, "similar": {},
}

// IsStopWord reports whether the lowercase word is in StopWords.
func IsStopWord(word string) bool {
	_, ok := StopWords[word]
	return ok
}

// Tokenize lowercases text and splits it into letter/digit/hyphen tokens,
// dropping stop words and single-rune tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-')
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if len([]rune(f)) < 2 || IsStopWord(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// NormalizeTitle produces a comparison form of a title or author name:
// bracketed and parenthetical annotations removed, punctuation replaced by
// spaces, whitespace collapsed, lowercased.
func NormalizeTitle(s string) string {
	s = stripBracketed(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		// apostrophes join rather than split ("Sarah's" -> "sarahs")
		if r == '\'' || r == '’' {
			continue
		}
		b.WriteRune(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// BookKey is the case-insensitive title+author dedupe key.
func BookKey(title, author string) string {
	return NormalizeTitle(title) + "|" + NormalizeTitle(author)
}

// stripBracketed removes (...) and [...] spans. Unbalanced openers drop the
// remainder of the string; stray closers are ignored.
func stripBracketed(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
			continue
		case ')', ']':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
