package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// tokenRegex matches letter/digit runs, keeping underscores for the second split.
var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// DefaultStopWords are dropped from both documents and queries.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"in", "is", "it", "of", "on", "or", "the", "to", "with",
}

// Tokenize lowercases text and splits it into terms. Identifiers such as
// productName or sku_code are also split on case and underscores, and the
// joined form is kept so exact identifier queries still match.
func Tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		parts := splitIdentifier(word)
		if len(parts) > 1 {
			if joined := strings.ToLower(strings.ReplaceAll(word, "_", "")); len([]rune(joined)) >= 2 {
				tokens = append(tokens, joined)
			}
		}
		for _, p := range parts {
			lower := strings.ToLower(p)
			if len([]rune(lower)) >= 2 || unicode.IsDigit([]rune(lower)[0]) {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitIdentifier(word string) []string {
	var out []string
	for _, part := range strings.Split(word, "_") {
		if part != "" {
			out = append(out, splitCamelCase(part)...)
		}
	}
	return out
}

// splitCamelCase splits "getUserById" into get/User/By/Id and keeps
// acronyms together ("HTTPHandler" -> HTTP/Handler).
func splitCamelCase(s string) []string {
	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if (prevIsLower || nextIsLower) && current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[token]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a lookup set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// FlattenText joins every scalar value of fields into one searchable string.
// Keys are visited in sorted order so the output is deterministic.
func FlattenText(fields map[string]any) string {
	var b strings.Builder
	flatten(&b, fields)
	return strings.TrimSpace(b.String())
}

func flatten(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
	case string:
		b.WriteString(val)
		b.WriteByte(' ')
	case bool:
	case float64:
		b.WriteString(fmt.Sprintf("%g ", val))
	case int, int64, int32:
		b.WriteString(fmt.Sprintf("%d ", val))
	case []any:
		for _, item := range val {
			flatten(b, item)
		}
	case []string:
		for _, item := range val {
			flatten(b, item)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(b, val[k])
		}
	default:
		b.WriteString(fmt.Sprint(val))
		b.WriteByte(' ')
	}
}
