package utils

import (
	"regexp"
	"strings"
)

var (
	hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_.]+)`)
)

// ExtractHashtags returns the distinct lowercased hashtags of text, in order of appearance
func ExtractHashtags(text string) []string {
	return distinctMatches(hashtagPattern, text)
}

// ExtractMentions returns the distinct lowercased @handles of text, in order of appearance
func ExtractMentions(text string) []string {
	return distinctMatches(mentionPattern, text)
}

func distinctMatches(re *regexp.Regexp, text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v := strings.ToLower(strings.TrimRight(m[1], "."))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Excerpt shortens text to at most n runes, marking the cut with an ellipsis
func Excerpt(text string, n int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "…"
}
