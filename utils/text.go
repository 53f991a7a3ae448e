package utils

import (
	"regexp"
	"sort"
	"strings"
)

var (
	hashtagRegex = regexp.MustCompile(`#(\w+)`)
	mentionRegex = regexp.MustCompile(`@(\w+)`)
)

// TextPart is one segment of rendered post or comment text.
type TextPart struct {
	Type     string `json:"type"` // text, hashtag or mention
	Content  string `json:"content"`
	Hashtag  string `json:"hashtag,omitempty"`
	Username string `json:"username,omitempty"`
}

// ExtractHashtags returns the distinct hashtags in text, lower-cased, in order
// of first appearance.
func ExtractHashtags(text string) []string {
	return uniqueMatches(hashtagRegex, text, true)
}

// ExtractMentions returns the distinct mentioned usernames in order of first
// appearance.
func ExtractMentions(text string) []string {
	return uniqueMatches(mentionRegex, text, false)
}

func uniqueMatches(re *regexp.Regexp, text string, lower bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v := m[1]
		if lower {
			v = strings.ToLower(v)
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// SplitText segments text into plain text, hashtag and mention parts. Text
// with neither yields a single text part.
func SplitText(text string) []TextPart {
	type match struct {
		start, end int
		part       TextPart
	}

	var matches []match
	for _, loc := range hashtagRegex.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, match{loc[0], loc[1], TextPart{
			Type: "hashtag", Content: text[loc[0]:loc[1]], Hashtag: text[loc[2]:loc[3]],
		}})
	}
	for _, loc := range mentionRegex.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, match{loc[0], loc[1], TextPart{
			Type: "mention", Content: text[loc[0]:loc[1]], Username: text[loc[2]:loc[3]],
		}})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	var parts []TextPart
	last := 0
	for _, m := range matches {
		if m.start < last {
			continue
		}
		if m.start > last {
			parts = append(parts, TextPart{Type: "text", Content: text[last:m.start]})
		}
		parts = append(parts, m.part)
		last = m.end
	}
	if last < len(text) {
		parts = append(parts, TextPart{Type: "text", Content: text[last:]})
	}

	if len(parts) == 0 {
		return []TextPart{{Type: "text", Content: text}}
	}
	return parts
}

// CountHashtags tallies hashtags across texts and returns the top n by count,
// ties broken alphabetically.
func CountHashtags(texts []string, n int) []HashtagCount {
	counts := make(map[string]int)
	for _, t := range texts {
		for _, tag := range ExtractHashtags(t) {
			counts[tag]++
		}
	}

	out := make([]HashtagCount, 0, len(counts))
	for tag, c := range counts {
		out = append(out, HashtagCount{Hashtag: tag, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hashtag < out[j].Hashtag
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

type HashtagCount struct {
	Hashtag string `json:"hashtag"`
	Count   int    `json:"count"`
}
