package discussion

import "regexp"

// mentionRegex matches @name tokens. The \B keeps a word character from
// preceding the @, so "test@example.com" is not a mention while "(@alice)"
// is. The capture stops at the first non-word character: "@user@domain"
// yields "user", not "user@domain".
var mentionRegex = regexp.MustCompile(`\B@(\w+)`)

// ExtractMentions scans content for @name tokens and returns the mentioned
// names, deduplicated, in first-occurrence order. Matching is case-sensitive.
func ExtractMentions(content string) []string {
	matches := mentionRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		mentions = append(mentions, name)
	}
	return mentions
}
