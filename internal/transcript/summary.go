package transcript

import "strings"

// MergeSummariesFallback combines two summaries without calling a
// collaborator: concatenate, split into sentences, drop case-insensitive
// duplicate sentences keeping the first occurrence, and re-join in original
// order. Verbose compared to a semantic merge, but no fact is dropped.
func MergeSummariesFallback(prev, current string) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(prev); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(current); s != "" {
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return ""
	}

	sentences := splitSentences(strings.Join(parts, " "))

	seen := make(map[string]struct{}, len(sentences))
	deduped := make([]string, 0, len(sentences))
	for _, s := range sentences {
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, s)
	}

	return strings.Join(deduped, " ")
}

// splitSentences breaks text after sentence-terminal punctuation followed by
// whitespace. Trailing text without a terminator is kept as a sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\t' || runes[i+1] == '\n' {
				flush()
			}
		}
	}
	flush()

	return sentences
}
