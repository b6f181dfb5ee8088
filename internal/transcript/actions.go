package transcript

import "strings"

// actionKey normalizes an action item for duplicate comparison: internal
// whitespace collapsed, trailing punctuation stripped, lower-cased. The key
// is only used for matching; the kept entry is the original phrasing.
func actionKey(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".:;,-")
	return strings.ToLower(s)
}

// DedupeActions removes duplicate action items keeping the first-seen
// phrasing and order. Empty and whitespace-only entries are dropped. The
// operation is idempotent: applying it to its own output changes nothing.
func DedupeActions(actions []string) []string {
	seen := make(map[string]struct{}, len(actions))
	out := make([]string, 0, len(actions))

	for _, a := range actions {
		trimmed := strings.TrimSpace(a)
		if trimmed == "" {
			continue
		}
		key := actionKey(trimmed)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}

	return out
}

// AppendActions extends an existing deduplicated list with new items,
// keeping existing entries first and skipping any new item whose normalized
// form is already present.
func AppendActions(existing, incoming []string) []string {
	return DedupeActions(append(append([]string{}, existing...), incoming...))
}
