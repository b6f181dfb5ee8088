package transcript

// ReconcileSpeakers extends the session speaker registry with any labels
// from a newly processed chunk that are not already present, in the order
// they first appear within the chunk. Existing entries are never removed,
// renamed, or reordered; matching is by label identity only, not by voice.
func ReconcileSpeakers(registry []string, chunkSpeakers []string) []string {
	known := make(map[string]struct{}, len(registry))
	for _, s := range registry {
		known[s] = struct{}{}
	}

	out := make([]string, len(registry), len(registry)+len(chunkSpeakers))
	copy(out, registry)

	for _, s := range chunkSpeakers {
		if _, ok := known[s]; ok {
			continue
		}
		known[s] = struct{}{}
		out = append(out, s)
	}

	return out
}

// ChunkSpeakers returns the distinct speaker labels of a chunk's lines in
// first-appearance order.
func ChunkSpeakers(lines []Line) []string {
	seen := make(map[string]struct{}, len(lines))
	var out []string
	for _, ln := range lines {
		if _, ok := seen[ln.Speaker]; ok {
			continue
		}
		seen[ln.Speaker] = struct{}{}
		out = append(out, ln.Speaker)
	}
	return out
}
