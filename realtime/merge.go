package realtime

// MergeByID appends the items of incoming whose id is not already present in
// existing (or earlier in incoming), preserving order. It reconciles rows that
// arrive both from a direct read and from a change event.
func MergeByID[T any](existing, incoming []T, id func(T) string) []T {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, item := range existing {
		seen[id(item)] = struct{}{}
	}

	out := existing
	for _, item := range incoming {
		key := id(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
