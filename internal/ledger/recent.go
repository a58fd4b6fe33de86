package ledger

// MaxRecentNames caps the name suggestion list.
const MaxRecentNames = 8

// touchRecent moves name to the front of names, dropping any other spelling
// of the same student and anything past MaxRecentNames.
func touchRecent(names []string, name string) []string {
	display := DisplayName(name)
	key := NormalizeName(display)
	if key == "" {
		return names
	}
	out := make([]string, 0, MaxRecentNames)
	out = append(out, display)
	for _, n := range names {
		if len(out) == MaxRecentNames {
			break
		}
		if NormalizeName(n) == key {
			continue
		}
		out = append(out, n)
	}
	return out
}
