package settlement

// ResolveNames merges participant-name sources into one deduplicated list,
// preserving the order of first appearance across sources. Sources are given
// in inclusion priority order: event creator, persisted participant list,
// poll respondents, then expense payers and explicit members.
//
// A name is a name: no trimming beyond what callers do, no case folding, no
// fuzzy matching. The merge is monotonic by construction — every name from
// every source appears in the output.
func ResolveNames(sources ...[]string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, source := range sources {
		for _, name := range source {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
