package override

// Glob filters names with simple patterns supporting '*' and '?'.
type Glob struct {
	Include []string
	Exclude []string
}

// Matches reports whether name matches an include pattern and no exclude
// pattern.
func (g Glob) Matches(name string) bool {
	return matchesAny(name, g.Include) && !matchesAny(name, g.Exclude)
}

// Filter returns the names matching the pattern, preserving order.
func (g Glob) Filter(names []string) []string {
	var out []string

	for _, name := range names {
		if g.Matches(name) {
			out = append(out, name)
		}
	}

	return out
}

func matchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if globMatch(pattern, name) {
			return true
		}
	}

	return false
}

// globMatch implements iterative wildcard matching with backtracking on the
// last '*'.
func globMatch(pattern, text string) bool {
	pr := []rune(pattern)
	tr := []rune(text)

	pi, ti := 0, 0
	starPi, starTi := -1, -1

	for ti < len(tr) {
		switch {
		case pi < len(pr) && (pr[pi] == '?' || pr[pi] == tr[ti]):
			pi++
			ti++
		case pi < len(pr) && pr[pi] == '*':
			starPi = pi
			starTi = ti
			pi++
		case starPi >= 0:
			pi = starPi + 1
			starTi++
			ti = starTi
		default:
			return false
		}
	}

	for pi < len(pr) && pr[pi] == '*' {
		pi++
	}

	return pi == len(pr)
}
