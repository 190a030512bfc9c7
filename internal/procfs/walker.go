package procfs

// Ancestry is the slice of Inspector the ancestor walk needs. Tests
// substitute a fake process tree.
type Ancestry interface {
	MatchesTarget(pid int) bool
	ParentPID(pid int) (int, bool)
}

// DefaultMaxHops bounds the ancestor walk. Twenty levels covers any
// realistic shell/multiplexer nesting while keeping a corrupted process
// tree from costing unbounded work.
const DefaultMaxHops = 20

// FindAncestor climbs the process ancestry starting at (and including)
// start, returning the first PID whose metadata matches the target.
// Each hop re-queries live metadata. The walk keeps a visited set: a
// recurring PID means the OS reported a parent cycle, and the walk stops
// with no match instead of looping. Running out of ancestors is an
// expected terminal condition, not an error.
func FindAncestor(a Ancestry, start, maxHops int) (int, bool) {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	visited := make(map[int]bool, maxHops)
	pid := start
	for hop := 0; hop < maxHops; hop++ {
		if pid <= 0 || visited[pid] {
			return 0, false
		}
		visited[pid] = true

		if a.MatchesTarget(pid) {
			return pid, true
		}

		parent, ok := a.ParentPID(pid)
		if !ok {
			return 0, false
		}
		pid = parent
	}
	return 0, false
}
