package cache

// State is the leaderboard builder's progress through a rebuild.
type State int32

const (
	StateIdle State = iota
	StateFetchingSource
	StateSourceMissing
	StateSourceFound
	StateScoring
	StateReplacing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingSource:
		return "fetching_source_set"
	case StateSourceMissing:
		return "source_missing"
	case StateSourceFound:
		return "source_found"
	case StateScoring:
		return "scoring"
	case StateReplacing:
		return "replacing_structure"
	default:
		return "unknown"
	}
}
