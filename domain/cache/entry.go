package cache

import "time"

// Entry holds the cached payload for one key together with its freshness
// metadata and version counter. The version is monotonic: it is bumped on
// every successful write and is never decremented, which is the invariant
// all rollback logic depends on.
type Entry struct {
	Key         Key           `json:"key"`
	Data        []Record      `json:"data"`
	Version     int64         `json:"version"`
	LastUpdated time.Time     `json:"last_updated"`
	StaleAfter  time.Duration `json:"stale_after"`
	Invalidated bool          `json:"invalidated"`
}

// IsStale reports whether the entry's data is outdated and eligible for a
// background refetch, either because it was explicitly invalidated or
// because it aged past its stale-after window.
func (e Entry) IsStale(now time.Time) bool {
	if e.Invalidated {
		return true
	}
	if e.StaleAfter <= 0 {
		return false
	}
	return now.Sub(e.LastUpdated) >= e.StaleAfter
}

// clone returns a deep copy so readers never alias store-owned data
func (e Entry) clone() Entry {
	cloned := e
	cloned.Data = CloneRecords(e.Data)
	return cloned
}
