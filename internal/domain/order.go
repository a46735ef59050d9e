package domain

import "fmt"

// CheckPermutation verifies that next holds exactly the ids of current,
// each once, in any order.
func CheckPermutation(current, next []string) error {
	if len(current) != len(next) {
		return Invalid("ids", fmt.Sprintf("expected %d ids, got %d", len(current), len(next)))
	}
	want := make(map[string]bool, len(current))
	for _, id := range current {
		want[id] = true
	}
	for _, id := range next {
		if !want[id] {
			return Invalid("ids", fmt.Sprintf("unknown or repeated id %q", id))
		}
		delete(want, id)
	}
	return nil
}
