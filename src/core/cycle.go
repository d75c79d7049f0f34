package core

import "strings"

// cycleError builds a CycleDetected error from the chain of names that
// closes a cycle (the repeated name appears as both the first and last
// element). Grounded on please's cycle_detector.go, which reconstructs
// and prints the full chain rather than just naming the two endpoints.
func cycleError(chain []QualifiedName) error {
	labels := make([]string, len(chain))
	for i, n := range chain {
		labels[i] = n.String()
	}
	return NewError(CycleDetected, "dependency cycle found:\n %s", strings.Join(labels, "\n -> "))
}

// CyclePath extracts the ordered chain of names from a CycleDetected
// error produced by cycleError, letting callers (the CLI, tests) report
// or assert on the exact path rather than just the error text. Returns
// nil if err isn't a CycleDetected error produced by this package.
func CyclePath(err error) []string {
	e, ok := err.(*Error)
	if !ok || e.Kind != CycleDetected {
		return nil
	}
	msg := strings.TrimPrefix(e.Message, "dependency cycle found:\n ")
	return strings.Split(msg, "\n -> ")
}
