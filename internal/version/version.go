// Package version holds the release version of the enricher.
package version

// Current is bumped on release. It carries no "v" prefix.
const Current = "0.1.0"

// String is the user-facing form printed by `enricher version`.
func String() string {
	return "enricher " + Current
}
