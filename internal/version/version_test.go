package version

import (
	"regexp"
	"strings"
	"testing"
)

func TestCurrentIsSemverWithoutVPrefix(t *testing.T) {
	semver := regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)
	if !semver.MatchString(Current) {
		t.Fatalf("Current=%q must match <major>.<minor>.<patch>", Current)
	}
}

func TestString(t *testing.T) {
	if got := String(); !strings.HasSuffix(got, " "+Current) {
		t.Fatalf("String()=%q must end with the current version", got)
	}
}
