package mktcb

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// ErrBadVersion is wrapped by all version parse failures, including
// ill-formed contents of a version marker file.
var ErrBadVersion = xerrors.New("bad version format")

// Version identifies one release of an upstream source tree, e.g. the Linux
// kernel 5.4.17. Micro is 0 when the version was specified in the two-field
// M.N form.
type Version struct {
	Major int
	Minor int
	Micro int
}

// ParseVersion accepts both the two-field form (M.N, as found in a target
// descriptor) and the three-field form (M.N.P, as found in a version marker
// file).
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if got := len(parts); got != 2 && got != 3 {
		return Version{}, xerrors.Errorf("%q has %d fields, want 2 or 3: %w", s, got, ErrBadVersion)
	}
	num := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, xerrors.Errorf("%q: field %q is not a version number: %w", s, part, ErrBadVersion)
		}
		num[i] = n
	}
	v := Version{Major: num[0], Minor: num[1]}
	if len(num) == 3 {
		v.Micro = num[2]
	}
	if v.Major < 1 {
		return Version{}, xerrors.Errorf("%q: major version must be at least 1: %w", s, ErrBadVersion)
	}
	return v, nil
}

// String renders the full three-field form, e.g. "5.4.0".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
}

// Series renders the two-field form identifying the base release, e.g. "5.4".
func (v Version) Series() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// NextMicro returns the version advanced by one upstream incremental patch.
func (v Version) NextMicro() Version {
	return Version{Major: v.Major, Minor: v.Minor, Micro: v.Micro + 1}
}

// Less returns true if v precedes o in release order.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Micro < o.Micro
}
