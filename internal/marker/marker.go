// Package marker persists the version of a materialized source tree.
//
// The marker file is the consistency anchor of the whole tool: it is written
// only after a tree has been fully patched to the version it records, so a
// source directory without a marker is the signature of an interrupted run.
package marker

import (
	"os"
	"strings"

	"github.com/google/renameio"
	"github.com/jeanguyomarch/mktcb"
	"golang.org/x/xerrors"
)

// Exists reports whether the marker file is present. It agrees with Read: a
// present marker with unreadable or ill-formed contents makes Read fail, it
// does not make Exists return false.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Read loads and parses the marker. The contents are a single version in the
// three-field form; a torn or garbled file fails with mktcb.ErrBadVersion
// wrapped in the returned error.
func Read(path string) (mktcb.Version, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return mktcb.Version{}, xerrors.Errorf("reading version marker: %w", err)
	}
	v, err := mktcb.ParseVersion(strings.TrimRight(string(b), " \t\r\n"))
	if err != nil {
		return mktcb.Version{}, xerrors.Errorf("version marker %s: %w", path, err)
	}
	return v, nil
}

// Write records contents as the marker, atomically. Callers must only invoke
// this once the tree fully matches contents; it is the last step of every
// mutating transition.
func Write(path, contents string) error {
	if err := renameio.WriteFile(path, []byte(contents), 0644); err != nil {
		return xerrors.Errorf("writing version marker: %w", err)
	}
	return nil
}
