// Package patch applies diff files to a source tree via patch(1).
package patch

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// Apply runs patch(1) on sourceDir with the given diff file. A non-zero exit
// is fatal: the tree may already contain a partial application and no
// automatic recovery is attempted.
func Apply(sourceDir, diff string) error {
	zap.S().Debugf("applying %s to %s", diff, sourceDir)
	cmd := exec.Command("patch", "-s", "-p1", "-i", diff)
	cmd.Dir = sourceDir
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return xerrors.Errorf("applying %s to %s: %v: %w", diff, sourceDir, cmd.Args, err)
	}
	return nil
}

// ApplyDir applies every regular file in dir to sourceDir, in lexical order.
// A missing dir is an empty patch set and succeeds. The first failing diff
// aborts the whole application.
func ApplyDir(dir, sourceDir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			zap.S().Debugf("no patches in %s", dir)
			return nil
		}
		return xerrors.Errorf("enumerating patches: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		diff := filepath.Join(dir, name)
		zap.S().Infof("applying patch %s", diff)
		if err := Apply(sourceDir, diff); err != nil {
			return err
		}
	}
	return nil
}
