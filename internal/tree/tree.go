// Package tree implements the source-tree lifecycle: materializing an
// upstream source archive, rolling it forward through upstream incremental
// patches, applying the local patch set, and keeping the version marker
// consistent with what is on disk.
//
// The consistency discipline is marker-last: the marker is written only
// after every mutation for its version has completed, and all mutation runs
// under an interrupt guard. A source directory without a marker therefore
// identifies an interrupted run, and the engine refuses to touch it.
package tree

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jeanguyomarch/mktcb"
	"github.com/jeanguyomarch/mktcb/internal/archive"
	"github.com/jeanguyomarch/mktcb/internal/fetch"
	"github.com/jeanguyomarch/mktcb/internal/interrupt"
	"github.com/jeanguyomarch/mktcb/internal/marker"
	"github.com/jeanguyomarch/mktcb/internal/patch"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// ErrNotFetched is returned by operations that need a materialized source
// tree when none exists yet.
var ErrNotFetched = xerrors.New("source tree has not been fetched (run --fetch first)")

// CorruptError reports a source directory without a version marker: an
// earlier run was killed between mutating the tree and recording its
// version, and nothing on disk says how far it got.
type CorruptError struct {
	SourceDir string
	Marker    string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("source directory %s exists but version marker %s does not; "+
		"an earlier run was interrupted while patching and the tree state is unknown. "+
		"Remove %s and fetch again", e.SourceDir, e.Marker, e.SourceDir)
}

// Opts carries the directories a Tree operates on.
type Opts struct {
	// DownloadDir receives the source directory, the version marker and all
	// cached downloads.
	DownloadDir string
	// BuildDir is the out-of-tree build directory for this component (the
	// make O= argument), created by Reconfigure.
	BuildDir string
	// PatchesRoot is <library>/patches/<component>.
	PatchesRoot string
	// ConfigFile is the resolved prebuilt .config, or "" when the target
	// descriptor names none.
	ConfigFile string

	Client *http.Client
}

// Tree is the lifecycle engine for one source tree.
type Tree struct {
	flavor Flavor
	opts   Opts

	sourceDir  string
	markerPath string

	// version mirrors the marker while a Fetch is in flight.
	version mktcb.Version
}

// New returns the engine for the given flavor. It inspects nothing on disk.
func New(f Flavor, opts Opts) *Tree {
	sourceDir := filepath.Join(opts.DownloadDir, f.SourceDirName())
	return &Tree{
		flavor:     f,
		opts:       opts,
		sourceDir:  sourceDir,
		markerPath: sourceDir + ".version",
	}
}

// SourceDir returns the source directory, whether or not it exists yet.
func (t *Tree) SourceDir() string { return t.sourceDir }

// BuildDir returns the out-of-tree build directory.
func (t *Tree) BuildDir() string { return t.opts.BuildDir }

// Version reads the marker of a materialized tree.
func (t *Tree) Version() (mktcb.Version, error) {
	if !marker.Exists(t.markerPath) {
		return mktcb.Version{}, ErrNotFetched
	}
	return marker.Read(t.markerPath)
}

// CheckUpdate reports whether Fetch would change the tree. It never touches
// the filesystem: an absent marker means the null tree can be advanced to
// anything, otherwise the next incremental patch is probed upstream.
func (t *Tree) CheckUpdate() (bool, error) {
	if !marker.Exists(t.markerPath) {
		return true, nil
	}
	v, err := marker.Read(t.markerPath)
	if err != nil {
		return false, err
	}
	url, _, ok := t.flavor.NextPatch(v)
	if !ok {
		return false, nil
	}
	return fetch.Check(t.opts.Client, url), nil
}

// Fetch brings the tree to the most recent published upstream release, with
// the local patch set applied. On the first run it materializes the base
// archive; afterwards it applies upstream incremental patches one micro
// revision at a time, upstream diff first, local patches second, marker
// last.
func (t *Tree) Fetch() error {
	if !marker.Exists(t.markerPath) {
		if _, err := os.Stat(t.sourceDir); err == nil {
			return &CorruptError{SourceDir: t.sourceDir, Marker: t.markerPath}
		} else if !os.IsNotExist(err) {
			return err
		}
		if err := t.materialize(); err != nil {
			return err
		}
	} else {
		v, err := marker.Read(t.markerPath)
		if err != nil {
			return err
		}
		t.version = v
	}

	for {
		url, filename, ok := t.flavor.NextPatch(t.version)
		if !ok {
			return nil
		}
		if !fetch.Check(t.opts.Client, url) {
			zap.S().Infof("%s is at the latest published release, %s",
				t.flavor.Component(), t.flavor.Render(t.version))
			return nil
		}
		zap.S().Infof("upgrading %s from version %s", t.flavor.Component(), t.flavor.Render(t.version))
		path := filepath.Join(t.opts.DownloadDir, filename)
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				return err
			}
			if err := fetch.Download(t.opts.Client, url, path); err != nil {
				return err
			}
		}
		diff, err := archive.UnXz(path)
		if err != nil {
			return err
		}
		if err := t.applyIncrement(diff); err != nil {
			return err
		}
	}
}

// materialize downloads and extracts the base archive, then patches and
// records it as the base version.
func (t *Tree) materialize() error {
	url, filename := t.flavor.Archive()
	path := filepath.Join(t.opts.DownloadDir, filename)
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		zap.S().Infof("version marker %s not found, downloading %s", t.markerPath, url)
		if err := fetch.Download(t.opts.Client, url, path); err != nil {
			return err
		}
	}
	dir, err := archive.Untar(path)
	if err != nil {
		return err
	}
	if dir != t.sourceDir {
		return xerrors.Errorf("archive %s extracted to %s, want %s", filename, dir, t.sourceDir)
	}

	// The tree now exists without a marker. From here to the marker write a
	// signal must not kill the process, or the next run would see a tree it
	// cannot reason about.
	guard := interrupt.Lock()
	defer guard.Release()
	if err := t.Reconfigure(); err != nil {
		return err
	}
	t.version = t.flavor.BaseVersion()
	if err := t.applyLocalPatches(); err != nil {
		return err
	}
	return marker.Write(t.markerPath, t.flavor.Render(t.version))
}

// applyIncrement advances the tree by one micro revision: upstream diff,
// local patches for the new version, then the marker.
func (t *Tree) applyIncrement(diff string) error {
	guard := interrupt.Lock()
	defer guard.Release()
	if err := patch.Apply(t.sourceDir, diff); err != nil {
		return err
	}
	t.version = t.version.NextMicro()
	if err := t.applyLocalPatches(); err != nil {
		return err
	}
	return marker.Write(t.markerPath, t.flavor.Render(t.version))
}

func (t *Tree) applyLocalPatches() error {
	dir := filepath.Join(t.opts.PatchesRoot, t.flavor.PatchesSubdir(t.version))
	return patch.ApplyDir(dir, t.sourceDir)
}

// Reconfigure creates the build directory and copies the target's prebuilt
// .config into it, overwriting any previous copy. A target without a config
// only gets the directory.
func (t *Tree) Reconfigure() error {
	if err := os.MkdirAll(t.opts.BuildDir, 0755); err != nil {
		return xerrors.Errorf("creating build directory: %w", err)
	}
	if t.opts.ConfigFile == "" {
		zap.S().Debugf("no build configuration for %s", t.flavor.Component())
		return nil
	}
	dst := filepath.Join(t.opts.BuildDir, ".config")
	zap.S().Infof("copying configuration %s to %s", t.opts.ConfigFile, dst)
	if err := copyFile(t.opts.ConfigFile, dst); err != nil {
		return xerrors.Errorf("copying build configuration: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
