// Package archive extracts upstream release archives. Tarballs go through
// tar(1) like the rest of the external tooling; .xz patch files are decoded
// natively so the tool does not also depend on the xz binary.
package archive

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/ulikunitz/xz"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// TrimSuffix removes the archive file extensions from fn, e.g.
// linux-5.4.tar.xz becomes linux-5.4.
func TrimSuffix(fn string) string {
	for _, suffix := range []string{"xz", "bz2", "gz", "tar"} {
		fn = strings.TrimSuffix(fn, "."+suffix)
	}
	return fn
}

// Untar extracts the archive at path into its containing directory and
// returns the extracted directory. Upstream kernel and U-Boot archives
// extract to exactly their own name minus the .tar.* suffix; anything else
// is an error.
func Untar(path string) (string, error) {
	zap.S().Infof("extracting %s", path)
	cmd := exec.Command("tar", "-C", filepath.Dir(path), "-xf", path)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", xerrors.Errorf("%v: %w", cmd.Args, err)
	}
	dir := TrimSuffix(path)
	st, err := os.Stat(dir)
	if err != nil {
		return "", xerrors.Errorf("archive %s did not extract to %s: %w", path, dir, err)
	}
	if !st.IsDir() {
		return "", xerrors.Errorf("archive %s did not extract to a directory at %s", path, dir)
	}
	return dir, nil
}

// UnXz decodes the .xz file at path into a sibling file without the .xz
// suffix and returns its path.
func UnXz(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	r, err := xz.NewReader(f)
	if err != nil {
		return "", xerrors.Errorf("decoding %s: %w", path, err)
	}
	out := strings.TrimSuffix(path, ".xz")
	t, err := renameio.TempFile("", out)
	if err != nil {
		return "", err
	}
	defer t.Cleanup()
	if _, err := io.Copy(t, r); err != nil {
		return "", xerrors.Errorf("decoding %s: %w", path, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return "", err
	}
	return out, nil
}
