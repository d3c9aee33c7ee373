// Package toolchain materializes the cross-compilation toolchain referenced
// by a target descriptor.
package toolchain

import (
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/jeanguyomarch/mktcb/internal/archive"
	"github.com/jeanguyomarch/mktcb/internal/config"
	"github.com/jeanguyomarch/mktcb/internal/fetch"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// Toolchain is a cross-toolchain archive unpacked into the download
// directory.
type Toolchain struct {
	// CrossCompile is the absolute tool prefix passed to make as
	// CROSS_COMPILE=, e.g. <dir>/bin/arm-linux-gnueabihf-.
	CrossCompile string

	url         string
	archivePath string
	dir         string
	client      *http.Client
}

// New derives the on-disk layout from the toolchain descriptor. The archive
// is assumed to unpack to its own name minus the .tar.* suffix.
func New(cfg *config.Config, client *http.Client) (*Toolchain, error) {
	u, err := url.Parse(cfg.Toolchain.URL)
	if err != nil {
		return nil, xerrors.Errorf("toolchain url: %w", err)
	}
	file := path.Base(u.Path)
	if file == "." || file == "/" {
		return nil, xerrors.Errorf("toolchain url %q has no file component", cfg.Toolchain.URL)
	}
	archivePath := filepath.Join(cfg.DownloadDir, file)
	dir := archive.TrimSuffix(archivePath)
	return &Toolchain{
		CrossCompile: filepath.Join(dir, cfg.Toolchain.CrossCompile),
		url:          cfg.Toolchain.URL,
		archivePath:  archivePath,
		dir:          dir,
		client:       client,
	}, nil
}

// Fetch downloads and unpacks the toolchain unless it is already present.
func (t *Toolchain) Fetch() error {
	if _, err := os.Stat(t.dir); err == nil {
		return nil
	}
	if _, err := os.Stat(t.archivePath); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		zap.S().Infof("downloading toolchain from %s", t.url)
		if err := fetch.Download(t.client, t.url, t.archivePath); err != nil {
			return err
		}
	}
	dir, err := archive.Untar(t.archivePath)
	if err != nil {
		return err
	}
	if dir != t.dir {
		return xerrors.Errorf("toolchain unpacked to %s, want %s", dir, t.dir)
	}
	return nil
}
