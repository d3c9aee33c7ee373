// Package fetch probes and downloads upstream release artifacts over HTTP.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/renameio"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/xerrors"
)

// StatusError reports a download that completed with an unexpected HTTP
// status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downloading %s: unexpected HTTP status %d", e.URL, e.Code)
}

// NewClient returns the http client used for all upstream requests.
// Compression must be disabled: kernel.org serves .tar.xz and .xz files, and
// transparent gzip handling in http.DefaultTransport can hand us a silently
// decompressed body.
func NewClient() *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableCompression = true
	return &http.Client{Transport: t}
}

// ok reports whether code is a success status. 226 shows up on mirrors
// fronting FTP trees and counts as success.
func ok(code int) bool {
	return code == http.StatusOK || code == http.StatusIMUsed
}

// Check probes url and reports whether the file is published there. 200 and
// 226 mean present, 404 means absent. Every other outcome, transport errors
// included, is reported as absent: an unreachable mirror must read as "no
// update", never as an update to chase. Hard failures surface later, on the
// download path.
func Check(client *http.Client, url string) bool {
	resp, err := client.Head(url)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return ok(resp.StatusCode)
}

// Download streams url into path, replacing it atomically on success. The
// final status must be 200 or 226; anything else fails with a StatusError.
// Progress is printed while stderr is a terminal.
func Download(client *http.Client, url, path string) error {
	resp, err := client.Get(url)
	if err != nil {
		return xerrors.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if !ok(resp.StatusCode) {
		return &StatusError{URL: url, Code: resp.StatusCode}
	}

	t, err := renameio.TempFile("", path)
	if err != nil {
		return xerrors.Errorf("downloading %s: %w", url, err)
	}
	defer t.Cleanup()

	var w io.Writer = t
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar := progressbar.DefaultBytes(resp.ContentLength, "downloading")
		defer bar.Close()
		w = io.MultiWriter(t, bar)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return xerrors.Errorf("downloading %s: %w", url, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return xerrors.Errorf("downloading %s: %w", url, err)
	}
	return nil
}
