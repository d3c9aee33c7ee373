package fetch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func statusServer(t *testing.T, code int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck(t *testing.T) {
	for _, tt := range []struct {
		code int
		want bool
	}{
		{code: http.StatusOK, want: true},
		{code: http.StatusIMUsed, want: true},
		{code: http.StatusNotFound, want: false},
		{code: http.StatusInternalServerError, want: false},
		{code: http.StatusForbidden, want: false},
		{code: http.StatusMovedPermanently, want: false},
	} {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := statusServer(t, tt.code, "")
			if got := Check(NewClient(), srv.URL); got != tt.want {
				t.Fatalf("Check(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestCheckUnreachable(t *testing.T) {
	srv := statusServer(t, http.StatusOK, "")
	url := srv.URL
	srv.Close()
	if Check(NewClient(), url) {
		t.Fatal("Check reported a file present on an unreachable server")
	}
}

func TestDownload(t *testing.T) {
	const body = "patch contents\n"
	srv := statusServer(t, http.StatusOK, body)
	path := filepath.Join(t.TempDir(), "patch-5.4.1.xz")
	if err := Download(NewClient(), srv.URL, path); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != body {
		t.Fatalf("downloaded %q, want %q", got, body)
	}
}

func TestDownloadStatusError(t *testing.T) {
	srv := statusServer(t, http.StatusInternalServerError, "")
	path := filepath.Join(t.TempDir(), "out")
	err := Download(NewClient(), srv.URL, path)
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("Download = %v, want StatusError", err)
	}
	if got, want := serr.Code, http.StatusInternalServerError; got != want {
		t.Fatalf("StatusError.Code = %d, want %d", got, want)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("failed download left %s behind", path)
	}
}

func TestDownloadLeavesNoPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("short"))
	}))
	defer srv.Close()
	path := filepath.Join(t.TempDir(), "out")
	if err := Download(NewClient(), srv.URL, path); err == nil {
		t.Fatal("Download of a truncated body succeeded")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("truncated download left %s behind", path)
	}
}
