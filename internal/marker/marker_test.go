package marker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jeanguyomarch/mktcb"
)

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linux-5.4.version")
	if err := Write(path, "5.4.2"); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := (mktcb.Version{Major: 5, Minor: 4, Micro: 2}); got != want {
		t.Fatalf("Read = %v, want %v", got, want)
	}
	// No trailing newline.
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "5.4.2" {
		t.Fatalf("marker contents = %q, want %q", b, "5.4.2")
	}
}

func TestReadTrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linux-5.4.version")
	if err := os.WriteFile(path, []byte("5.4.2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := (mktcb.Version{Major: 5, Minor: 4, Micro: 2}); got != want {
		t.Fatalf("Read = %v, want %v", got, want)
	}
}

func TestReadGarbled(t *testing.T) {
	for _, contents := range []string{"", "5", "5.4.x", "5.4.0.1"} {
		t.Run(contents, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "linux-5.4.version")
			if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Read(path)
			if !errors.Is(err, mktcb.ErrBadVersion) {
				t.Fatalf("Read(%q) = %v, want ErrBadVersion", contents, err)
			}
		})
	}
}

func TestExistsAgreesWithRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linux-5.4.version")
	if Exists(path) {
		t.Fatal("Exists reported a missing marker present")
	}
	if _, err := Read(path); err == nil {
		t.Fatal("Read succeeded on a missing marker")
	}
	if err := Write(path, "5.4.0"); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Fatal("Exists reported a written marker absent")
	}
	if _, err := Read(path); err != nil {
		t.Fatal(err)
	}
}

func TestWriteOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linux-5.4.version")
	if err := Write(path, "5.4.0"); err != nil {
		t.Fatal(err)
	}
	if err := Write(path, "5.4.1"); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := (mktcb.Version{Major: 5, Minor: 4, Micro: 1}); got != want {
		t.Fatalf("Read = %v, want %v", got, want)
	}
}
