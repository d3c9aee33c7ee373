// Package build drives the external build and packaging tools: make for
// cross-compiling a source tree, dpkg-deb for the kernel meta-package.
package build

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/jeanguyomarch/mktcb"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// Driver invokes make on one source tree with a fixed cross-compilation
// argument set.
type Driver struct {
	SourceDir    string
	BuildDir     string // out-of-tree build directory, passed as O=
	Jobs         int
	Arch         string // ARCH= value
	CrossCompile string // CROSS_COMPILE= tool prefix
}

func (d *Driver) makeCmd(target string, vars ...string) *exec.Cmd {
	args := []string{
		"-C", d.SourceDir,
		fmt.Sprintf("-j%d", d.Jobs),
		"O=" + d.BuildDir,
		"ARCH=" + d.Arch,
		"CROSS_COMPILE=" + d.CrossCompile,
	}
	args = append(args, vars...)
	args = append(args, "--", target)
	cmd := exec.Command("make", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Make runs the given make target in the source tree, building into
// BuildDir. vars are extra VAR=value assignments.
func (d *Driver) Make(target string, vars ...string) error {
	cmd := d.makeCmd(target, vars...)
	zap.S().Infof("running %v", cmd.Args)
	if err := cmd.Run(); err != nil {
		return xerrors.Errorf("make %s: %v: %w", target, cmd.Args, err)
	}
	return nil
}

// Packager assembles the kernel Debian packages for a target.
type Packager struct {
	Driver *Driver
	// PackagesDir is the staging directory for the meta-package,
	// <build>/packages.
	PackagesDir string
	DebianArch  string
	// Target is the descriptor stem, TargetName its human-readable name.
	Target     string
	TargetName string
}

// controlTemplate produces the DEBIAN/control file of the meta-package. The
// package depends on the exact kernel image it was built against, so
// installing a newer meta-package pulls in the newer image.
var controlTemplate = template.Must(template.New("control").Parse(
	`Package: {{.Package}}
Architecture: {{.Arch}}
Maintainer: {{.Maintainer}}
Description: Linux kernel, version {{.Series}}.z for {{.Name}}
 This is a meta-package allowing to manage updates of the Linux kernel
 for the {{.Name}}
Depends: linux-image-{{.Version}}
Version: {{.Version}}
Section: custom/kernel
Priority: required
`))

type controlData struct {
	Package    string
	Arch       string
	Maintainer string
	Series     string
	Name       string
	Version    string
}

// BuildKernelPackage builds the kernel image package via the bindeb-pkg make
// target, then synthesizes the rolling-upgrade meta-package with dpkg-deb.
// It returns the paths of the two packages, image first.
func (p *Packager) BuildKernelPackage(v mktcb.Version) ([]string, error) {
	maintainer := os.Getenv("MAINTAINER")
	if maintainer == "" {
		return nil, xerrors.New("the MAINTAINER environment variable is required for packaging")
	}

	// The kernel's deb-pkg machinery writes the image package next to the
	// build directory, with the Debian revision pinned to 1.
	if err := p.Driver.Make("bindeb-pkg", "KDEB_PKGVERSION=1"); err != nil {
		return nil, err
	}
	image := filepath.Join(filepath.Dir(p.Driver.BuildDir),
		fmt.Sprintf("linux-image-%s_1_%s.deb", v, p.DebianArch))
	if _, err := os.Stat(image); err != nil {
		return nil, xerrors.Errorf("kernel image package was not produced: %w", err)
	}

	pkg := fmt.Sprintf("linux-image-%s-%s", v.Series(), p.Target)
	debianDir := filepath.Join(p.PackagesDir, pkg, "DEBIAN")
	if err := os.MkdirAll(debianDir, 0755); err != nil {
		return nil, xerrors.Errorf("creating %s: %w", debianDir, err)
	}
	control, err := os.Create(filepath.Join(debianDir, "control"))
	if err != nil {
		return nil, err
	}
	err = controlTemplate.Execute(control, controlData{
		Package:    pkg,
		Arch:       p.DebianArch,
		Maintainer: maintainer,
		Series:     v.Series(),
		Name:       p.TargetName,
		Version:    v.String(),
	})
	if cerr := control.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, xerrors.Errorf("writing control file: %w", err)
	}

	cmd := exec.Command("dpkg-deb", "--build", pkg)
	cmd.Dir = p.PackagesDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	zap.S().Infof("running %v", cmd.Args)
	if err := cmd.Run(); err != nil {
		return nil, xerrors.Errorf("dpkg-deb: %v: %w", cmd.Args, err)
	}
	meta := filepath.Join(p.PackagesDir, pkg+".deb")
	if _, err := os.Stat(meta); err != nil {
		return nil, xerrors.Errorf("meta-package was not produced: %w", err)
	}
	return []string{image, meta}, nil
}
