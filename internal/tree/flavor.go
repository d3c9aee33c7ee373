package tree

import (
	"fmt"

	"github.com/jeanguyomarch/mktcb"
	"golang.org/x/xerrors"
)

// Flavor is the small capability set in which the Linux and U-Boot source
// trees differ: archive naming, the upstream URL scheme, and whether the
// upstream publishes incremental patches. Everything else about the
// lifecycle is shared by the engine.
type Flavor interface {
	// Component names the tree in the library layout: patches/<Component>/
	// and configs/<Component>/ hold its local patches and build configs.
	Component() string

	// SourceDirName is the directory the base archive extracts to, e.g.
	// linux-5.4 or u-boot-2019.04. The version marker file is this name
	// plus ".version".
	SourceDirName() string

	// Archive returns the URL of the base source archive and its file name.
	Archive() (url, filename string)

	// BaseVersion is the version recorded after materializing the base
	// archive.
	BaseVersion() mktcb.Version

	// NextPatch returns the upstream incremental patch advancing v by one
	// micro revision. ok is false when the upstream publishes no incremental
	// patches for this flavor.
	NextPatch(v mktcb.Version) (url, filename string, ok bool)

	// Render formats v for the version marker.
	Render(v mktcb.Version) string

	// PatchesSubdir names the local patch set directory for v under
	// patches/<Component>/.
	PatchesSubdir(v mktcb.Version) string
}

const kernelCDN = "https://cdn.kernel.org/pub/linux/kernel/"
const ubootFTP = "https://ftp.denx.de/pub/u-boot/"

type linuxFlavor struct {
	base    mktcb.Version
	baseURL string
}

// NewLinux returns the kernel flavor for the M.N series named by version.
// mirror overrides the kernel.org CDN directory for the series and must end
// in a slash; the empty string selects the default.
func NewLinux(version, mirror string) (Flavor, error) {
	v, err := mktcb.ParseVersion(version)
	if err != nil {
		return nil, xerrors.Errorf("linux version: %w", err)
	}
	// A three-field version in the descriptor still materializes at .0: the
	// incremental loop is the only way micro advances.
	v.Micro = 0
	if mirror == "" {
		mirror = fmt.Sprintf("%sv%d.x/", kernelCDN, v.Major)
	}
	return &linuxFlavor{base: v, baseURL: mirror}, nil
}

func (f *linuxFlavor) Component() string { return "linux" }

func (f *linuxFlavor) SourceDirName() string {
	return "linux-" + f.base.Series()
}

func (f *linuxFlavor) Archive() (string, string) {
	filename := fmt.Sprintf("linux-%s.tar.xz", f.base.Series())
	return f.baseURL + filename, filename
}

func (f *linuxFlavor) BaseVersion() mktcb.Version { return f.base }

func (f *linuxFlavor) NextPatch(v mktcb.Version) (string, string, bool) {
	if v.Micro == 0 {
		// The first point release patches the base archive directly.
		filename := fmt.Sprintf("patch-%s.1.xz", v.Series())
		return f.baseURL + filename, filename, true
	}
	filename := fmt.Sprintf("patch-%s-%d.xz", v, v.Micro+1)
	return f.baseURL + "incr/" + filename, filename, true
}

func (f *linuxFlavor) Render(v mktcb.Version) string { return v.String() }

func (f *linuxFlavor) PatchesSubdir(v mktcb.Version) string {
	if v.Micro == 0 {
		return v.Series()
	}
	return v.String()
}

type ubootFlavor struct {
	// version is kept as the raw descriptor string: U-Boot versions like
	// 2019.04 would lose their zero padding through parse/render.
	version string
	base    mktcb.Version
	baseURL string
}

// NewUboot returns the boot-loader flavor. mirror overrides the denx.de
// archive directory and must end in a slash; the empty string selects the
// default.
func NewUboot(version, mirror string) (Flavor, error) {
	v, err := mktcb.ParseVersion(version)
	if err != nil {
		return nil, xerrors.Errorf("u-boot version: %w", err)
	}
	if mirror == "" {
		mirror = ubootFTP
	}
	return &ubootFlavor{version: version, base: v, baseURL: mirror}, nil
}

func (f *ubootFlavor) Component() string { return "uboot" }

func (f *ubootFlavor) SourceDirName() string {
	return "u-boot-" + f.version
}

func (f *ubootFlavor) Archive() (string, string) {
	filename := fmt.Sprintf("u-boot-%s.tar.bz2", f.version)
	return f.baseURL + filename, filename
}

func (f *ubootFlavor) BaseVersion() mktcb.Version { return f.base }

func (f *ubootFlavor) NextPatch(mktcb.Version) (string, string, bool) {
	// U-Boot publishes no incremental patch stream.
	return "", "", false
}

func (f *ubootFlavor) Render(mktcb.Version) string { return f.version }

func (f *ubootFlavor) PatchesSubdir(mktcb.Version) string { return f.version }
