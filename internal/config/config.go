// Package config loads the target/toolchain library: TOML descriptors under
// targets/ and toolchains/, prebuilt .config files under configs/.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// Component describes one buildable source tree (linux or uboot) of a
// target.
type Component struct {
	// Version is M.N for linux, the raw upstream version string for uboot.
	Version string `toml:"version"`
	// Config is the name of a prebuilt .config file in the descriptor; after
	// Load it holds the resolved absolute path, or "" when the target has
	// none.
	Config string `toml:"config"`
}

// Toolchain describes a cross-compilation toolchain, loaded from
// toolchains/<name>.toml.
type Toolchain struct {
	URL          string `toml:"url"`
	LinuxArch    string `toml:"linux_arch"`
	UbootArch    string `toml:"uboot_arch"`
	DebianArch   string `toml:"debian_arch"`
	CrossCompile string `toml:"cross_compile"`
}

// targetFile mirrors targets/<name>.toml.
type targetFile struct {
	Toolchain string    `toml:"toolchain"`
	Name      string    `toml:"name"`
	Linux     Component `toml:"linux"`
	Uboot     Component `toml:"uboot"`
}

// Config is the fully resolved configuration of one invocation.
type Config struct {
	LibraryDir  string
	BuildDir    string
	DownloadDir string

	// Target is the descriptor stem (the -t argument), TargetName its
	// human-readable name from the descriptor.
	Target     string
	TargetName string

	Jobs      int
	Toolchain Toolchain
	Linux     Component
	Uboot     Component
}

// Options carries the command line inputs to Load. Zero values select the
// documented defaults.
type Options struct {
	LibraryDir  string // default: current directory
	BuildDir    string // default: ./build
	DownloadDir string // default: ./download
	Target      string // required
	Jobs        int    // default: NumCPU + 2
}

// Load resolves opts against the library on disk. The build and download
// directories are created if missing; every file referenced by the target
// descriptor must exist.
func Load(opts Options) (*Config, error) {
	if opts.Target == "" {
		return nil, xerrors.New("no target specified (use -t)")
	}
	jobs := opts.Jobs
	if jobs == 0 {
		jobs = runtime.NumCPU() + 2
	}
	if jobs < 1 {
		return nil, xerrors.Errorf("invalid job count %d, must be positive", jobs)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	library := opts.LibraryDir
	if library == "" {
		library = cwd
	}
	library, err = filepath.Abs(library)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(library); err != nil {
		return nil, xerrors.Errorf("library: %w", err)
	}

	mkdir := func(dir, fallback string) (string, error) {
		if dir == "" {
			dir = filepath.Join(cwd, fallback)
		}
		dir, err := filepath.Abs(dir)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", xerrors.Errorf("creating %s: %w", dir, err)
		}
		return dir, nil
	}
	buildDir, err := mkdir(opts.BuildDir, "build")
	if err != nil {
		return nil, err
	}
	downloadDir, err := mkdir(opts.DownloadDir, "download")
	if err != nil {
		return nil, err
	}

	tpath := filepath.Join(library, "targets", opts.Target+".toml")
	var target targetFile
	if _, err := toml.DecodeFile(tpath, &target); err != nil {
		return nil, xerrors.Errorf("target descriptor %s: %w", tpath, err)
	}
	zap.S().Infof("using target configuration %s", tpath)

	if target.Linux.Config, err = resolveConfig(library, "linux", target.Linux); err != nil {
		return nil, err
	}
	if target.Uboot.Config, err = resolveConfig(library, "uboot", target.Uboot); err != nil {
		return nil, err
	}

	cpath := filepath.Join(library, "toolchains", target.Toolchain+".toml")
	var tc Toolchain
	if _, err := toml.DecodeFile(cpath, &tc); err != nil {
		return nil, xerrors.Errorf("toolchain descriptor %s: %w", cpath, err)
	}

	return &Config{
		LibraryDir:  library,
		BuildDir:    buildDir,
		DownloadDir: downloadDir,
		Target:      opts.Target,
		TargetName:  target.Name,
		Jobs:        jobs,
		Toolchain:   tc,
		Linux:       target.Linux,
		Uboot:       target.Uboot,
	}, nil
}

// resolveConfig turns the .config name of a component into its path under
// configs/<component>/<version>/ and verifies it exists.
func resolveConfig(library, component string, c Component) (string, error) {
	if c.Config == "" {
		return "", nil
	}
	path := filepath.Join(library, "configs", component, c.Version, c.Config)
	if _, err := os.Stat(path); err != nil {
		return "", xerrors.Errorf("build configuration for %s: %w", component, err)
	}
	return path, nil
}
