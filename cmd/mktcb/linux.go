package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeanguyomarch/mktcb/internal/build"
	"github.com/jeanguyomarch/mktcb/internal/fetch"
	"github.com/jeanguyomarch/mktcb/internal/toolchain"
	"github.com/jeanguyomarch/mktcb/internal/tree"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

const linuxHelp = `mktcb linux - operations on the Linux kernel tree

Fetch the kernel source series configured for the target, keep it current
with upstream point releases and the local patch set, and build it with the
target's cross-toolchain.
`

func linuxVerb(args []string) error {
	fset := flag.NewFlagSet("linux", flag.ExitOnError)
	var (
		checkUpdate = fset.Bool("check-update",
			false,
			"check whether a new point release is published; exit 100 if not")
		doFetch = fset.Bool("fetch",
			false,
			"bring the kernel source tree to the latest published release")
		reconfigure = fset.Bool("reconfigure",
			false,
			"copy the target's kernel configuration into the build tree")
		makeTarget = fset.String("make",
			"",
			"run the given make target in the kernel tree")
		debpkg = fset.String("debpkg",
			"",
			"build the kernel packages and write their paths to the given file")
	)
	fset.Usage = usage(fset, linuxHelp)
	fset.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := fetch.NewClient()
	flavor, err := tree.NewLinux(cfg.Linux.Version, "")
	if err != nil {
		return err
	}
	tr := tree.New(flavor, tree.Opts{
		DownloadDir: cfg.DownloadDir,
		BuildDir:    filepath.Join(cfg.BuildDir, flavor.SourceDirName()),
		PatchesRoot: filepath.Join(cfg.LibraryDir, "patches", flavor.Component()),
		ConfigFile:  cfg.Linux.Config,
		Client:      client,
	})

	if *checkUpdate {
		ok, err := tr.CheckUpdate()
		if err != nil {
			return err
		}
		if !ok {
			return errNoUpdate
		}
		zap.S().Info("a new version of the Linux kernel is available")
	}
	if *doFetch {
		if err := tr.Fetch(); err != nil {
			return err
		}
	}
	if *reconfigure {
		if err := tr.Reconfigure(); err != nil {
			return err
		}
	}

	if *makeTarget == "" && *debpkg == "" {
		return nil
	}

	tc, err := toolchain.New(cfg, client)
	if err != nil {
		return err
	}
	if err := tc.Fetch(); err != nil {
		return err
	}
	v, err := tr.Version()
	if err != nil {
		return err
	}
	driver := &build.Driver{
		SourceDir:    tr.SourceDir(),
		BuildDir:     tr.BuildDir(),
		Jobs:         cfg.Jobs,
		Arch:         cfg.Toolchain.LinuxArch,
		CrossCompile: tc.CrossCompile,
	}
	if *makeTarget != "" {
		if err := driver.Make(*makeTarget); err != nil {
			return err
		}
	}
	if *debpkg != "" {
		packager := &build.Packager{
			Driver:      driver,
			PackagesDir: filepath.Join(cfg.BuildDir, "packages"),
			DebianArch:  cfg.Toolchain.DebianArch,
			Target:      cfg.Target,
			TargetName:  cfg.TargetName,
		}
		paths, err := packager.BuildKernelPackage(v)
		if err != nil {
			return err
		}
		contents := strings.Join(paths, "\n") + "\n"
		if err := os.WriteFile(*debpkg, []byte(contents), 0644); err != nil {
			return xerrors.Errorf("writing package list to %s: %w", *debpkg, err)
		}
	}
	return nil
}
