package main

import (
	"flag"
	"path/filepath"

	"github.com/jeanguyomarch/mktcb/internal/build"
	"github.com/jeanguyomarch/mktcb/internal/fetch"
	"github.com/jeanguyomarch/mktcb/internal/toolchain"
	"github.com/jeanguyomarch/mktcb/internal/tree"
)

const ubootHelp = `mktcb uboot - operations on the U-Boot tree

Fetch the U-Boot release configured for the target and build it with the
target's cross-toolchain. U-Boot publishes no incremental patches: fetching
an already materialized tree is a no-op.
`

func ubootVerb(args []string) error {
	fset := flag.NewFlagSet("uboot", flag.ExitOnError)
	var (
		doFetch = fset.Bool("fetch",
			false,
			"retrieve the configured U-Boot release")
		reconfigure = fset.Bool("reconfigure",
			false,
			"copy the target's U-Boot configuration into the build tree")
		makeTarget = fset.String("make",
			"",
			"run the given make target in the U-Boot tree")
	)
	fset.Usage = usage(fset, ubootHelp)
	fset.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := fetch.NewClient()
	flavor, err := tree.NewUboot(cfg.Uboot.Version, "")
	if err != nil {
		return err
	}
	tr := tree.New(flavor, tree.Opts{
		DownloadDir: cfg.DownloadDir,
		BuildDir:    filepath.Join(cfg.BuildDir, flavor.SourceDirName()),
		PatchesRoot: filepath.Join(cfg.LibraryDir, "patches", flavor.Component()),
		ConfigFile:  cfg.Uboot.Config,
		Client:      client,
	})

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

	if *makeTarget == "" {
		return nil
	}

	tc, err := toolchain.New(cfg, client)
	if err != nil {
		return err
	}
	if err := tc.Fetch(); err != nil {
		return err
	}
	if _, err := tr.Version(); err != nil {
		return err
	}
	driver := &build.Driver{
		SourceDir:    tr.SourceDir(),
		BuildDir:     tr.BuildDir(),
		Jobs:         cfg.Jobs,
		Arch:         cfg.Toolchain.UbootArch,
		CrossCompile: tc.CrossCompile,
	}
	return driver.Make(*makeTarget)
}
