// mktcb assembles the Trusted Computing Base of an embedded target: it
// fetches and updates the Linux kernel and U-Boot source trees, applies the
// project patch sets, drives the cross-compilation and packages the result.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jeanguyomarch/mktcb/internal/config"
	"github.com/jeanguyomarch/mktcb/internal/interrupt"
	"github.com/jeanguyomarch/mktcb/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// Exit statuses. Deferred interrupts exit with 128 plus the signal number.
const (
	exitOK       = 0
	exitError    = 2
	exitLogging  = 3
	exitNoUpdate = 100
)

// errNoUpdate makes `linux --check-update` exit with status 100. It is a
// normal outcome, not an error.
var errNoUpdate = xerrors.New("no update available")

var (
	libraryDir  string
	buildDir    string
	downloadDir string
	targetName  string
	jobs        int
	logLevel    string
)

func init() {
	flag.StringVar(&libraryDir, "L", "", "path to the TCB library (default: current directory)")
	flag.StringVar(&libraryDir, "library", "", "path to the TCB library (default: current directory)")
	flag.StringVar(&buildDir, "B", "", "path to the build directory (default: ./build)")
	flag.StringVar(&buildDir, "build-dir", "", "path to the build directory (default: ./build)")
	flag.StringVar(&downloadDir, "D", "", "path to the download directory (default: ./download)")
	flag.StringVar(&downloadDir, "download-dir", "", "path to the download directory (default: ./download)")
	flag.StringVar(&targetName, "t", "", "name of the target to operate on (required)")
	flag.StringVar(&targetName, "target", "", "name of the target to operate on (required)")
	flag.IntVar(&jobs, "j", 0, "number of parallel build jobs (default: number of CPUs + 2)")
	flag.IntVar(&jobs, "jobs", 0, "number of parallel build jobs (default: number of CPUs + 2)")
	flag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.Options{
		LibraryDir:  libraryDir,
		BuildDir:    buildDir,
		DownloadDir: downloadDir,
		Target:      targetName,
		Jobs:        jobs,
	})
}

func main() {
	flag.Parse()

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(exitLogging)
	}
	sync, err := logging.Setup(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(exitLogging)
	}
	defer sync()

	interrupt.Install()

	type cmd struct {
		helpText string
		fn       func(args []string) error
	}
	verbs := map[string]cmd{
		"linux": {linuxHelp, linuxVerb},
		"uboot": {ubootHelp, ubootVerb},
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "syntax: mktcb [options] <command> [command options]\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "\tlinux - operations on the Linux kernel tree\n")
		fmt.Fprintf(os.Stderr, "\tuboot - operations on the U-Boot tree\n")
		sync()
		os.Exit(exitError)
	}
	verb, args := args[0], args[1:]
	if verb == "help" {
		if len(args) != 1 {
			fmt.Fprintf(os.Stderr, "syntax: mktcb help <command>\n")
			sync()
			os.Exit(exitError)
		}
		verb = args[0]
		args = []string{"-help"}
	}
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: mktcb [options] <command> [command options]\n")
		sync()
		os.Exit(exitError)
	}
	if err := v.fn(args); err != nil {
		if xerrors.Is(err, errNoUpdate) {
			sync()
			os.Exit(exitNoUpdate)
		}
		zap.S().Errorf("%s: %v", verb, err)
		sync()
		os.Exit(exitError)
	}
}
