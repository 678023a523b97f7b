package cmd

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// earlyExitFlags are handled by cobra on the root command itself.
var earlyExitFlags = []string{"--version", "--help", "-h"}

// NeedsDefaultRun reports whether args should be prefixed with "run" so
// that `cdrwatch [flags] <folder>` starts the watcher. Root persistent
// flags are skipped; the first positional arg decides. Unknown flags are
// left for run to reject.
func NeedsDefaultRun(rootCmd *cobra.Command, args []string) bool {
	if len(args) == 0 {
		return false
	}
	for _, a := range args {
		if a == "--" {
			break
		}
		if slices.Contains(earlyExitFlags, a) {
			return false
		}
	}

	takesValue := rootValueFlags(rootCmd)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return !isSubcommand(rootCmd, arg)
		}
		if strings.Contains(arg, "=") {
			continue
		}
		known, hasValue := takesValue[arg]
		if !known {
			return true
		}
		if hasValue {
			i++
		}
	}
	return false
}

// rootValueFlags maps every spelling of a root persistent flag to whether
// it consumes the following arg.
func rootValueFlags(rootCmd *cobra.Command) map[string]bool {
	flags := map[string]bool{"--help": false, "-h": false, "--version": false}
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		hasValue := f.Value.Type() != "bool"
		flags["--"+f.Name] = hasValue
		if f.Shorthand != "" {
			flags["-"+f.Shorthand] = hasValue
		}
	})
	return flags
}

func isSubcommand(rootCmd *cobra.Command, name string) bool {
	for _, c := range rootCmd.Commands() {
		if c.Name() == name || slices.Contains(c.Aliases, name) {
			return true
		}
	}
	return false
}
