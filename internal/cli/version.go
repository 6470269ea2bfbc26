package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildInfo()
		if JSONOutput() {
			return printJSON(info)
		}

		fmt.Printf("tunes %s\n", info["version"])
		if !Verbose() {
			return nil
		}
		t := NewTable()
		for _, k := range []string{"commit", "build_date", "go_version", "platform"} {
			t.AppendRow([]any{dimColor.Sprint(k), info[k]})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildInfo reports the ldflags values, falling back to the module
// version and VCS stamp for `go install` builds.
func buildInfo() map[string]string {
	info := map[string]string{
		"version":    Version,
		"commit":     Commit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
		"platform":   runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info["version"] = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" {
				info["commit"] = s.Value
			}
		case "vcs.time":
			if BuildDate == "unknown" {
				info["build_date"] = s.Value
			}
		}
	}
	return info
}
