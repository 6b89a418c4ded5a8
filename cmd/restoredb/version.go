package main

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/urfave/cli/v3"
)

type buildInfo struct {
	version   string
	goVersion string
	commit    string
	buildTime string
	modified  bool
}

func readBuildInfo() buildInfo {
	bi := buildInfo{version: "unknown", goVersion: "unknown"}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	bi.version = info.Main.Version
	bi.goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			bi.commit = setting.Value
		case "vcs.time":
			bi.buildTime = setting.Value
		case "vcs.modified":
			bi.modified = setting.Value == "true"
		}
	}
	return bi
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "Print version information",
	Action: func(ctx context.Context, command *cli.Command) error {
		bi := readBuildInfo()
		fmt.Printf("restoredb %s (go %s)\n", bi.version, bi.goVersion)
		if bi.commit != "" {
			dirty := ""
			if bi.modified {
				dirty = " (dirty)"
			}
			fmt.Printf("commit: %s%s\n", bi.commit, dirty)
		}
		if bi.buildTime != "" {
			fmt.Printf("built: %s\n", bi.buildTime)
		}
		return nil
	},
}
