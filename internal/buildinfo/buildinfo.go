// Package buildinfo exposes version data set at link time:
//
//	go build -ldflags "-X github.com/dmitrijs2005/gposync/internal/buildinfo.buildVersion=v1.2.0"
package buildinfo

import (
	"fmt"
	"io"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

// Version returns the build version, "dev" for untagged builds.
func Version() string {
	if buildVersion == "N/A" || buildVersion == "" {
		return "dev"
	}
	return buildVersion
}

// UserAgent is sent with every gpodder request.
func UserAgent() string {
	return "gposync/" + Version()
}

// PrintBuildData writes the build metadata to w.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", buildVersion)
	fmt.Fprintf(w, "Build date: %s\n", buildDate)
	fmt.Fprintf(w, "Build commit: %s\n", buildCommit)
}
