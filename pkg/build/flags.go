// SPDX-License-Identifier: MIT
//
// Package build exposes metadata embedded at link time: the application
// name, build timestamp, Git commit and semantic version. Builds without
// linker flags (go run, go test) report development defaults.
//
//	go build -ldflags "-X filterstream/pkg/build.buildName=filterstream \
//	  -X filterstream/pkg/build.buildVersion=0.1.0 ..."
package build

import (
	"errors"
	"fmt"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

const (
	defaultName        = "filterstream"
	defaultDescription = "Real-time block filtering and spectrum analysis for audio streams"
	devValue           = "dev"
)

// Package-level variables for build information. These are populated by
// -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = defaultInfo()
)

func defaultInfo() *Info {
	return &Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        devValue,
		Commit:      devValue,
		Version:     devValue,
	}
}

// Initialize copies the linker-provided values into the build info. When
// no flag was provided the development defaults stay in place and nil is
// returned. A partial set is an error, since it means a broken release
// build; the provided values are still applied.
func Initialize() error {
	var missing []error
	set := 0
	apply := func(name, value string, dst *string) {
		if value == "" {
			missing = append(missing, fmt.Errorf("%s is required", name))
			return
		}
		*dst = value
		set++
	}

	apply("BuildName", buildName, &buildInfo.Name)
	apply("BuildTime", buildTime, &buildInfo.Time)
	apply("BuildCommit", buildCommit, &buildInfo.Commit)
	apply("BuildVersion", buildVersion, &buildInfo.Version)

	if set == 0 {
		return nil
	}
	return errors.Join(missing...)
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() *Info {
	return buildInfo
}

// String formats the info for version output.
func (i *Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Fields returns the info as structured log fields.
func (i *Info) Fields() map[string]any {
	return map[string]any{
		"app":     i.Name,
		"version": i.Version,
		"commit":  i.Commit,
		"built":   i.Time,
	}
}
