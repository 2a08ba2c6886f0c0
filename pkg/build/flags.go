// SPDX-License-Identifier: MIT
//
// Package build provides the build information embedded into the binary at
// compile time using linker flags, for example:
//
//	go build -ldflags "-X pulse/pkg/build.buildName=pulse -X pulse/pkg/build.buildVersion=0.1.0"
//
// Name, Time, Commit and Version are required for release builds. Uuid is
// optional; a random one is generated when it is not injected so every
// running binary can still be told apart.
package build

import (
	"fmt"

	"github.com/google/uuid"
)

const description = "Adaptive force-sensor pulse monitor"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
	Uuid        string
}

// Package-level variables for build information. These are populated by
// -ldflags during compilation. Development builds keep the defaults.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildUuid    string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "pulse",
		Description: description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
		Uuid:        "unknown",
	}
}

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. It returns an error naming the first missing
// flag and leaves the defaults in place.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	id := buildUuid
	if id == "" {
		id = uuid.NewString()
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion
	buildFlags.Uuid = id

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String renders the version line printed by the CLI.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
