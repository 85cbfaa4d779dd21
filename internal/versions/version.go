// Package versions provides version information for the pulp repository sync job.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

const (
	unknownStr = "unknown"

	// pgxModule is the database driver reported in the component version
	pgxModule = "github.com/jackc/pgx/v5"
)

// Version information set by build using -ldflags
var (
	// Version is the current version of the sync job
	Version = "dev"
	// Commit is the git commit hash of the build
	//nolint:goconst // This is a placeholder for the commit hash
	Commit = unknownStr
	// BuildDate is the date when the binary was built
	//nolint:goconst // This is a placeholder for the build date
	BuildDate = unknownStr
)

// VersionInfo represents the version information
type VersionInfo struct {
	Version   string `json:"version"`
	Component string `json:"component_version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns the version information
func GetVersionInfo() VersionInfo {
	var deps []*debug.Module
	if info, ok := debug.ReadBuildInfo(); ok {
		deps = info.Deps
	}
	return getVersionInfoWithValues(Version, Commit, BuildDate, deps)
}

// getVersionInfoWithValues returns version info with provided values (for testing)
func getVersionInfoWithValues(version, commit, buildDate string, deps []*debug.Module) VersionInfo {
	ver := version
	commitVal := commit
	buildDateVal := buildDate

	if strings.HasPrefix(ver, "dev") {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					if commitVal == unknownStr {
						commitVal = setting.Value
					}
				case "vcs.time":
					if buildDateVal == unknownStr {
						buildDateVal = setting.Value
					}
				}
			}
		}
	}

	if buildDateVal != unknownStr {
		if t, err := time.Parse(time.RFC3339, buildDateVal); err == nil {
			buildDateVal = t.Format("2006-01-02 15:04:05 MST")
		}
	}

	if ver == "dev" {
		ver = fmt.Sprintf("build-%.*s", 8, commitVal)
	} else if sv, err := semver.NewVersion(ver); err == nil {
		// release tags carry a leading v
		ver = sv.String()
	}

	return VersionInfo{
		Version:   ver,
		Component: ComponentVersion(ver, deps),
		Commit:    commitVal,
		BuildDate: buildDateVal,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// ComponentVersion returns the job version suffixed with the version of the
// database driver it was built with, as in "1.2.0+pgx.5.7.6"
func ComponentVersion(version string, deps []*debug.Module) string {
	driver := unknownStr
	for _, dep := range deps {
		if dep.Path != pgxModule {
			continue
		}
		v := dep.Version
		if dep.Replace != nil && dep.Replace.Version != "" {
			v = dep.Replace.Version
		}
		if sv, err := semver.NewVersion(v); err == nil {
			driver = sv.String()
		} else {
			driver = v
		}
		break
	}
	return fmt.Sprintf("%s+pgx.%s", version, driver)
}
