// Package version reports the release identifier of the running binary.
package version

import (
	"runtime/debug"
	"strings"
)

const (
	unknownVersionFallbackConstant = "unknown"
	buildInfoDevelVersionConstant  = "(devel)"
	develVersionConstant           = "devel"
	revisionSettingKeyConstant     = "vcs.revision"
	modifiedSettingKeyConstant     = "vcs.modified"
	modifiedSettingTrueConstant    = "true"
	revisionVersionPrefixConstant  = "devel-"
	dirtyRevisionSuffixConstant    = "-dirty"
	shortRevisionLengthConstant    = 12
)

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Dependencies describes the collaborators required for version detection.
type Dependencies struct {
	BuildInfoProvider BuildInfoProvider
}

// Detector resolves application version strings.
type Detector struct {
	buildInfoProvider BuildInfoProvider
}

// NewDetector constructs a Detector. A nil provider reads the build info embedded in the binary.
func NewDetector(dependencies Dependencies) *Detector {
	provider := dependencies.BuildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}
	return &Detector{buildInfoProvider: provider}
}

// Detect resolves the application version using the supplied dependencies.
func Detect(dependencies Dependencies) string {
	return NewDetector(dependencies).Version()
}

// Version prefers the module version, then the VCS revision the binary was built from.
func (detector *Detector) Version() string {
	if detector == nil || detector.buildInfoProvider == nil {
		return unknownVersionFallbackConstant
	}

	buildInfo, available := detector.buildInfoProvider.Read()
	if !available || buildInfo == nil {
		return unknownVersionFallbackConstant
	}

	moduleVersion := strings.TrimSpace(buildInfo.Main.Version)
	if len(moduleVersion) > 0 && moduleVersion != buildInfoDevelVersionConstant && !strings.EqualFold(moduleVersion, develVersionConstant) {
		return moduleVersion
	}

	if revisionVersion := versionFromSettings(buildInfo.Settings); len(revisionVersion) > 0 {
		return revisionVersion
	}
	return unknownVersionFallbackConstant
}

func versionFromSettings(settings []debug.BuildSetting) string {
	revision := ""
	modified := false
	for _, setting := range settings {
		switch setting.Key {
		case revisionSettingKeyConstant:
			revision = strings.TrimSpace(setting.Value)
		case modifiedSettingKeyConstant:
			modified = setting.Value == modifiedSettingTrueConstant
		}
	}
	if len(revision) == 0 {
		return ""
	}
	if len(revision) > shortRevisionLengthConstant {
		revision = revision[:shortRevisionLengthConstant]
	}

	resolved := revisionVersionPrefixConstant + revision
	if modified {
		resolved += dirtyRevisionSuffixConstant
	}
	return resolved
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
