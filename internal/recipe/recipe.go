package recipe

import (
	"github.com/qiime2/q2-recipe/internal/depspec"
)

// Recipe is the fully rendered build recipe document.
type Recipe struct {
	Package      PackageSection      `yaml:"package"`
	Source       SourceSection       `yaml:"source"`
	Build        BuildSection        `yaml:"build"`
	Requirements RequirementsSection `yaml:"requirements"`
	Test         TestSection         `yaml:"test"`
	About        AboutSection        `yaml:"about"`
}

// PackageSection identifies what is being built.
type PackageSection struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// SourceSection points at the project source, either a path relative to
// the recipe file or a downloadable archive.
type SourceSection struct {
	Path   string `yaml:"path,omitempty"`
	URL    string `yaml:"url,omitempty"`
	SHA256 string `yaml:"sha256,omitempty"`
}

// BuildSection holds the delegated build command.
type BuildSection struct {
	Script string `yaml:"script"`
	Number int    `yaml:"number,omitempty"`
}

// RequirementsSection lists host (build-time) and run dependencies.
type RequirementsSection struct {
	Host []string `yaml:"host,omitempty"`
	Run  []string `yaml:"run,omitempty"`
}

// TestSection describes how a built package is validated.
type TestSection struct {
	Requires []string `yaml:"requires,omitempty"`
	Imports  []string `yaml:"imports,omitempty"`
	Commands []string `yaml:"commands,omitempty"`
}

// AboutSection carries package metadata.
type AboutSection struct {
	Home          string `yaml:"home,omitempty"`
	License       string `yaml:"license,omitempty"`
	LicenseFamily string `yaml:"license_family,omitempty"`
}

// HostSpecs parses requirements.host into match specs.
func (r *Recipe) HostSpecs() ([]depspec.Spec, error) {
	return depspec.ParseAll(r.Requirements.Host)
}

// RunSpecs parses requirements.run into match specs.
func (r *Recipe) RunSpecs() ([]depspec.Spec, error) {
	return depspec.ParseAll(r.Requirements.Run)
}

// TestSpecs parses test.requires into match specs.
func (r *Recipe) TestSpecs() ([]depspec.Spec, error) {
	return depspec.ParseAll(r.Test.Requires)
}
