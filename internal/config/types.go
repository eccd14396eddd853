package config

import (
	"matrixctl/internal/classify"
	"matrixctl/internal/matrix"
)

// MatrixConfig is the top-level configuration structure for matrixctl.
type MatrixConfig struct {
	// StorePath is the configuration resource rewritten for every run.
	StorePath string `yaml:"storePath,omitempty"`
	// RestorePointPath is where original values are kept during a sweep.
	RestorePointPath string `yaml:"restorePointPath,omitempty"`
	// WorkDir is the working directory of the command. Empty means current.
	WorkDir string `yaml:"workDir,omitempty"`

	// Command is the program and its leading arguments, e.g. ["mvn"].
	Command []string `yaml:"command,omitempty"`
	// Steps are appended to Command for every run, e.g. ["clean", "test"].
	Steps []string `yaml:"steps,omitempty"`
	// BenchmarkStep is appended after Steps when Benchmark is enabled.
	BenchmarkStep string `yaml:"benchmarkStep,omitempty"`
	Benchmark     *bool  `yaml:"benchmark,omitempty"`
	// Env holds extra KEY=VALUE entries for the command's environment.
	Env []string `yaml:"env,omitempty"`
	// MergeStderr classifies stderr lines together with stdout.
	MergeStderr *bool `yaml:"mergeStderr,omitempty"`

	// Properties are the swept properties in nesting order.
	Properties []matrix.Axis `yaml:"properties,omitempty"`
	// Markers are the diagnostic line prefixes, first match wins.
	Markers []classify.Marker `yaml:"markers,omitempty"`
	// ExitCodePolicy is "ignore" or "record".
	ExitCodePolicy string `yaml:"exitCodePolicy,omitempty"`
}

// BenchmarkEnabled reports whether the benchmark step is appended.
func (c MatrixConfig) BenchmarkEnabled() bool {
	return c.Benchmark != nil && *c.Benchmark
}

// MergeStderrEnabled reports whether stderr is merged into the line stream.
func (c MatrixConfig) MergeStderrEnabled() bool {
	return c.MergeStderr != nil && *c.MergeStderr
}

// BoolPtr returns a pointer to b, for optional fields.
func BoolPtr(b bool) *bool {
	return &b
}
