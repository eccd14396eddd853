package config

import (
	"matrixctl/internal/classify"
	"matrixctl/internal/matrix"
)

const (
	DefaultStorePath        = "src/main/resources/properties.default.env"
	DefaultRestorePointPath = ".matrixctl/restore-point.yaml"
	DefaultBenchmarkStep    = "exec:java@benchmark"
)

// DefaultStemmers are the stemmer implementations shipped with the search engine.
var DefaultStemmers = []string{"null", "Porter"}

// GetDefaultConfig returns the sweep of the boolean-model search engine the
// tool was first written for: three feature flags and the stemmer, built
// and tested with Maven, benchmarks included.
func GetDefaultConfig() MatrixConfig {
	return MatrixConfig{
		StorePath:        DefaultStorePath,
		RestorePointPath: DefaultRestorePointPath,
		Command:          []string{"mvn"},
		Steps:            []string{"clean", "test"},
		BenchmarkStep:    DefaultBenchmarkStep,
		Benchmark:        BoolPtr(true),
		MergeStderr:      BoolPtr(false),
		Properties: []matrix.Axis{
			{Property: "app.exclude_stop_words", Values: boolDomain()},
			{Property: "app.rank_query_results", Values: boolDomain()},
			{Property: "app.use_wf_idf", Values: boolDomain()},
			{Property: "app.stemmer", Values: append([]string(nil), DefaultStemmers...)},
		},
		Markers:        classify.DefaultMarkers(),
		ExitCodePolicy: "ignore",
	}
}

func boolDomain() []string {
	return append([]string(nil), matrix.BooleanDomain...)
}
