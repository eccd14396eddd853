// Package config provides configuration management for matrixctl.
//
// Configuration is layered. Later sources override earlier ones:
//
//  1. Default configuration (embedded in binary)
//     - The Maven sweep of the search engine's feature flags
//
//  2. User configuration (~/.config/matrixctl/config.yaml)
//     - Personal preferences such as the build wrapper to call
//
//  3. Project configuration (./.matrixctl/config.yaml)
//     - The properties a project sweeps, shared via version control
//
//  4. Explicit file (--config)
//     - Must exist when given
//
// Scalar fields override when set. Lists (command, steps, properties,
// markers, env) replace the list underneath as a whole since their order
// matters.
//
// # Configuration Structure
//
//	storePath: src/main/resources/properties.default.env
//	restorePointPath: .matrixctl/restore-point.yaml
//	command: [mvn]
//	steps: [clean, test]
//	benchmarkStep: exec:java@benchmark
//	benchmark: true
//	mergeStderr: false
//	exitCodePolicy: ignore   # or "record"
//	properties:
//	  - name: app.exclude_stop_words
//	    values: ["true", "false"]
//	  - name: app.stemmer
//	    values: ["null", Porter]
//	markers:
//	  - prefix: "[ERROR]"
//	    severity: error
//	  - prefix: "[WARNING]"
//	    severity: warning
//
// Properties are nested in the order listed; the last one changes fastest.
//
// # Usage
//
//	cfg, err := config.LoadConfig("")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
