// Package classify decides which lines of the child's output are diagnostics.
package classify

import (
	"fmt"
	"strings"
)

// Severity is the kind of a classified line.
type Severity string

const (
	// SeverityInfo marks an informational line.
	SeverityInfo Severity = "info"
	// SeverityError marks a build error.
	SeverityError Severity = "error"
	// SeverityWarning marks a build warning.
	SeverityWarning Severity = "warning"
	// SeverityRuntime marks a runtime exception or stack trace line.
	SeverityRuntime Severity = "runtime"
)

// ParseSeverity converts the configuration spelling of a diagnostic severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityError, SeverityWarning, SeverityRuntime:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("unknown severity %q, must be one of: error, warning, runtime", s)
	}
}

// Marker maps a line prefix to a severity.
type Marker struct {
	Prefix   string   `yaml:"prefix"`
	Severity Severity `yaml:"severity"`
}

// DefaultMarkers are the prefixes emitted by Maven builds and JVM failures.
func DefaultMarkers() []Marker {
	return []Marker{
		{Prefix: "[ERROR]", Severity: SeverityError},
		{Prefix: "[WARNING]", Severity: SeverityWarning},
		{Prefix: "java", Severity: SeverityRuntime},
	}
}

// Classification is the outcome of classifying one line.
type Classification struct {
	Severity Severity
	// Marker is the prefix that matched, empty for informational lines.
	Marker string
}

// IsDiagnostic reports whether the line has to be kept for the failure report.
func (c Classification) IsDiagnostic() bool {
	return c.Severity != SeverityInfo
}

// Classifier is a case sensitive prefix matcher. It is safe for concurrent use.
type Classifier struct {
	markers []Marker
}

// New returns a Classifier using markers in order; the first match wins.
// With no markers the defaults are used.
func New(markers ...Marker) *Classifier {
	if len(markers) == 0 {
		markers = DefaultMarkers()
	}
	return &Classifier{markers: append([]Marker(nil), markers...)}
}

// Classify tests the raw, untrimmed line against the markers.
func (c *Classifier) Classify(line string) Classification {
	for _, m := range c.markers {
		if strings.HasPrefix(line, m.Prefix) {
			return Classification{Severity: m.Severity, Marker: m.Prefix}
		}
	}
	return Classification{Severity: SeverityInfo}
}
