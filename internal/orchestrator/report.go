package orchestrator

import "strings"

// FailureReport maps configuration keys to their diagnostic text, in the
// order configurations first failed. It only grows.
type FailureReport struct {
	keys    []string
	entries map[string]string
}

// Entry is one failing configuration.
type Entry struct {
	Key  string
	Text string
}

// Lines splits the diagnostic text back into lines.
func (e Entry) Lines() []string {
	t := strings.TrimSuffix(e.Text, "\n")
	if t == "" {
		return nil
	}
	return strings.Split(t, "\n")
}

// NewFailureReport returns an empty report.
func NewFailureReport() *FailureReport {
	return &FailureReport{entries: make(map[string]string)}
}

// Add appends text to the entry for key. Empty text is ignored so that only
// configurations with diagnostics ever appear.
func (r *FailureReport) Add(key, text string) {
	if text == "" {
		return
	}
	if _, ok := r.entries[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.entries[key] += text
}

// Get returns the diagnostic text recorded for key.
func (r *FailureReport) Get(key string) (string, bool) {
	t, ok := r.entries[key]
	return t, ok
}

// Len returns the number of failing configurations.
func (r *FailureReport) Len() int {
	return len(r.keys)
}

// Empty reports overall success.
func (r *FailureReport) Empty() bool {
	return len(r.keys) == 0
}

// Entries returns the failing configurations in insertion order.
func (r *FailureReport) Entries() []Entry {
	out := make([]Entry, len(r.keys))
	for i, k := range r.keys {
		out[i] = Entry{Key: k, Text: r.entries[k]}
	}
	return out
}
