package store

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrPropertyNotFound is returned when no line of the resource assigns the property.
	ErrPropertyNotFound = errors.New("property not found")
	// ErrInvalidValue is returned for values that could not be read back (non word characters).
	ErrInvalidValue = errors.New("invalid property value")
)

var (
	wordValue    = regexp.MustCompile(`^\w+$`)
	anyProperty  = regexp.MustCompile(`(?m)^[ \t]*([\w.\-]+)[ \t]*=[ \t]*(\w+)[ \t]*\r?$`)
	propertyName = regexp.MustCompile(`^[\w.\-]+$`)
)

// Property is a single name = value assignment.
type Property struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
	// Line is the assignment line exactly as Snapshot found it, without its
	// line terminator. Empty for properties not read from a resource.
	Line string `yaml:"line,omitempty"`
}

func (p Property) String() string {
	return p.Name + "=" + p.Value
}

// Store gives access to the properties of one configuration resource.
type Store struct {
	path string
}

// New returns a Store bound to the file at path. The file is not opened until
// the first call.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// propertyPattern matches the whole line assigning name. Group 1 is the value,
// group 2 the optional carriage return of CRLF files.
func propertyPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^[ \t]*` + regexp.QuoteMeta(name) + `[ \t]*=[ \t]*(\w+)[ \t]*(\r?)$`)
}

func (s *Store) load() ([]byte, os.FileMode, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat %s: %w", s.path, err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return data, info.Mode().Perm(), nil
}

// Read returns the current value of the named property.
func (s *Store) Read(name string) (string, error) {
	data, _, err := s.load()
	if err != nil {
		return "", err
	}
	m := propertyPattern(name).FindSubmatch(data)
	if m == nil {
		return "", fmt.Errorf("%w: %s in %s", ErrPropertyNotFound, name, s.path)
	}
	return string(m[1]), nil
}

// Write replaces the first line assigning name with the canonical
// "name = value" rendering and rewrites the whole file.
func (s *Store) Write(name, value string) error {
	if !wordValue.MatchString(value) {
		return fmt.Errorf("%w: %q for %s", ErrInvalidValue, value, name)
	}
	return s.replaceLine(name, name+" = "+value)
}

// replaceLine swaps the text of the first line assigning name for text,
// keeping the carriage return of CRLF files and the file mode.
func (s *Store) replaceLine(name, text string) error {
	data, perm, err := s.load()
	if err != nil {
		return err
	}

	loc := propertyPattern(name).FindSubmatchIndex(data)
	if loc == nil {
		return fmt.Errorf("%w: %s in %s", ErrPropertyNotFound, name, s.path)
	}
	// loc[4] is the start of the carriage return group, kept as is.
	var b strings.Builder
	b.Grow(len(data) + len(text))
	b.Write(data[:loc[0]])
	b.WriteString(text)
	b.Write(data[loc[4]:])

	if err := os.WriteFile(s.path, []byte(b.String()), perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

// Apply writes the properties in order, stopping at the first failure.
func (s *Store) Apply(props []Property) error {
	for _, p := range props {
		if err := s.Write(p.Name, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot reads every named property together with its line text. It
// never writes to the resource.
func (s *Store) Snapshot(names []string) (Snapshot, error) {
	data, _, err := s.load()
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot, 0, len(names))
	for _, name := range names {
		loc := propertyPattern(name).FindSubmatchIndex(data)
		if loc == nil {
			return nil, fmt.Errorf("%w: %s in %s", ErrPropertyNotFound, name, s.path)
		}
		snap = append(snap, Property{
			Name:  name,
			Value: string(data[loc[2]:loc[3]]),
			Line:  string(data[loc[0]:loc[4]]),
		})
	}
	return snap, nil
}

// Restore writes every captured property back. A property whose Line still
// assigns its Value is restored verbatim, otherwise in canonical form. All
// properties are attempted; the failures are joined.
func (s *Store) Restore(snap Snapshot) error {
	var errs []error
	for _, p := range snap {
		if err := s.restoreProperty(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) restoreProperty(p Property) error {
	if !wordValue.MatchString(p.Value) {
		return fmt.Errorf("%w: %q for %s", ErrInvalidValue, p.Value, p.Name)
	}
	text := p.Name + " = " + p.Value
	if p.Line != "" {
		// group 2 must be empty: the file's own carriage return is kept
		m := propertyPattern(p.Name).FindStringSubmatch(p.Line)
		if m != nil && m[0] == p.Line && m[1] == p.Value && m[2] == "" {
			text = p.Line
		}
	}
	return s.replaceLine(p.Name, text)
}

// Properties lists every line of the resource shaped like a property
// assignment, in file order.
func (s *Store) Properties() ([]Property, error) {
	data, _, err := s.load()
	if err != nil {
		return nil, err
	}
	var props []Property
	for _, m := range anyProperty.FindAllSubmatch(data, -1) {
		props = append(props, Property{Name: string(m[1]), Value: string(m[2])})
	}
	return props, nil
}

// ValidName reports whether name can be addressed by the store.
func ValidName(name string) bool {
	return propertyName.MatchString(name)
}

// ValidValue reports whether v can be written and read back.
func ValidValue(v string) bool {
	return wordValue.MatchString(v)
}

// Snapshot holds property values captured at one point in time.
type Snapshot []Property

// Names returns the property names in capture order.
func (s Snapshot) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}
	return names
}

// Value returns the captured value for name.
func (s Snapshot) Value(name string) (string, bool) {
	for _, p := range s {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}
