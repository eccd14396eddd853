// Package matrix enumerates the configuration space swept by matrixctl.
package matrix

import (
	"errors"
	"fmt"
	"strings"

	"matrixctl/internal/store"
)

var (
	ErrNoAxes            = errors.New("no properties to sweep")
	ErrEmptyDomain       = errors.New("property has an empty domain")
	ErrDuplicateProperty = errors.New("property listed more than once")
)

// BooleanDomain is the domain of on/off properties, in sweep order.
var BooleanDomain = []string{"true", "false"}

// Axis is one property under test and the values it takes.
type Axis struct {
	Property string   `yaml:"name"`
	Values   []string `yaml:"values"`
}

// Assignment is one point of the configuration space. It is immutable.
type Assignment struct {
	props []store.Property
}

// NewAssignment builds an assignment from props, in the given order.
func NewAssignment(props ...store.Property) Assignment {
	return Assignment{props: append([]store.Property(nil), props...)}
}

// Properties returns a copy of the assignment's properties in axis order.
func (a Assignment) Properties() []store.Property {
	return append([]store.Property(nil), a.props...)
}

// Len returns the number of properties in the assignment.
func (a Assignment) Len() int {
	return len(a.props)
}

// Key renders the assignment as {name=value, name=value}. It is used both as
// the console prefix and as the failure report key.
func (a Assignment) Key() string {
	parts := make([]string, len(a.props))
	for i, p := range a.props {
		parts[i] = p.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (a Assignment) String() string {
	return a.Key()
}

// Validate checks that axes describe a non-empty, well formed space.
func Validate(axes []Axis) error {
	if len(axes) == 0 {
		return ErrNoAxes
	}
	seen := make(map[string]bool, len(axes))
	for _, ax := range axes {
		if seen[ax.Property] {
			return fmt.Errorf("%w: %s", ErrDuplicateProperty, ax.Property)
		}
		seen[ax.Property] = true
		if len(ax.Values) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyDomain, ax.Property)
		}
	}
	return nil
}

// Size returns the number of assignments Enumerate would produce.
func Size(axes []Axis) int {
	if len(axes) == 0 {
		return 0
	}
	n := 1
	for _, ax := range axes {
		n *= len(ax.Values)
	}
	return n
}

// Enumerate returns the Cartesian product of the axes. The rightmost axis
// varies fastest, so the order matches nested loops in declaration order.
func Enumerate(axes []Axis) ([]Assignment, error) {
	if err := Validate(axes); err != nil {
		return nil, err
	}

	out := make([]Assignment, 0, Size(axes))
	idx := make([]int, len(axes))
	for {
		props := make([]store.Property, len(axes))
		for i, ax := range axes {
			props[i] = store.Property{Name: ax.Property, Value: ax.Values[idx[i]]}
		}
		out = append(out, Assignment{props: props})

		// odometer increment, rightmost first
		i := len(axes) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(axes[i].Values) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out, nil
		}
	}
}

// Names returns the property names of axes in order.
func Names(axes []Axis) []string {
	names := make([]string, len(axes))
	for i, ax := range axes {
		names[i] = ax.Property
	}
	return names
}

// ParseAxis parses the command line form "name=v1,v2". The shorthand
// "name=bool" expands to BooleanDomain.
func ParseAxis(s string) (Axis, error) {
	name, values, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Axis{}, fmt.Errorf("invalid property %q, expected name=value[,value...]", s)
	}
	if !store.ValidName(name) {
		return Axis{}, fmt.Errorf("invalid property name %q", name)
	}
	if strings.TrimSpace(values) == "bool" {
		return Axis{Property: name, Values: append([]string(nil), BooleanDomain...)}, nil
	}

	ax := Axis{Property: name}
	for _, v := range strings.Split(values, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		ax.Values = append(ax.Values, v)
	}
	if len(ax.Values) == 0 {
		return Axis{}, fmt.Errorf("%w: %s", ErrEmptyDomain, name)
	}
	return ax, nil
}
