package linksim

import (
	"fmt"
	"slices"
	"strings"
)

// An Element describes a component type: the ports it accepts links on and
// whether it injects events at startup.
type Element struct {
	Library string
	Name    string
	Ports   []string
	Sends   bool
}

func (e *Element) Type() string {
	return e.Library + "." + e.Name
}

// ValidPort reports whether port matches one of the element's port patterns.
func (e *Element) ValidPort(port string) bool {
	return slices.ContainsFunc(e.Ports, func(pattern string) bool {
		return MatchPort(pattern, port)
	})
}

var elements = map[string]*Element{}

func register(e *Element) {
	elements[e.Type()] = e
}

func init() {
	register(&Element{
		Library: "coreTestElement",
		Name:    "linkTester",
		Ports:   []string{"left", "right", "port%d"},
		Sends:   true,
	})
	register(&Element{
		Library: "coreTestElement",
		Name:    "linkSink",
		Ports:   []string{"in%(input)d"},
		Sends:   false,
	})
}

// LookupElement finds a registered element by its "library.name" type.
func LookupElement(typ string) (*Element, error) {
	if _, _, ok := strings.Cut(typ, "."); !ok {
		return nil, fmt.Errorf("malformed component type %q, expected library.element", typ)
	}
	e, ok := elements[typ]
	if !ok {
		return nil, fmt.Errorf("can't find requested component %s", typ)
	}
	return e, nil
}

// Elements lists the registered element types in sorted order.
func Elements() []string {
	var types []string
	for typ := range elements {
		types = append(types, typ)
	}
	slices.Sort(types)
	return types
}

// MatchPort reports whether port matches pattern. A pattern of "*" matches
// every port, and "%d" or "%(name)d" in a pattern matches a run of digits,
// possibly empty.
func MatchPort(pattern, port string) bool {
	if pattern == "*" {
		return true
	}

	x, y := pattern, port
	for {
		if strings.HasPrefix(x, "%d") {
			x = x[2:]
			y = strings.TrimLeft(y, "0123456789")
			continue
		}
		if strings.HasPrefix(x, "%(") {
			end := strings.IndexByte(x, ')')
			if end == -1 || end+1 >= len(x) || x[end+1] != 'd' {
				// malformed pattern matches nothing
				return false
			}
			x = x[end+2:]
			y = strings.TrimLeft(y, "0123456789")
			continue
		}
		if x == "" || y == "" {
			return x == y
		}
		if x[0] != y[0] {
			return false
		}
		x, y = x[1:], y[1:]
	}
}
