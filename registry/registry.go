// Package registry resolves logger names to their effective level and the
// ordered set of appenders records from that logger are routed to.
//
// Logger names form a tree keyed by path segments. "app::db" and "app.db"
// address the same node. A registry is immutable once built.
package registry

import (
	"sort"
	"strings"

	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
)

// Separator joins normalized path segments.
const Separator = "::"

// RootName is the display name of the root logger.
const RootName = "root"

// DefaultRootLevel applies when the root logger sets no level.
const DefaultRootLevel = record.DebugLevel

// Spec declares one configured logger.
type Spec struct {
	Name      string
	Level     *record.Level
	Appenders []string
	Additive  bool
}

// Route is the resolved configuration for one logger name.
type Route struct {
	Logger    string
	Level     record.Level
	Appenders []string
}

type node struct {
	path       string
	configured bool
	hasLevel   bool
	level      record.Level
	appenders  []string
	additive   bool
	parent     *node
	children   map[string]*node
}

// Registry is the logger tree of one configuration generation.
type Registry struct {
	root  *node
	names []string
}

// New builds a registry. Every appender referenced by root or loggers must be
// listed in known; duplicate logger paths after normalization are rejected.
func New(root Spec, loggers []Spec, known []string) (*Registry, error) {
	knownSet := make(map[string]struct{}, len(known))
	for _, name := range known {
		knownSet[strings.ToLower(name)] = struct{}{}
	}

	r := &Registry{
		root: &node{configured: true, hasLevel: true, level: DefaultRootLevel, children: map[string]*node{}},
	}
	if root.Level != nil {
		r.root.level = *root.Level
	}
	refs, err := checkRefs(RootName, root.Appenders, knownSet)
	if err != nil {
		return nil, err
	}
	r.root.appenders = refs

	declared := make(map[string]string, len(loggers))
	for _, spec := range loggers {
		path, err := Normalize(spec.Name)
		if err != nil {
			return nil, err
		}
		if path == "" {
			return nil, errors.NewConfig("logger %q collides with the root logger", spec.Name)
		}
		if prev, ok := declared[path]; ok {
			return nil, errors.NewConfig("loggers %q and %q both resolve to %q", prev, spec.Name, path)
		}
		declared[path] = spec.Name

		refs, err := checkRefs(path, spec.Appenders, knownSet)
		if err != nil {
			return nil, err
		}

		n := r.insert(path)
		n.configured = true
		n.additive = spec.Additive
		n.appenders = refs
		if spec.Level != nil {
			n.hasLevel = true
			n.level = *spec.Level
		}
		r.names = append(r.names, path)
	}
	sort.Strings(r.names)
	return r, nil
}

func checkRefs(owner string, refs []string, known map[string]struct{}) ([]string, error) {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.ToLower(strings.TrimSpace(ref))
		if _, ok := known[ref]; !ok {
			return nil, errors.NewConfig("logger %s references unknown appender %q", owner, ref)
		}
		out = append(out, ref)
	}
	return out, nil
}

func (r *Registry) insert(path string) *node {
	n := r.root
	for _, seg := range strings.Split(path, Separator) {
		child, ok := n.children[seg]
		if !ok {
			childPath := seg
			if n != r.root {
				childPath = n.path + Separator + seg
			}
			child = &node{path: childPath, additive: true, parent: n, children: map[string]*node{}}
			n.children[seg] = child
		}
		n = child
	}
	return n
}

// Loggers lists the configured logger paths, sorted.
func (r *Registry) Loggers() []string {
	return append([]string(nil), r.names...)
}

// Resolve returns the effective level and appenders for name. Unknown names
// inherit from their nearest configured ancestor.
func (r *Registry) Resolve(name string) Route {
	n := r.root
	for _, seg := range segments(name) {
		child, ok := n.children[seg]
		if !ok {
			break
		}
		n = child
	}

	route := Route{Logger: displayName(name)}

	for cur := n; cur != nil; cur = cur.parent {
		if cur.hasLevel {
			route.Level = cur.level
			break
		}
	}

	// Start from the deepest configured node; unconfigured intermediates
	// carry nothing and never stop the climb.
	start := n
	for start != nil && !start.configured {
		start = start.parent
	}
	seen := make(map[string]struct{})
	for cur := start; cur != nil; cur = cur.parent {
		if !cur.configured {
			continue
		}
		for _, a := range cur.appenders {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			route.Appenders = append(route.Appenders, a)
		}
		if !cur.additive {
			break
		}
	}
	return route
}

// Normalize folds a logger name into its canonical path. "" and "root" map to
// the root, returned as "". Empty segments are rejected.
func Normalize(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.EqualFold(trimmed, RootName) {
		return "", nil
	}
	parts := split(trimmed)
	for _, p := range parts {
		if p == "" {
			return "", errors.NewConfig("logger name %q has an empty segment", name)
		}
	}
	return strings.Join(parts, Separator), nil
}

// DisplayName returns the normalized name, or "root" for the root logger.
// Malformed names are normalized leniently.
func DisplayName(name string) string {
	return displayName(name)
}

func displayName(name string) string {
	segs := segments(name)
	if len(segs) == 0 {
		return RootName
	}
	return strings.Join(segs, Separator)
}

// segments splits name leniently: empty segments are skipped.
func segments(name string) []string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.EqualFold(trimmed, RootName) {
		return nil
	}
	parts := split(trimmed)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func split(name string) []string {
	name = strings.ReplaceAll(name, Separator, ".")
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return parts
}
