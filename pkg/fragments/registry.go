// Package fragments defines the fixed, ordered list of page fragments and the
// container each one is mounted into.
package fragments

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WrapperKind selects the element synthesized around a fragment's markup
type WrapperKind string

const (
	KindFixed   WrapperKind = "fixed"
	KindSection WrapperKind = "section"
	KindFooter  WrapperKind = "footer"
	KindGeneric WrapperKind = "generic"
)

// SectionClass is added to every section wrapper; scroll animations key off it.
const SectionClass = "landing-section"

// IsValid reports whether k is one of the known kinds
func (k WrapperKind) IsValid() bool {
	switch k {
	case KindFixed, KindSection, KindFooter, KindGeneric:
		return true
	}
	return false
}

// Tag returns the element name used for the wrapper
func (k WrapperKind) Tag() string {
	switch k {
	case KindFixed:
		return "header"
	case KindSection:
		return "section"
	case KindFooter:
		return "footer"
	default:
		return "div"
	}
}

// Class returns the class attribute for the wrapper, if any
func (k WrapperKind) Class() string {
	if k == KindSection {
		return SectionClass
	}
	return ""
}

// Descriptor describes one fragment: where it comes from and where it goes.
type Descriptor struct {
	ID          string      `yaml:"id" json:"id"`
	SourcePath  string      `yaml:"path" json:"path"`
	ContainerID string      `yaml:"container" json:"container"`
	Kind        WrapperKind `yaml:"kind" json:"kind"`
}

// Validate checks a single descriptor
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return errors.New("descriptor id is required")
	}
	if d.SourcePath == "" {
		return fmt.Errorf("descriptor %s: path is required", d.ID)
	}
	if d.ContainerID == "" {
		return fmt.Errorf("descriptor %s: container is required", d.ID)
	}
	if !d.Kind.IsValid() {
		return fmt.Errorf("descriptor %s: unknown kind %q", d.ID, d.Kind)
	}
	return nil
}

// Registry is an immutable ordered list of descriptors with unique ids.
type Registry struct {
	descriptors []Descriptor
	byID        map[string]int
}

// NewRegistry validates descriptors and builds a registry. Order is kept.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make([]Descriptor, 0, len(descriptors)),
		byID:        make(map[string]int, len(descriptors)),
	}
	containers := make(map[string]string, len(descriptors))

	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate descriptor id %q", d.ID)
		}
		if owner, dup := containers[d.ContainerID]; dup {
			return nil, fmt.Errorf("container %q is used by both %s and %s", d.ContainerID, owner, d.ID)
		}
		containers[d.ContainerID] = d.ID
		r.byID[d.ID] = len(r.descriptors)
		r.descriptors = append(r.descriptors, d)
	}
	return r, nil
}

// MustRegistry is NewRegistry for static tables; it panics on invalid input.
func MustRegistry(descriptors []Descriptor) *Registry {
	r, err := NewRegistry(descriptors)
	if err != nil {
		panic(err)
	}
	return r
}

// All returns a copy of the descriptors in page order
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Lookup finds a descriptor by id
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[i], true
}

// LookupByPath finds the descriptor whose source path is path
func (r *Registry) LookupByPath(path string) (Descriptor, bool) {
	for _, d := range r.descriptors {
		if d.SourcePath == path {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Len returns the number of descriptors
func (r *Registry) Len() int {
	return len(r.descriptors)
}

// IDs returns identifiers in page order
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.descriptors))
	for i, d := range r.descriptors {
		ids[i] = d.ID
	}
	return ids
}

// Default returns the seven landing page modules, top to bottom.
func Default() *Registry {
	return MustRegistry([]Descriptor{
		{ID: "header", SourcePath: "modules/header.html", ContainerID: "header-container", Kind: KindFixed},
		{ID: "hero", SourcePath: "modules/hero.html", ContainerID: "hero-container", Kind: KindSection},
		{ID: "about", SourcePath: "modules/about.html", ContainerID: "about-container", Kind: KindSection},
		{ID: "stories", SourcePath: "modules/stories.html", ContainerID: "stories-container", Kind: KindSection},
		{ID: "events", SourcePath: "modules/events.html", ContainerID: "events-container", Kind: KindSection},
		{ID: "join", SourcePath: "modules/join.html", ContainerID: "join-container", Kind: KindSection},
		{ID: "footer", SourcePath: "modules/footer.html", ContainerID: "footer-container", Kind: KindFooter},
	})
}

// File is the on-disk layout of a registry file
type File struct {
	Modules []Descriptor `yaml:"modules"`
}

// Load reads a registry from a YAML file
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML registry document
func Parse(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}
	if len(f.Modules) == 0 {
		return nil, errors.New("registry file declares no modules")
	}
	for i := range f.Modules {
		if f.Modules[i].Kind == "" {
			f.Modules[i].Kind = KindGeneric
		}
	}
	return NewRegistry(f.Modules)
}
