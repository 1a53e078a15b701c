package irtext

import (
	"gopkg.in/yaml.v3"

	"github.com/chazu/garnet/ir"
)

// Listing is the YAML form of an IR dump. Instructions are rendered in
// their printed form, so a listing is for reading, not for parsing back.
type Listing struct {
	Kind     string    `yaml:"kind"`
	Name     string    `yaml:"name"`
	Arity    *int      `yaml:"arity,omitempty"`
	Locals   []string  `yaml:"locals,omitempty"`
	Temps    int       `yaml:"temps,omitempty"`
	Code     []string  `yaml:"code,omitempty"`
	Children []Listing `yaml:"scopes,omitempty"`
}

// NewListing describes s and its nested scopes.
func NewListing(s *ir.Scope) Listing {
	l := Listing{
		Kind:   s.Kind.String(),
		Name:   s.Name,
		Locals: s.LocalNames(),
		Temps:  s.NumTemps(),
	}
	if s.Kind == ir.MethodScope || s.Kind == ir.ClosureScope {
		arity := s.Arity
		l.Arity = &arity
	}
	for _, in := range s.Instrs {
		l.Code = append(l.Code, in.String())
	}
	for _, c := range s.Children {
		l.Children = append(l.Children, NewListing(c))
	}
	return l
}

// MarshalListing renders the listing of s as YAML.
func MarshalListing(s *ir.Scope) ([]byte, error) {
	return yaml.Marshal(NewListing(s))
}
