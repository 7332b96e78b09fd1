package grt

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// structsFile is the declarative metaclass source:
//
//	classes:
//	  - name: db.Table
//	    parent: db.DatabaseObject
//	    members:
//	      - {name: columns, type: list, content: object, class: db.Column, owned: true}
type structsFile struct {
	Classes []classDecl `yaml:"classes"`
}

type classDecl struct {
	Name    string       `yaml:"name"`
	Parent  string       `yaml:"parent"`
	Members []memberDecl `yaml:"members"`
}

type memberDecl struct {
	Name     string    `yaml:"name"`
	Type     string    `yaml:"type"`
	Content  string    `yaml:"content"`
	Class    string    `yaml:"class"`
	Owned    bool      `yaml:"owned"`
	ReadOnly bool      `yaml:"read_only"`
	Default  yaml.Node `yaml:"default"`
}

// LoadStructsFile registers the classes declared in a YAML structs file
func (r *Registry) LoadStructsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open structs file: %w", err)
	}
	defer f.Close()

	names, err := r.LoadStructs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return names, nil
}

// LoadStructs registers the classes declared in a YAML structs document.
// Classes may appear in any order; base classes are registered first.
// Returns the names of the registered classes in registration order.
func (r *Registry) LoadStructs(in io.Reader) ([]string, error) {
	var file structsFile
	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse structs: %w", err)
	}

	order, err := parentFirst(file.Classes, r)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(order))
	for _, decl := range order {
		members := make([]Member, 0, len(decl.Members))
		for _, md := range decl.Members {
			m, err := md.toMember()
			if err != nil {
				return names, fmt.Errorf("class %s: %w", decl.Name, err)
			}
			members = append(members, m)
		}
		if _, err := r.Register(decl.Name, decl.Parent, members); err != nil {
			return names, err
		}
		names = append(names, decl.Name)
	}
	return names, nil
}

func (md memberDecl) toMember() (Member, error) {
	base, err := ParseType(md.Type)
	if err != nil {
		return Member{}, fmt.Errorf("member %s: %w", md.Name, err)
	}

	m := Member{Name: md.Name, Owned: md.Owned, ReadOnly: md.ReadOnly}
	switch base {
	case ListType, DictType:
		content, err := ParseType(md.Content)
		if err != nil {
			return Member{}, fmt.Errorf("member %s content: %w", md.Name, err)
		}
		m.Type = TypeSpec{
			Base:    SimpleTypeSpec{Type: base},
			Content: SimpleTypeSpec{Type: content, Class: md.Class},
		}
	default:
		m.Type = TypeSpec{Base: SimpleTypeSpec{Type: base, Class: md.Class}}
	}

	if !md.Default.IsZero() {
		def, err := decodeDefault(base, &md.Default)
		if err != nil {
			return Member{}, fmt.Errorf("member %s default: %w", md.Name, err)
		}
		m.Default = def
	}
	return m, nil
}

func decodeDefault(t Type, node *yaml.Node) (Value, error) {
	switch t {
	case IntegerType:
		var i int64
		if err := node.Decode(&i); err != nil {
			return nil, err
		}
		return Int(i), nil
	case DoubleType:
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return Real(f), nil
	case StringType:
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, err
		}
		return String(s), nil
	default:
		return nil, fmt.Errorf("type %s takes no default", t)
	}
}

// parentFirst orders declarations so every class follows its parent
func parentFirst(decls []classDecl, r *Registry) ([]classDecl, error) {
	byName := make(map[string]classDecl, len(decls))
	for _, d := range decls {
		if d.Name == "" {
			return nil, fmt.Errorf("class without a name")
		}
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClass, d.Name)
		}
		byName[d.Name] = d
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(decls))
	order := make([]classDecl, 0, len(decls))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("inheritance cycle: %v", append(path, name))
		}
		d := byName[name]
		state[name] = visiting
		if d.Parent != "" {
			if _, local := byName[d.Parent]; local {
				if err := visit(d.Parent, append(path, name)); err != nil {
					return err
				}
			} else if !r.Exists(d.Parent) {
				return fmt.Errorf("%w: %s (parent of %s)", ErrUnknownClass, d.Parent, name)
			}
		}
		state[name] = done
		order = append(order, d)
		return nil
	}

	for _, d := range decls {
		if err := visit(d.Name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}
