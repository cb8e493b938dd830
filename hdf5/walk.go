package hdf5

import (
	"errors"
	"sort"
)

// ErrSkipGroup is returned by a WalkFunc visiting a group to leave its
// members out of the walk.
var ErrSkipGroup = errors.New("skip group")

// ErrStopWalk is returned by a WalkFunc to end the walk early. Walk then
// returns nil.
var ErrStopWalk = errors.New("stop walk")

// Entry is one object reached by Walk.
type Entry struct {
	Path  string
	Name  string
	Depth int // 0 for the starting group
	Kind  ObjectKind

	// Exactly one of Group and Dataset is set when the object opened.
	Group   *Group
	Dataset *Dataset
}

// Attrs returns the attribute names of the entry's object.
func (e Entry) Attrs() []string {
	switch {
	case e.Group != nil:
		return e.Group.Attrs()
	case e.Dataset != nil:
		return e.Dataset.Attrs()
	}
	return nil
}

// Attr returns the named attribute of the entry's object, or nil.
func (e Entry) Attr(name string) *Attribute {
	switch {
	case e.Group != nil:
		return e.Group.Attr(name)
	case e.Dataset != nil:
		return e.Dataset.Attr(name)
	}
	return nil
}

// WalkFunc visits one entry. err is set when the member could not be
// resolved or opened; the entry then carries only its path, name, depth
// and, when known, its kind.
type WalkFunc func(e Entry, err error) error

// Walk visits g and every object below it depth first. Members of a group
// are visited in name order after the group itself.
func Walk(g *Group, fn WalkFunc) error {
	err := walkGroup(g, 0, fn)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func walkGroup(g *Group, depth int, fn WalkFunc) error {
	err := fn(Entry{Path: g.Path(), Name: g.Name(), Depth: depth, Kind: KindGroup, Group: g}, nil)
	if errors.Is(err, ErrSkipGroup) {
		return nil
	}
	if err != nil {
		return err
	}

	members, err := g.Members()
	if err != nil {
		return err
	}
	sort.Strings(members)

	for _, name := range members {
		e := Entry{Path: childPath(g.Path(), name), Name: name, Depth: depth + 1}
		kind, err := g.Kind(name)
		if err != nil {
			if err := fn(e, err); err != nil {
				return err
			}
			continue
		}
		e.Kind = kind

		switch kind {
		case KindGroup:
			child, err := g.OpenGroup(name)
			if err != nil {
				if err := fn(e, err); err != nil {
					return err
				}
				continue
			}
			if err := walkGroup(child, depth+1, fn); err != nil {
				return err
			}
		case KindDataset:
			ds, err := g.OpenDataset(name)
			if err == nil {
				e.Dataset = ds
			}
			if err := fn(e, err); err != nil && !errors.Is(err, ErrSkipGroup) {
				return err
			}
		}
	}
	return nil
}
