package hdf5

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-scdior/internal/message"
	"github.com/robert-malhotra/go-scdior/internal/object"
)

// maxCompactAttributeSize is the largest attribute message stored in an
// object header. Dense attribute storage is not written.
const maxCompactAttributeSize = 0xFFFF

func newPendingGroup(f *File, parent *Group, name, groupPath string) *Group {
	return &Group{
		file:     f,
		path:     groupPath,
		parent:   parent,
		name:     name,
		pending:  true,
		dirty:    true,
		children: make(map[string]*Group),
	}
}

// CreateGroup creates a new subgroup with the given name.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.prepareLink(name); err != nil {
		return nil, err
	}

	child := newPendingGroup(g.file, g, name, childPath(g.path, name))
	g.links = append(g.links, message.NewHardLink(name, 0))
	g.children[name] = child
	g.markDirty()
	return child, nil
}

// RequireGroup returns the named subgroup, creating it if it does not exist.
func (g *Group) RequireGroup(name string) (*Group, error) {
	if child, ok := g.children[name]; ok {
		return child, nil
	}
	if g.link(name) != nil {
		return nil, fmt.Errorf("%w: %s is not a group", ErrExists, childPath(g.path, name))
	}
	return g.CreateGroup(name)
}

// SetAttr sets an attribute on the group, replacing any attribute with the same name.
// Strings and string slices are stored as variable-length UTF-8 strings.
func (g *Group) SetAttr(name string, value interface{}) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	if !g.pending {
		return fmt.Errorf("%w: modifying existing group %s", ErrUnsupported, g.path)
	}
	if name == "" {
		return fmt.Errorf("attribute name cannot be empty")
	}

	attr, err := g.file.createAttributeMessage(name, value)
	if err != nil {
		return fmt.Errorf("creating attribute %q: %w", name, err)
	}

	for i, existing := range g.attrs {
		if existing.Name == name {
			g.attrs[i] = attr
			g.markDirty()
			return nil
		}
	}
	g.attrs = append(g.attrs, attr)
	g.markDirty()
	return nil
}

// prepareLink validates that a new member called name can be added.
func (g *Group) prepareLink(name string) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	if !g.pending {
		return fmt.Errorf("%w: modifying existing group %s", ErrUnsupported, g.path)
	}
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: member name %q", ErrInvalidPath, name)
	}
	if strings.ContainsRune(name, '/') {
		return fmt.Errorf("%w: member name %q contains '/'", ErrInvalidPath, name)
	}
	if g.link(name) != nil {
		return fmt.Errorf("%w: %s", ErrExists, childPath(g.path, name))
	}
	return nil
}

func (g *Group) link(name string) *message.Link {
	for _, l := range g.links {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// addLink adds a hard link to an object whose header is already written.
func (g *Group) addLink(name string, addr uint64) {
	g.links = append(g.links, message.NewHardLink(name, addr))
	g.markDirty()
}

// markDirty flags g and every ancestor for rewriting on the next flush.
func (g *Group) markDirty() {
	for p := g; p != nil; p = p.parent {
		p.dirty = true
	}
}

// flush writes dirty descendants first so that their final addresses can be
// recorded in this group's links, then writes this group's header.
func (g *Group) flush() error {
	for _, l := range g.links {
		child, ok := g.children[l.Name]
		if !ok || !child.dirty {
			continue
		}
		if err := child.flush(); err != nil {
			return err
		}
		l.ObjectAddress = child.addr
	}

	messages := object.NewGroupHeader(g.links)
	for _, attr := range g.attrs {
		messages = append(messages, attr)
	}

	addr, err := object.Write(g.file.writer, messages, object.MinGroupChunkSize, g.file.allocate)
	if err != nil {
		return fmt.Errorf("writing header of group %s: %w", g.path, err)
	}

	g.addr = addr
	g.dirty = false
	if g.parent == nil {
		g.file.superblock.RootGroupAddress = addr
	}
	return nil
}
