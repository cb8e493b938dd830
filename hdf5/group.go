package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-scdior/internal/btree"
	"github.com/robert-malhotra/go-scdior/internal/heap"
	"github.com/robert-malhotra/go-scdior/internal/message"
	"github.com/robert-malhotra/go-scdior/internal/object"
)

// Group is a named collection of links to datasets and other groups.
//
// Groups of a writable file keep their links and attributes in memory
// until File.Flush writes their headers.
type Group struct {
	file   *File
	path   string
	header *object.Header
	addr   uint64

	// members caches the links of a group read from disk.
	members []*message.Link

	parent   *Group
	name     string
	pending  bool
	dirty    bool
	links    []*message.Link
	attrs    []*message.Attribute
	children map[string]*Group
}

// target is the object a link resolves to, which may live in another file.
type target struct {
	file    *File
	addr    uint64
	dataset bool
}

func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

func (g *Group) Path() string { return g.path }

// OpenGroup opens the group at p, relative to g.
func (g *Group) OpenGroup(p string) (*Group, error) {
	obj, err := g.open(p)
	if err != nil {
		return nil, err
	}
	sub, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, p)
	}
	return sub, nil
}

// OpenDataset opens the dataset at p, relative to g.
func (g *Group) OpenDataset(p string) (*Dataset, error) {
	obj, err := g.open(p)
	if err != nil {
		return nil, err
	}
	d, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, p)
	}
	return d, nil
}

// open walks p one component at a time and returns a *Group or *Dataset.
func (g *Group) open(p string) (interface{}, error) {
	parts := splitPath(p)
	cur := g
	seen := make(map[string]bool)
	for i, name := range parts {
		full := childPath(cur.path, name)
		if child, ok := cur.children[name]; ok {
			cur = child
			continue
		}
		t, err := cur.find(name, seen)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", full, err)
		}
		if t.dataset {
			if i < len(parts)-1 {
				return nil, fmt.Errorf("%w: %s", ErrNotGroup, full)
			}
			return t.file.openDatasetAt(t.addr, full)
		}
		if cur, err = t.file.openGroupAt(t.addr, full); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// find resolves the member called name. seen holds the soft and external
// links already followed during the current lookup.
func (g *Group) find(name string, seen map[string]bool) (target, error) {
	links, err := g.entries()
	if err != nil {
		return target{}, err
	}
	for _, l := range links {
		if l.Name == name {
			return g.follow(l, seen)
		}
	}
	return target{}, ErrNotFound
}

func (g *Group) follow(l *message.Link, seen map[string]bool) (target, error) {
	switch {
	case l.IsHard():
		ds, err := g.file.isDataset(l.ObjectAddress)
		return target{file: g.file, addr: l.ObjectAddress, dataset: ds}, err
	case l.IsSoft():
		if err := visit(seen, l.SoftLinkValue); err != nil {
			return target{}, err
		}
		return g.file.lookup(l.SoftLinkValue, seen)
	case l.IsExternal():
		if err := visit(seen, l.ExternalFile+":"+l.ExternalPath); err != nil {
			return target{}, err
		}
		ext, err := g.file.external(l.ExternalFile)
		if err != nil {
			return target{}, err
		}
		t, err := ext.lookup(l.ExternalPath, seen)
		if err != nil {
			return target{}, fmt.Errorf("%s in %s: %w", l.ExternalPath, l.ExternalFile, err)
		}
		return t, nil
	}
	return target{}, fmt.Errorf("%w: link type %d", ErrUnsupported, l.LinkType)
}

// visit records one followed link and fails on cycles or overly long
// chains.
func visit(seen map[string]bool, key string) error {
	if seen[key] {
		return fmt.Errorf("%w: link cycle through %s", ErrLinkDepth, key)
	}
	if len(seen) >= MaxLinkDepth {
		return ErrLinkDepth
	}
	seen[key] = true
	return nil
}

// entries returns every link of the group. Old-style groups index their
// members in a symbol table; their entries come back as hard or soft links.
func (g *Group) entries() ([]*message.Link, error) {
	if g.pending {
		return g.links, nil
	}
	if g.members != nil {
		return g.members, nil
	}

	var links []*message.Link
	for _, m := range g.header.GetMessages(message.TypeLink) {
		links = append(links, m.(*message.Link))
	}
	if len(links) == 0 {
		if info, ok := g.header.GetMessage(message.TypeLinkInfo).(*message.LinkInfo); ok && info.Dense() {
			return nil, fmt.Errorf("%w: group %s stores its links densely", ErrUnsupported, g.path)
		}
		var err error
		if links, err = g.symbolTableLinks(); err != nil {
			return nil, fmt.Errorf("group %s: %w", g.path, err)
		}
	}
	if links == nil {
		links = []*message.Link{}
	}
	g.members = links
	return links, nil
}

func (g *Group) symbolTableLinks() ([]*message.Link, error) {
	st, _ := g.header.GetMessage(message.TypeSymbolTable).(*message.SymbolTable)
	sb := g.file.superblock
	if st == nil && g.path == "/" && sb.RootGroupBTreeAddress != 0 {
		// v0 files cache the root symbol table in the superblock
		st = &message.SymbolTable{BTreeAddress: sb.RootGroupBTreeAddress, LocalHeapAddress: sb.RootGroupLocalHeapAddress}
	}
	if st == nil {
		return nil, nil
	}

	names, err := heap.ReadLocalHeap(g.file.reader, st.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("reading local heap: %w", err)
	}
	found, err := btree.ReadGroupEntries(g.file.reader, st.BTreeAddress, names)
	if err != nil {
		return nil, fmt.Errorf("reading symbol table: %w", err)
	}
	links := make([]*message.Link, 0, len(found))
	for _, e := range found {
		if e.Soft {
			links = append(links, message.NewSoftLink(e.Name, e.SoftLinkValue))
		} else {
			links = append(links, message.NewHardLink(e.Name, e.ObjectAddress))
		}
	}
	return links, nil
}

// Members returns the names of the group's links in storage order.
func (g *Group) Members() ([]string, error) {
	links, err := g.entries()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(links))
	for i, l := range links {
		names[i] = l.Name
	}
	return names, nil
}

func (g *Group) attributeMessages() []*message.Attribute {
	if g.pending {
		return g.attrs
	}
	return attributes(g.header)
}

func (g *Group) Attrs() []string { return attrNames(g.attributeMessages()) }

// Attr returns the named attribute, or nil.
func (g *Group) Attr(name string) *Attribute {
	return findAttr(g.attributeMessages(), name, g.file.reader)
}

func (g *Group) HasAttr(name string) bool { return g.Attr(name) != nil }

// ObjectKind tells groups and datasets apart.
type ObjectKind int

const (
	KindGroup ObjectKind = iota + 1
	KindDataset
)

func (k ObjectKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindDataset:
		return "dataset"
	}
	return "unknown"
}

// Kind reports what the member called name is, following links. It
// returns ErrNotFound for a missing member.
func (g *Group) Kind(name string) (ObjectKind, error) {
	if _, ok := g.children[name]; ok {
		return KindGroup, nil
	}
	t, err := g.find(name, make(map[string]bool))
	if err != nil {
		return 0, err
	}
	if t.dataset {
		return KindDataset, nil
	}
	return KindGroup, nil
}

// Has reports whether name resolves to an object.
func (g *Group) Has(name string) bool {
	_, err := g.Kind(name)
	return err == nil
}
