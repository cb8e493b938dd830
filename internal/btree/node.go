package btree

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/binary"
)

// Node types.
const (
	nodeGroup = 0
	nodeChunk = 1
)

// maxDepth bounds recursion through damaged trees.
const maxDepth = 32

var ErrInvalidNode = errors.New("invalid B-tree node")

// node is one decoded TREE node. keys has one more element than children;
// key i and key i+1 bracket child i.
type node struct {
	level    uint8
	keys     [][]byte
	children []uint64
}

func readNode(r *binary.Reader, addr uint64, typ uint8, keySize int) (*node, error) {
	nr := r.At(int64(addr))
	prefix, err := nr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("node at %d: %w", addr, err)
	}
	if string(prefix[:4]) != "TREE" {
		return nil, fmt.Errorf("%w at %d: signature %q", ErrInvalidNode, addr, prefix[:4])
	}
	if prefix[4] != typ {
		return nil, fmt.Errorf("%w at %d: node type %d, want %d", ErrInvalidNode, addr, prefix[4], typ)
	}
	used := int(prefix[6]) | int(prefix[7])<<8
	nr.Skip(2 * int64(r.OffsetSize())) // siblings

	n := &node{level: prefix[5], keys: make([][]byte, 0, used+1), children: make([]uint64, 0, used)}
	for i := 0; i <= used; i++ {
		key, err := nr.ReadBytes(keySize)
		if err != nil {
			return nil, fmt.Errorf("node at %d key %d: %w", addr, i, err)
		}
		n.keys = append(n.keys, key)
		if i == used {
			break
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("node at %d child %d: %w", addr, i, err)
		}
		n.children = append(n.children, child)
	}
	return n, nil
}

// walkLeaves calls visit for every child of every leaf under addr, in order,
// with the key that opens it.
func walkLeaves(r *binary.Reader, addr uint64, typ uint8, keySize, depth int, visit func(key []byte, child uint64) error) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: deeper than %d levels", ErrInvalidNode, maxDepth)
	}
	n, err := readNode(r, addr, typ, keySize)
	if err != nil {
		return err
	}
	for i, child := range n.children {
		if n.level == 0 {
			err = visit(n.keys[i], child)
		} else {
			err = walkLeaves(r, child, typ, keySize, depth+1, visit)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
