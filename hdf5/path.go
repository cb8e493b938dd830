package hdf5

import (
	"fmt"
	"path"
	"strings"
)

// splitPath returns the non-empty components of p. Leading and trailing
// slashes are ignored, so "/" and "" both yield nil.
func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return path.Join(parent, name)
}

// ParseAttrPath splits "object@attribute" into its two halves. The object
// half is made absolute, and an empty one names the root group, so
// "@version" and "/@version" are the same attribute.
func ParseAttrPath(p string) (objectPath, attrName string, err error) {
	at := strings.LastIndexByte(p, '@')
	if at < 0 {
		return "", "", fmt.Errorf("%w: %q has no '@'", ErrInvalidPath, p)
	}
	objectPath, attrName = p[:at], p[at+1:]
	if attrName == "" {
		return "", "", fmt.Errorf("%w: %q names no attribute", ErrInvalidPath, p)
	}
	if !strings.HasPrefix(objectPath, "/") {
		objectPath = "/" + objectPath
	}
	return objectPath, attrName, nil
}

// JoinAttrPath is the inverse of ParseAttrPath.
func JoinAttrPath(objectPath, attrName string) string {
	if objectPath == "/" {
		return "/@" + attrName
	}
	return objectPath + "@" + attrName
}
