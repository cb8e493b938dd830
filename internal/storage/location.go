// Package storage stages containers and R objects between object storage
// and the local files the converter works on.
package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

const schemeS3 = "s3"

// Location is either a local path or an object in a bucket.
type Location struct {
	Bucket string
	Key    string
	Path   string
}

// ParseLocation accepts s3://bucket/key URLs and plain local paths.
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	if !strings.Contains(raw, "://") {
		return Location{Path: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
	}
	if u.Scheme != schemeS3 {
		return Location{}, fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, fmt.Errorf("location %q must name a bucket and an object key", raw)
	}
	return Location{Bucket: u.Host, Key: key}, nil
}

// Remote reports whether l lives in object storage.
func (l Location) Remote() bool { return l.Bucket != "" }

// Base returns the final element of the path or key.
func (l Location) Base() string {
	if l.Remote() {
		return path.Base(l.Key)
	}
	return path.Base(strings.ReplaceAll(l.Path, "\\", "/"))
}

func (l Location) String() string {
	if l.Remote() {
		return schemeS3 + "://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}
