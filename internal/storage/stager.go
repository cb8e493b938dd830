package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrNoObjectStore is returned for remote locations when no object store
// is configured.
var ErrNoObjectStore = errors.New("no object store configured")

// Stager maps locations to local files. Remote objects are copied into a
// private temporary directory for the duration of a conversion.
type Stager struct {
	store  ObjectStore
	dir    string
	logger *zap.Logger
}

// NewStager returns a stager. store may be nil when only local paths are
// used; dir is the parent of the staging directories ("" for the system
// default).
func NewStager(store ObjectStore, dir string, logger *zap.Logger) *Stager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stager{store: store, dir: dir, logger: logger}
}

// Fetch returns a local path holding the object at loc. release removes
// any staged copy and is safe to call more than once.
func (s *Stager) Fetch(ctx context.Context, loc Location) (local string, release func(), err error) {
	if !loc.Remote() {
		return loc.Path, func() {}, nil
	}
	if s.store == nil {
		return "", nil, fmt.Errorf("%s: %w", loc, ErrNoObjectStore)
	}

	local, release, err = s.scratch(loc)
	if err != nil {
		return "", nil, err
	}
	if err := s.download(ctx, loc, local); err != nil {
		release()
		return "", nil, err
	}
	s.logger.Debug("staged object", zap.Stringer("location", loc), zap.String("local", local))
	return local, release, nil
}

// Target returns a local path to write loc to. commit publishes the file
// to loc; for local locations it does nothing.
func (s *Stager) Target(loc Location) (local string, commit func(context.Context) error, release func(), err error) {
	if !loc.Remote() {
		return loc.Path, func(context.Context) error { return nil }, func() {}, nil
	}
	if s.store == nil {
		return "", nil, nil, fmt.Errorf("%s: %w", loc, ErrNoObjectStore)
	}

	local, release, err = s.scratch(loc)
	if err != nil {
		return "", nil, nil, err
	}
	commit = func(ctx context.Context) error {
		f, err := os.Open(local)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := s.store.Put(ctx, loc.Bucket, loc.Key, f); err != nil {
			return err
		}
		s.logger.Debug("published object", zap.Stringer("location", loc), zap.String("local", local))
		return nil
	}
	return local, commit, release, nil
}

// scratch creates a staging directory and returns the path loc takes
// inside it. The base name is kept so derived names stay recognisable.
func (s *Stager) scratch(loc Location) (string, func(), error) {
	dir, err := os.MkdirTemp(s.dir, "scdior-*")
	if err != nil {
		return "", nil, fmt.Errorf("create staging directory: %w", err)
	}
	release := func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("removing staging directory", zap.String("dir", dir), zap.Error(err))
		}
	}
	return filepath.Join(dir, loc.Base()), release, nil
}

func (s *Stager) download(ctx context.Context, loc Location, dst string) error {
	body, err := s.store.Get(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("download %s: %w", loc, err)
	}
	return f.Close()
}
