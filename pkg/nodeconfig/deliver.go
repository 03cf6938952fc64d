package nodeconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Deliverer places a rendered document where the node will read it
type Deliverer interface {
	Deliver(ctx context.Context, rc RenderedConfig) error
}

// DelivererFunc adapts a function to the Deliverer interface
type DelivererFunc func(ctx context.Context, rc RenderedConfig) error

// Deliver calls f
func (f DelivererFunc) Deliver(ctx context.Context, rc RenderedConfig) error {
	return f(ctx, rc)
}

// FileDeliverer writes documents to the local filesystem. Relative
// destinations are resolved against Root.
type FileDeliverer struct {
	Root string
}

// Path returns the absolute or Root-relative location for a destination
func (d FileDeliverer) Path(destination string) string {
	if filepath.IsAbs(destination) || d.Root == "" {
		return destination
	}
	return filepath.Join(d.Root, destination)
}

// Deliver writes rc atomically: a reader never sees a partial document.
func (d FileDeliverer) Deliver(ctx context.Context, rc RenderedConfig) error {
	path := d.Path(rc.Destination)
	fail := func(err error) error {
		return &RenderIOError{Node: rc.Node, Path: path, Err: err}
	}

	if rc.Destination == "" {
		return fail(errors.New("empty destination"))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(rc.Content); err != nil {
		tmp.Close()
		return fail(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fail(fmt.Errorf("rename: %w", err))
	}
	return nil
}
