package pool

import (
	"github.com/pkg/errors"

	"github.com/radioastro/visim/backends"
	"github.com/radioastro/visim/internal/hostbuf"
)

// buffer is the pool backend's handle type. Only handles of this type are
// accepted by the pool kernels; anything else is a bad-location error.
type buffer struct {
	host hostbuf.Buffer
}

// own unwraps a handle presented to this backend, verifying provenance and
// liveness.
func (b *Backend) own(handle backends.Buffer, name string) (*hostbuf.Buffer, error) {
	if handle == nil {
		return nil, errors.Wrapf(backends.ErrInvalidArgument, "nil %s buffer", name)
	}
	buf, ok := handle.(*buffer)
	if !ok {
		return nil, errors.Wrapf(backends.ErrBadLocation,
			"%s buffer was not allocated by the %q backend (got %T)", name, BackendName, handle)
	}
	if !buf.host.Valid {
		return nil, errors.Wrapf(backends.ErrInvalidArgument, "%s buffer was finalized", name)
	}
	return &buf.host, nil
}

// NewBuffer implements backends.DataInterface.
func (b *Backend) NewBuffer(prec backends.Precision, kind backends.ElemKind, n int) (backends.Buffer, error) {
	host, err := hostbuf.New(prec, kind, n)
	if err != nil {
		return nil, err
	}
	return &buffer{host: *host}, nil
}

// BufferFromFlat implements backends.DataInterface.
func (b *Backend) BufferFromFlat(flat any) (backends.Buffer, error) {
	host, err := hostbuf.FromFlat(flat)
	if err != nil {
		return nil, err
	}
	return &buffer{host: *host}, nil
}

// BufferToFlat implements backends.DataInterface.
func (b *Backend) BufferToFlat(handle backends.Buffer, flat any) error {
	host, err := b.own(handle, "download")
	if err != nil {
		return err
	}
	return host.ToFlat(flat)
}

// BufferZero implements backends.DataInterface.
func (b *Backend) BufferZero(handle backends.Buffer) error {
	host, err := b.own(handle, "zero")
	if err != nil {
		return err
	}
	host.Zero()
	return nil
}

// BufferLen implements backends.DataInterface.
func (b *Backend) BufferLen(handle backends.Buffer) (int, error) {
	host, err := b.own(handle, "len")
	if err != nil {
		return 0, err
	}
	return host.Len(), nil
}

// BufferPrecision implements backends.DataInterface.
func (b *Backend) BufferPrecision(handle backends.Buffer) (backends.Precision, error) {
	host, err := b.own(handle, "precision")
	if err != nil {
		return 0, err
	}
	return host.Prec, nil
}

// BufferFinalize implements backends.DataInterface.
func (b *Backend) BufferFinalize(handle backends.Buffer) error {
	host, err := b.own(handle, "finalize")
	if err != nil {
		return err
	}
	host.Finalize()
	return nil
}
