package grid

import (
	"github.com/pkg/errors"

	"github.com/radioastro/visim/backends"
	"github.com/radioastro/visim/internal/hostbuf"
)

// buffer is the grid backend's handle type, its emulated device memory.
// Handles of any other backend are in the wrong memory space.
type buffer struct {
	device hostbuf.Buffer
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
	if !buf.device.Valid {
		return nil, errors.Wrapf(backends.ErrInvalidArgument, "%s buffer was finalized", name)
	}
	return &buf.device, nil
}

// NewBuffer implements backends.DataInterface.
func (b *Backend) NewBuffer(prec backends.Precision, kind backends.ElemKind, n int) (backends.Buffer, error) {
	device, err := hostbuf.New(prec, kind, n)
	if err != nil {
		return nil, err
	}
	return &buffer{device: *device}, nil
}

// BufferFromFlat implements backends.DataInterface.
func (b *Backend) BufferFromFlat(flat any) (backends.Buffer, error) {
	device, err := hostbuf.FromFlat(flat)
	if err != nil {
		return nil, err
	}
	return &buffer{device: *device}, nil
}

// BufferToFlat implements backends.DataInterface.
func (b *Backend) BufferToFlat(handle backends.Buffer, flat any) error {
	device, err := b.own(handle, "download")
	if err != nil {
		return err
	}
	return device.ToFlat(flat)
}

// BufferZero implements backends.DataInterface.
func (b *Backend) BufferZero(handle backends.Buffer) error {
	device, err := b.own(handle, "zero")
	if err != nil {
		return err
	}
	device.Zero()
	return nil
}

// BufferLen implements backends.DataInterface.
func (b *Backend) BufferLen(handle backends.Buffer) (int, error) {
	device, err := b.own(handle, "len")
	if err != nil {
		return 0, err
	}
	return device.Len(), nil
}

// BufferPrecision implements backends.DataInterface.
func (b *Backend) BufferPrecision(handle backends.Buffer) (backends.Precision, error) {
	device, err := b.own(handle, "precision")
	if err != nil {
		return 0, err
	}
	return device.Prec, nil
}

// BufferFinalize implements backends.DataInterface.
func (b *Backend) BufferFinalize(handle backends.Buffer) error {
	device, err := b.own(handle, "finalize")
	if err != nil {
		return err
	}
	device.Finalize()
	return nil
}
