package voxkit

import (
	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/codec/chunked"
	"github.com/voxkit/voxkit/codec/metaimg"
	"github.com/voxkit/voxkit/codec/nifti"
	"github.com/voxkit/voxkit/codec/npycodec"
	"github.com/voxkit/voxkit/codec/raster"
)

// RegisterBuiltins attaches every built-in backend to r in a fixed
// order, which pins the default backend per (kind, extension). Calling
// it twice on the same registry fails with ErrBackendRegistered.
func RegisterBuiltins(r *codec.Registry) error {
	for _, register := range []func(*codec.Registry) error{
		npycodec.Register,
		raster.Register,
		nifti.Register,
		metaimg.Register,
		chunked.Register,
	} {
		if err := register(r); err != nil {
			return err
		}
	}
	return nil
}
