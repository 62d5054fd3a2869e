// Package voxkit is a dataset-abstraction layer for scientific and
// medical imaging data. It locates files on disk, groups them into
// logical layers (images, segmentation masks, multi-label masks),
// resolves which files belong to which split and fold, and reads and
// writes array data plus spatial metadata through a pluggable set of
// format backends.
//
// The subpackages divide the work:
//
//   - array and spatial hold the n-d array value and the uniform
//     spacing/origin/direction metadata contract.
//   - codec is the registry dispatching load/save by (kind, extension,
//     backend); codec/npycodec, codec/raster, codec/nifti,
//     codec/metaimg, and codec/chunked are the built-in backends.
//   - locate discovers files and collapses stacked file families.
//   - task wraps resolved backends into kind-typed loaders/writers.
//   - config declares datasets and resolves per-split layer overrides.
//
// Backends attach through explicit registration. Call RegisterBuiltins
// once at startup:
//
//	reg := codec.NewRegistry()
//	if err := voxkit.RegisterBuiltins(reg); err != nil {
//		...
//	}
//
// or register into codec.Default for the process-wide registry.
package voxkit
