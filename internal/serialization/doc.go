// Package serialization reads and writes sample files: one image array and one
// mask array per file, plus optional string metadata.
//
// Two container formats are supported, selected by file extension:
//
//	.safetensors  [8 bytes: header size (uint64 LE)]
//	              [header: JSON, "__metadata__" plus dtype/shape/data_offsets per tensor]
//	              [tensor data: raw little-endian bytes]
//
//	.npz          zip archive of NumPy .npy arrays ("image.npy", "mask.npy")
//
// Example usage:
//
//	sample, err := serialization.ReadSample("slices/BraTS20_001_slice_080.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(sample.Image.Shape(), sample.Mask.Shape()) // [240 240 4] [240 240 3]
package serialization
