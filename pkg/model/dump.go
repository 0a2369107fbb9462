// Package model defines the serializable results of a dump run.
package model

import (
	"sort"
	"time"
)

// ArtifactKind names the kind of artifact a dump was taken from.
type ArtifactKind string

const (
	ArtifactKindOat   ArtifactKind = "oat"
	ArtifactKindImage ArtifactKind = "image"
)

// DescriptorStat is the byte and instance total for one class descriptor.
type DescriptorStat struct {
	Descriptor string `json:"descriptor"`
	Bytes      int64  `json:"bytes"`
	Count      int64  `json:"count"`
}

// BytesPerInstance returns the mean instance size.
func (d DescriptorStat) BytesPerInstance() float64 {
	if d.Count == 0 {
		return 0
	}
	return float64(d.Bytes) / float64(d.Count)
}

// MethodStats totals the per-method contributions of a dump.
type MethodStats struct {
	ManagedCodeBytes         int64 `json:"managed_code_bytes"`
	ManagedToNativeCodeBytes int64 `json:"managed_to_native_code_bytes"`
	NativeToManagedCodeBytes int64 `json:"native_to_managed_code_bytes"`
	RegisterMapBytes         int64 `json:"register_map_bytes"`
	PcMappingTableBytes      int64 `json:"pc_mapping_table_bytes"`
	DexInstructionBytes      int64 `json:"dex_instruction_bytes"`

	NativeMethods     int64 `json:"native_methods"`
	AbstractMethods   int64 `json:"abstract_methods"`
	CalleeSaveMethods int64 `json:"callee_save_methods"`
	ManagedMethods    int64 `json:"managed_methods"`
}

// CodeBytes is the sum of all compiled code categories.
func (m MethodStats) CodeBytes() int64 {
	return m.ManagedCodeBytes + m.ManagedToNativeCodeBytes + m.NativeToManagedCodeBytes
}

// Expansion is managed code size relative to the dex instructions it was compiled from.
func (m MethodStats) Expansion() float64 {
	if m.DexInstructionBytes == 0 {
		return 0
	}
	return float64(m.ManagedCodeBytes) / float64(m.DexInstructionBytes)
}

// ImageStats is the finalized accounting of one heap-snapshot traversal.
type ImageStats struct {
	FileBytes      int64 `json:"file_bytes"`
	HeaderBytes    int64 `json:"header_bytes"`
	ObjectBytes    int64 `json:"object_bytes"`
	AlignmentBytes int64 `json:"alignment_bytes"`
	ObjectCount    int64 `json:"object_count"`

	Methods     MethodStats      `json:"methods"`
	Descriptors []DescriptorStat `json:"descriptors"`
}

// SortDescriptors orders descriptor rows by descriptor string.
func (s *ImageStats) SortDescriptors() {
	sort.Slice(s.Descriptors, func(i, j int) bool {
		return s.Descriptors[i].Descriptor < s.Descriptors[j].Descriptor
	})
}

// OatStats summarizes a compiled-code artifact walk.
type OatStats struct {
	DexFiles        int         `json:"dex_files"`
	MissingDexFiles int         `json:"missing_dex_files"`
	Classes         int64       `json:"classes"`
	Methods         MethodStats `json:"methods"`
}

// DumpSummary is the persisted and exported outcome of one dump.
type DumpSummary struct {
	ArtifactPath string       `json:"artifact_path"`
	Kind         ArtifactKind `json:"kind"`
	Checksum     uint32       `json:"checksum"`
	OatLocation  string       `json:"oat_location,omitempty"`
	OatFound     bool         `json:"oat_found"`
	Image        *ImageStats  `json:"image,omitempty"`
	Oat          *OatStats    `json:"oat,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
