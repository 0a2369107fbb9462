package dump

import (
	"github.com/oatdump/internal/artifact"
	"github.com/oatdump/internal/image"
	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/model"
)

// Stats accumulates the size accounting of one traversal. It is owned by a
// single traversal and is not safe for concurrent use.
type Stats struct {
	fileBytes      int64
	headerBytes    int64
	objectBytes    int64
	alignmentBytes int64
	objectCount    int64

	methods model.MethodStats

	descriptorBytes map[string]int64
	descriptorCount map[string]int64

	finalized bool
}

// NewStats returns an empty accumulator.
func NewStats() *Stats {
	return &Stats{
		descriptorBytes: make(map[string]int64),
		descriptorCount: make(map[string]int64),
	}
}

// Visit adds one object. Method objects also contribute their method sizes.
func (s *Stats) Visit(rec *ObjectRecord) error {
	if s.finalized {
		return apperrors.ConsistencyFault("object %#x visited after finalize", rec.Addr)
	}
	s.objectBytes += rec.Size
	s.alignmentBytes += artifact.RoundUp(rec.Size, image.ObjectAlignment) - rec.Size
	s.objectCount++
	s.descriptorBytes[rec.Descriptor] += rec.Size
	s.descriptorCount[rec.Descriptor]++
	if rec.Method != nil {
		s.VisitMethod(*rec.Method)
	}
	return nil
}

// VisitMethod routes the sizes of one method into the method totals.
func (s *Stats) VisitMethod(m MethodRecord) {
	s.methods.NativeToManagedCodeBytes += m.InvokeStubBytes
	switch m.Kind {
	case MethodNative:
		s.methods.NativeMethods++
		s.methods.ManagedToNativeCodeBytes += m.CodeBytes
	case MethodAbstract:
		s.methods.AbstractMethods++
	case MethodCalleeSave:
		s.methods.CalleeSaveMethods++
	default:
		s.methods.ManagedMethods++
		s.methods.ManagedCodeBytes += m.CodeBytes
		s.methods.RegisterMapBytes += m.RegisterMapBytes
		s.methods.PcMappingTableBytes += m.MappingTableBytes
		s.methods.DexInstructionBytes += m.DexInstructionBytes
	}
}

// MethodTotals returns the method totals gathered so far.
func (s *Stats) MethodTotals() model.MethodStats { return s.methods }

// Finalize records the file and header sizes and checks that the traversal
// accounted for every byte:
//
//	file_bytes   == header_bytes + object_bytes + alignment_bytes
//	object_bytes == sum of the per-descriptor bytes
func (s *Stats) Finalize(fileSize, headerSize int64) error {
	if s.finalized {
		return apperrors.ConsistencyFault("stats finalized twice")
	}
	s.finalized = true
	s.fileBytes = fileSize
	s.headerBytes = headerSize
	s.alignmentBytes += artifact.RoundUp(headerSize, image.ObjectAlignment) - headerSize

	if sum := s.headerBytes + s.objectBytes + s.alignmentBytes; sum != s.fileBytes {
		return apperrors.ConsistencyFault(
			"file_bytes %d != header_bytes %d + object_bytes %d + alignment_bytes %d (= %d)",
			s.fileBytes, s.headerBytes, s.objectBytes, s.alignmentBytes, sum)
	}
	var total int64
	for _, b := range s.descriptorBytes {
		total += b
	}
	if total != s.objectBytes {
		return apperrors.ConsistencyFault("object_bytes %d != sum of descriptor bytes %d", s.objectBytes, total)
	}
	return nil
}

// Snapshot returns the finalized statistics with descriptors sorted.
func (s *Stats) Snapshot() (*model.ImageStats, error) {
	if !s.finalized {
		return nil, apperrors.ConsistencyFault("stats read before finalize")
	}
	out := &model.ImageStats{
		FileBytes:      s.fileBytes,
		HeaderBytes:    s.headerBytes,
		ObjectBytes:    s.objectBytes,
		AlignmentBytes: s.alignmentBytes,
		ObjectCount:    s.objectCount,
		Methods:        s.methods,
		Descriptors:    make([]model.DescriptorStat, 0, len(s.descriptorBytes)),
	}
	for desc, b := range s.descriptorBytes {
		out.Descriptors = append(out.Descriptors, model.DescriptorStat{
			Descriptor: desc,
			Bytes:      b,
			Count:      s.descriptorCount[desc],
		})
	}
	out.SortDescriptors()
	return out, nil
}
