package formatter

import (
	"github.com/oatdump/pkg/model"
)

// percent returns part as a percentage of whole, or 0 for an empty whole.
func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

func writeImageStats(r *TextRenderer, s *model.ImageStats) {
	r.printf("\tfile_bytes = %d\n", s.FileBytes)
	r.print("\n")

	r.print("\tfile_bytes = header_bytes + object_bytes + alignment_bytes\n")
	r.printf("\theader_bytes    = %10d (%2.0f%% of file_bytes)\n", s.HeaderBytes, percent(s.HeaderBytes, s.FileBytes))
	r.printf("\tobject_bytes    = %10d (%2.0f%% of file_bytes)\n", s.ObjectBytes, percent(s.ObjectBytes, s.FileBytes))
	r.printf("\talignment_bytes = %10d (%2.0f%% of file_bytes)\n", s.AlignmentBytes, percent(s.AlignmentBytes, s.FileBytes))
	r.print("\n")

	r.print("\tobject_bytes = sum of descriptor_to_bytes values below:\n")
	for _, d := range s.Descriptors {
		r.printf("\t%32s %8d bytes %6d instances (%3.0f bytes/instance) %2.0f%% of object_bytes\n",
			d.Descriptor, d.Bytes, d.Count, d.BytesPerInstance(), percent(d.Bytes, s.ObjectBytes))
	}
	r.print("\n")

	m := s.Methods
	r.printf("\tmanaged_code_bytes           = %8d (%2.0f%% of object_bytes)\n",
		m.ManagedCodeBytes, percent(m.ManagedCodeBytes, s.ObjectBytes))
	r.printf("\tmanaged_to_native_code_bytes = %8d (%2.0f%% of object_bytes)\n",
		m.ManagedToNativeCodeBytes, percent(m.ManagedToNativeCodeBytes, s.ObjectBytes))
	r.printf("\tnative_to_managed_code_bytes = %8d (%2.0f%% of object_bytes)\n",
		m.NativeToManagedCodeBytes, percent(m.NativeToManagedCodeBytes, s.ObjectBytes))
	r.print("\n")

	r.printf("\tregister_map_bytes     = %7d (%2.0f%% of object_bytes)\n",
		m.RegisterMapBytes, percent(m.RegisterMapBytes, s.ObjectBytes))
	r.printf("\tpc_mapping_table_bytes = %7d (%2.0f%% of object_bytes)\n",
		m.PcMappingTableBytes, percent(m.PcMappingTableBytes, s.ObjectBytes))
	r.print("\n")

	r.printf("\tdex_instruction_bytes = %d\n", m.DexInstructionBytes)
	r.printf("\tmanaged_code_bytes expansion = %.2f\n", m.Expansion())
	r.print("\n")
}
