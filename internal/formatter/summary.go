package formatter

import (
	"sort"

	"github.com/oatdump/pkg/model"
	"github.com/oatdump/pkg/utils"
)

// LogSummary writes a short digest of a dump to the logger.
func LogSummary(s *model.DumpSummary, log utils.Logger) {
	if s == nil {
		return
	}
	log.Info("=== Dump Summary ===")
	log.Info("Artifact:  %s (%s)", s.ArtifactPath, s.Kind)
	log.Info("Checksum:  %08x", s.Checksum)

	if img := s.Image; img != nil {
		log.Info("Objects:   %d in %d bytes (%d header, %d alignment)",
			img.ObjectCount, img.FileBytes, img.HeaderBytes, img.AlignmentBytes)
		top := topDescriptors(img, 5)
		for i, d := range top {
			log.Info("  %d. %-40s %8d bytes %2.0f%%", i+1, d.Descriptor, d.Bytes, percent(d.Bytes, img.ObjectBytes))
		}
		if s.OatLocation != "" {
			if s.OatFound {
				log.Info("Oat:       %s", s.OatLocation)
			} else {
				log.Warn("Oat:       %s NOT FOUND", s.OatLocation)
			}
		}
	}

	if o := s.Oat; o != nil {
		log.Info("Dex files: %d (%d not found)", o.DexFiles, o.MissingDexFiles)
		log.Info("Classes:   %d", o.Classes)
		log.Info("Code:      %d bytes, expansion %.2f", o.Methods.CodeBytes(), o.Methods.Expansion())
	}
}

// SummaryFields returns the headline numbers of a dump for structured logs.
func SummaryFields(s *model.DumpSummary) map[string]interface{} {
	fields := map[string]interface{}{
		"artifact": s.ArtifactPath,
		"kind":     string(s.Kind),
		"checksum": s.Checksum,
	}
	if s.Image != nil {
		fields["object_count"] = s.Image.ObjectCount
		fields["object_bytes"] = s.Image.ObjectBytes
		fields["oat_found"] = s.OatFound
	}
	if s.Oat != nil {
		fields["classes"] = s.Oat.Classes
		fields["code_bytes"] = s.Oat.Methods.CodeBytes()
	}
	return fields
}

// topDescriptors returns up to n descriptor rows with the most bytes.
func topDescriptors(s *model.ImageStats, n int) []model.DescriptorStat {
	rows := append([]model.DescriptorStat(nil), s.Descriptors...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Bytes > rows[j].Bytes })
	return rows[:min(n, len(rows))]
}
