package table

import (
	"log"

	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
)

// Join aligns metadata and a count matrix by sample identifier. Only samples
// present in both survive, in matrix row order, and each sample's ReadCount is
// set to its row sum. Two non-empty tables that share no identifier almost
// certainly name the wrong key column, which is reported as malformed input.
func Join(meta community.Metadata, m community.Matrix) (community.Matrix, community.Metadata, error) {
	if m.Scale != community.Counts {
		return community.Matrix{}, community.Metadata{}, symbiomisc.Malformed("", "join expects raw counts, got %s", m.Scale)
	}

	joined := make([]community.Sample, 0, m.Rows())
	ids := make([]string, 0, m.Rows())
	inMatrix := make(map[string]struct{}, m.Rows())

	for i, id := range m.Samples {
		inMatrix[id] = struct{}{}

		s, ok := meta.Get(id)
		if !ok {
			continue
		}
		s.ReadCount = m.RowSum(i)
		joined = append(joined, s)
		ids = append(ids, id)
	}

	if len(joined) == 0 && m.Rows() > 0 && meta.Len() > 0 {
		return community.Matrix{}, community.Metadata{}, symbiomisc.Malformed("", "no sample identifiers are shared between metadata and abundance table")
	}

	if dropped := m.Rows() - len(joined); dropped > 0 {
		log.Printf("Dropped %d abundance rows without metadata\n", dropped)
	}
	metaOnly := 0
	for _, id := range meta.IDs() {
		if _, ok := inMatrix[id]; !ok {
			metaOnly++
		}
	}
	if metaOnly > 0 {
		log.Printf("Dropped %d metadata rows without abundance data\n", metaOnly)
	}

	outMeta, err := community.NewMetadata(joined)
	if err != nil {
		return community.Matrix{}, community.Metadata{}, err
	}

	return m.SelectSamples(ids), outMeta, nil
}
