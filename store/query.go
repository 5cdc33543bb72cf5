package store

import (
	"github.com/carbocation/pfx"
	"github.com/reefgenomics/symbiomisc/community"
)

func (s *Store) Samples() ([]community.Sample, error) {
	out := make([]community.Sample, 0)
	if err := s.DB.Select(&out, "SELECT * FROM sample ORDER BY sample_id"); err != nil {
		return nil, pfx.Err(err)
	}
	return out, nil
}

func (s *Store) Dominance(analysis string) ([]DominanceRow, error) {
	out := make([]DominanceRow, 0)
	if err := s.DB.Select(&out, "SELECT * FROM dominance WHERE analysis = ? ORDER BY sample_id", analysis); err != nil {
		return nil, pfx.Err(err)
	}
	return out, nil
}

// ChangedColonies returns the colonies whose dominant group changed.
func (s *Store) ChangedColonies() ([]ChangeRow, error) {
	out := make([]ChangeRow, 0)
	if err := s.DB.Select(&out, "SELECT * FROM colony_change WHERE genus_changed ORDER BY colony_id"); err != nil {
		return nil, pfx.Err(err)
	}
	return out, nil
}

func (s *Store) Ordination(analysis string) ([]OrdinationRow, error) {
	out := make([]OrdinationRow, 0)
	if err := s.DB.Select(&out, "SELECT * FROM ordination WHERE analysis = ? ORDER BY sample_id", analysis); err != nil {
		return nil, pfx.Err(err)
	}
	return out, nil
}

func (s *Store) Pairwise(batch string) ([]PairwiseRow, error) {
	out := make([]PairwiseRow, 0)
	if err := s.DB.Select(&out, "SELECT * FROM pairwise WHERE batch = ? ORDER BY group_a, group_b", batch); err != nil {
		return nil, pfx.Err(err)
	}
	return out, nil
}

// SignificantPairs returns every significant pair across batches.
func (s *Store) SignificantPairs() ([]PairwiseRow, error) {
	out := make([]PairwiseRow, 0)
	if err := s.DB.Select(&out, "SELECT * FROM pairwise WHERE significant ORDER BY batch, group_a, group_b"); err != nil {
		return nil, pfx.Err(err)
	}
	return out, nil
}
