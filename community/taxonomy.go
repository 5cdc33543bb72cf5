package community

import (
	"sort"
	"strings"
	"unicode"

	"github.com/reefgenomics/symbiomisc"
)

// Taxonomy maps a taxon (sequence variant or type profile) to its clade.
type Taxonomy map[string]string

// Clades are the Symbiodiniaceae lineages SymPortal recognises, keyed by the
// single-letter label used in variant and profile names.
var Clades = map[string]string{
	"A": "Symbiodinium",
	"B": "Breviolum",
	"C": "Cladocopium",
	"D": "Durusdinium",
	"E": "Effrenium",
	"F": "Fugacium",
	"G": "Gerakladium",
	"H": "Halluxium",
	"I": "Clade I",
}

// GenusName returns the genus for a clade letter, or the label itself when it
// is not a known clade.
func GenusName(clade string) string {
	if v, ok := Clades[clade]; ok {
		return v
	}
	return clade
}

func (t Taxonomy) Clade(taxon string) (string, bool) {
	v, ok := t[taxon]
	return v, ok
}

// Groups returns the distinct clade labels, sorted.
func (t Taxonomy) Groups() []string {
	seen := make(map[string]struct{})
	for _, v := range t {
		seen[v] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}

// TaxaInGroup returns the taxa of m whose clade is group, in column order.
func (t Taxonomy) TaxaInGroup(m Matrix, group string) []string {
	out := make([]string, 0)
	for _, taxon := range m.Taxa {
		if t[taxon] == group {
			out = append(out, taxon)
		}
	}
	return out
}

// Merge returns a new taxonomy where entries from override take precedence.
func (t Taxonomy) Merge(override Taxonomy) Taxonomy {
	out := make(Taxonomy, len(t)+len(override))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// CladeOfVariant derives the clade from a SymPortal sequence or profile name.
// Named sequences start with their clade ("C3", "D1a"), profiles join named
// sequences ("C3-C3cc-C3gulf", "A1/A1bv") and unnamed sequences carry the
// clade as a suffix ("12345_C").
func CladeOfVariant(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}

	if i := strings.LastIndexByte(name, '_'); i >= 0 && i == len(name)-2 {
		clade := name[i+1:]
		if _, ok := Clades[clade]; ok {
			return clade, true
		}
	}

	first := rune(name[0])
	if !unicode.IsUpper(first) {
		return "", false
	}
	clade := string(first)
	if _, ok := Clades[clade]; !ok {
		return "", false
	}

	return clade, true
}

// VariantTaxonomy assigns a clade to every taxon by name.
func VariantTaxonomy(taxa []string) (Taxonomy, error) {
	out := make(Taxonomy, len(taxa))
	for _, taxon := range taxa {
		clade, ok := CladeOfVariant(taxon)
		if !ok {
			return nil, symbiomisc.Malformed("", "cannot derive a clade from taxon name %q", taxon)
		}
		out[taxon] = clade
	}
	return out, nil
}
