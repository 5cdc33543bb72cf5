// Package report renders analysis results as delimited tables, numpy arrays
// and figures.
package report

import (
	"image/color"
	"math/rand"

	"github.com/carbocation/pfx"
	"github.com/icza/gox/imagex/colorx"
)

// BasePalette is a qualitative palette that stays distinguishable for the
// handful of genera and the few dozen profiles of one study.
var BasePalette = []string{
	"#1b9e77", "#d95f02", "#7570b3", "#e7298a", "#66a61e", "#e6ab02",
	"#a6761d", "#666666", "#1f78b4", "#b2df8a", "#fb9a99", "#fdbf6f",
	"#cab2d6", "#6a3d9a", "#ffff99", "#b15928", "#8dd3c7", "#bebada",
	"#fb8072", "#80b1d3",
}

// Palette assigns a color to every taxon. The assignment depends only on the
// order of taxa and the seed: the base palette is shuffled once with the seed
// and dealt out in taxon order. Taxa beyond the palette size reuse it, each
// further pass lighter than the last.
func Palette(taxa []string, seed int64) (map[string]color.RGBA, error) {
	base := make([]color.RGBA, 0, len(BasePalette))
	for _, hex := range BasePalette {
		c, err := colorx.ParseHexColor(hex)
		if err != nil {
			return nil, pfx.Err(err)
		}
		base = append(base, c)
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(base), func(i, j int) { base[i], base[j] = base[j], base[i] })

	out := make(map[string]color.RGBA, len(taxa))
	for k, taxon := range taxa {
		if _, exists := out[taxon]; exists {
			continue
		}
		out[taxon] = lighten(base[k%len(base)], k/len(base))
	}

	return out, nil
}

// lighten moves c a third of the way to white per pass.
func lighten(c color.RGBA, passes int) color.RGBA {
	for p := 0; p < passes; p++ {
		c.R += (255 - c.R) / 3
		c.G += (255 - c.G) / 3
		c.B += (255 - c.B) / 3
	}
	return c
}
