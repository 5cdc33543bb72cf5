package report

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/carbocation/pfx"
	"github.com/kshedden/gonpy"
	"github.com/reefgenomics/symbiomisc/ordination"
	"gonum.org/v1/gonum/mat"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// WriteNumpy writes the dissimilarities as an n x n float64 .npy array. Row
// and column order follow d.Labels.
func WriteNumpy(w io.Writer, d ordination.Dissimilarity) error {
	n := d.N()
	data := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			data = append(data, d.At(i, j))
		}
	}

	return writeNumpy(w, data, n, n)
}

// WriteEmbeddingNumpy writes ordination coordinates as an n x dims array.
func WriteEmbeddingNumpy(w io.Writer, e ordination.Embedding) error {
	r, c := e.Coords.Dims()
	return writeNumpy(w, mat.DenseCopyOf(e.Coords).RawMatrix().Data, r, c)
}

func writeNumpy(w io.Writer, data []float64, rows, cols int) error {
	npw, err := gonpy.NewWriter(nopCloser{w})
	if err != nil {
		return pfx.Err(err)
	}
	npw.Shape = []int{rows, cols}

	if err := npw.WriteFloat64(data); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// WriteNumpyFile is WriteNumpy to a new file at path.
func WriteNumpyFile(path string, d ordination.Dissimilarity) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	bufw := bufio.NewWriter(f)
	if err := WriteNumpy(bufw, d); err != nil {
		return err
	}
	if err := bufw.Flush(); err != nil {
		return pfx.Err(err)
	}

	return f.Close()
}

// ReadNumpy reads a square float64 array written by WriteNumpy. The labels are
// not stored in the array and must be supplied.
func ReadNumpy(r io.Reader, labels []string) (ordination.Dissimilarity, error) {
	npr, err := gonpy.NewReader(r)
	if err != nil {
		return ordination.Dissimilarity{}, pfx.Err(err)
	}

	if len(npr.Shape) != 2 || npr.Shape[0] != npr.Shape[1] || npr.Shape[0] != len(labels) {
		return ordination.Dissimilarity{}, pfx.Err(fmt.Errorf("array of shape %v does not match %d labels", npr.Shape, len(labels)))
	}

	data, err := npr.GetFloat64()
	if err != nil {
		return ordination.Dissimilarity{}, pfx.Err(err)
	}
	if len(labels) == 0 {
		return ordination.Dissimilarity{}, nil
	}

	return ordination.Dissimilarity{
		Labels:   append([]string(nil), labels...),
		SymDense: mat.NewSymDense(len(labels), data),
	}, nil
}
