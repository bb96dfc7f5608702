package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Split is one labeled portion of the dataset: a feature matrix of shape
// [N, D] paired with N integer class labels.
type Split struct {
	X      *mat.Dense
	Labels []int
}

// Bundle holds the three fixed splits a training run consumes.
type Bundle struct {
	Train Split
	Valid Split
	Test  Split
}

// Len returns the number of examples in the split.
func (s Split) Len() int {
	if s.X == nil {
		return 0
	}
	r, _ := s.X.Dims()
	return r
}

// NumBatches returns how many full mini-batches of batchSize fit in the
// split. Remainder examples are dropped, matching floor division.
func (s Split) NumBatches(batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	return s.Len() / batchSize
}

// Batch returns the i-th contiguous mini-batch as a view over the split.
// The feature matrix is shared with the split; callers must not mutate it.
func (s Split) Batch(i, batchSize int) (mat.Matrix, []int) {
	_, cols := s.X.Dims()
	lo := i * batchSize
	hi := lo + batchSize
	return s.X.Slice(lo, hi, 0, cols), s.Labels[lo:hi]
}

// FeatureWidth returns D, the fixed flattened feature size.
func (b *Bundle) FeatureWidth() int {
	if b.Train.X == nil {
		return 0
	}
	_, c := b.Train.X.Dims()
	return c
}

// NumClasses returns K, one past the largest label seen across all splits.
func (b *Bundle) NumClasses() int {
	max := -1
	for _, s := range []Split{b.Train, b.Valid, b.Test} {
		for _, y := range s.Labels {
			if y > max {
				max = y
			}
		}
	}
	return max + 1
}

// Validate checks that every split is internally consistent: labels parallel
// to feature rows, non-negative, and a uniform feature width across splits.
func (b *Bundle) Validate() error {
	width := b.FeatureWidth()
	if width == 0 {
		return errors.New("dataset: empty training split")
	}
	names := []string{"train", "valid", "test"}
	for i, s := range []Split{b.Train, b.Valid, b.Test} {
		if s.X == nil {
			return errors.Errorf("dataset: %s split has no features", names[i])
		}
		rows, cols := s.X.Dims()
		if cols != width {
			return errors.Errorf("dataset: %s split has feature width %d, want %d", names[i], cols, width)
		}
		if rows != len(s.Labels) {
			return errors.Errorf("dataset: %s split has %d feature rows but %d labels", names[i], rows, len(s.Labels))
		}
		for j, y := range s.Labels {
			if y < 0 {
				return errors.Errorf("dataset: %s split label %d is negative (%d)", names[i], j, y)
			}
		}
	}
	return nil
}

// splitWire is the serialized form of one split.
type splitWire struct {
	Rows, Cols int
	Data       []float64
	Labels     []int
}

type bundleWire struct {
	Train, Valid, Test splitWire
}

func toWire(s Split) splitWire {
	r, c := s.X.Dims()
	raw := s.X.RawMatrix()
	data := make([]float64, r*c)
	for i := 0; i < r; i++ {
		copy(data[i*c:(i+1)*c], raw.Data[i*raw.Stride:i*raw.Stride+c])
	}
	return splitWire{Rows: r, Cols: c, Data: data, Labels: s.Labels}
}

func fromWire(w splitWire) (Split, error) {
	if len(w.Data) != w.Rows*w.Cols {
		return Split{}, errors.Errorf("dataset: %d feature values for shape [%d, %d]", len(w.Data), w.Rows, w.Cols)
	}
	return Split{X: mat.NewDense(w.Rows, w.Cols, w.Data), Labels: w.Labels}, nil
}

// Load reads a gzip-compressed gob container holding the three splits.
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset bundle")
	}
	defer f.Close()

	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "read dataset bundle %s", path)
	}
	defer zr.Close()

	var wire bundleWire
	if err := gob.NewDecoder(zr).Decode(&wire); err != nil {
		return nil, errors.Wrapf(err, "decode dataset bundle %s", path)
	}

	b := &Bundle{}
	if b.Train, err = fromWire(wire.Train); err != nil {
		return nil, errors.Wrap(err, "train split")
	}
	if b.Valid, err = fromWire(wire.Valid); err != nil {
		return nil, errors.Wrap(err, "valid split")
	}
	if b.Test, err = fromWire(wire.Test); err != nil {
		return nil, errors.Wrap(err, "test split")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Save writes the bundle as a gzip-compressed gob container.
func Save(path string, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create dataset bundle")
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	wire := bundleWire{Train: toWire(b.Train), Valid: toWire(b.Valid), Test: toWire(b.Test)}
	if err := gob.NewEncoder(zw).Encode(&wire); err != nil {
		return errors.Wrapf(err, "encode dataset bundle %s", path)
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "flush dataset bundle")
	}
	return f.Close()
}
