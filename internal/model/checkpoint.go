package model

import (
	"bufio"
	"compress/gzip"
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Snapshot is a deep copy of the model parameters at a point in time.
type Snapshot struct {
	NumIn  int
	NumOut int
	W      []float64
	B      []float64
}

// Snapshot copies the current parameters out of the model.
func (m *LogisticRegression) Snapshot() Snapshot {
	w := make([]float64, m.numIn*m.numOut)
	copy(w, m.w.RawMatrix().Data)
	b := make([]float64, m.numOut)
	copy(b, m.b.RawVector().Data)
	return Snapshot{NumIn: m.numIn, NumOut: m.numOut, W: w, B: b}
}

// Restore overwrites the model parameters with the snapshot.
func (m *LogisticRegression) Restore(s Snapshot) error {
	if s.NumIn != m.numIn || s.NumOut != m.numOut {
		return errors.Errorf("model: snapshot shape [%d, %d] does not match model [%d, %d]",
			s.NumIn, s.NumOut, m.numIn, m.numOut)
	}
	m.w = mat.NewDense(s.NumIn, s.NumOut, append([]float64(nil), s.W...))
	m.b = mat.NewVecDense(s.NumOut, append([]float64(nil), s.B...))
	return nil
}

// Empty reports whether the snapshot holds no parameters.
func (s Snapshot) Empty() bool { return len(s.W) == 0 }

// Model builds a fresh classifier from the snapshot.
func (s Snapshot) Model() (*LogisticRegression, error) {
	m, err := NewLogisticRegression(s.NumIn, s.NumOut)
	if err != nil {
		return nil, err
	}
	if err := m.Restore(s); err != nil {
		return nil, err
	}
	return m, nil
}

// WriteFile persists the snapshot as a gzip-compressed gob file.
func (s Snapshot) WriteFile(path string) error {
	if len(s.W) != s.NumIn*s.NumOut || len(s.B) != s.NumOut {
		return errors.Errorf("model: snapshot has %d weights and %d biases for shape [%d, %d]",
			len(s.W), len(s.B), s.NumIn, s.NumOut)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create checkpoint")
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(&s); err != nil {
		return errors.Wrapf(err, "encode checkpoint %s", path)
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "flush checkpoint")
	}
	return f.Close()
}

// LoadSnapshot reads a snapshot written by WriteFile.
func LoadSnapshot(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "open checkpoint")
	}
	defer f.Close()

	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "read checkpoint %s", path)
	}
	defer zr.Close()

	var s Snapshot
	if err := gob.NewDecoder(zr).Decode(&s); err != nil {
		return Snapshot{}, errors.Wrapf(err, "decode checkpoint %s", path)
	}
	if len(s.W) != s.NumIn*s.NumOut || len(s.B) != s.NumOut {
		return Snapshot{}, errors.Errorf("model: checkpoint %s is inconsistent", path)
	}
	return s, nil
}
