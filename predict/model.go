package predict

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"
)

// Classifier is the opaque scoring function the pipeline depends on: a
// normalized sketch in, one confidence per known class out.
type Classifier interface {
	Classify(t Tensor) ([]float32, error)
}

// Lazy defers construction of a Classifier to first use and reuses the
// instance for the life of the process, amortizing the model load cost
// across invocations. Safe for concurrent use.
type Lazy struct {
	load func() (Classifier, error)
	once sync.Once
	c    Classifier
	err  error
}

func NewLazy(load func() (Classifier, error)) *Lazy {
	return &Lazy{load: load}
}

func (l *Lazy) Classify(t Tensor) ([]float32, error) {
	l.once.Do(func() {
		l.c, l.err = l.load()
	})
	if l.err != nil {
		return nil, fmt.Errorf("load classifier: %w", l.err)
	}
	return l.c.Classify(t)
}

// linearModelMagic identifies the exported weights file.
var linearModelMagic = [4]byte{'R', 'K', 'G', 'K'}

// LinearModel scores sketches with a single dense layer plus softmax,
// loaded from an exported weights file:
//
//	magic "RKGK" | uint32 classes | classes*784 float32 weights | classes float32 biases
//
// all little-endian, weights row-major per class.
type LinearModel struct {
	classes int
	weights []float32 // classes * CanvasSize * CanvasSize
	biases  []float32
}

// LoadLinearModel reads and validates the weights file.
func LoadLinearModel(path string) (*LinearModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := f.Read(magic[:]); err != nil {
		return nil, fmt.Errorf("read model magic: %w", err)
	}
	if magic != linearModelMagic {
		return nil, fmt.Errorf("not a model file: bad magic %q", magic)
	}

	var classes uint32
	if err := binary.Read(f, binary.LittleEndian, &classes); err != nil {
		return nil, fmt.Errorf("read class count: %w", err)
	}
	if classes == 0 {
		return nil, fmt.Errorf("model has zero classes")
	}

	m := &LinearModel{
		classes: int(classes),
		weights: make([]float32, int(classes)*CanvasSize*CanvasSize),
		biases:  make([]float32, classes),
	}
	if err := binary.Read(f, binary.LittleEndian, m.weights); err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, m.biases); err != nil {
		return nil, fmt.Errorf("read biases: %w", err)
	}
	return m, nil
}

// Classes returns the number of known classes.
func (m *LinearModel) Classes() int {
	return m.classes
}

func (m *LinearModel) Classify(t Tensor) ([]float32, error) {
	logits := make([]float64, m.classes)
	for c := 0; c < m.classes; c++ {
		row := m.weights[c*CanvasSize*CanvasSize : (c+1)*CanvasSize*CanvasSize]
		sum := float64(m.biases[c])
		for y := 0; y < CanvasSize; y++ {
			for x := 0; x < CanvasSize; x++ {
				sum += float64(row[y*CanvasSize+x]) * float64(t[y][x])
			}
		}
		logits[c] = sum
	}
	return softmax(logits), nil
}

func softmax(logits []float64) []float32 {
	max := math.Inf(-1)
	for _, l := range logits {
		if l > max {
			max = l
		}
	}
	var total float64
	exps := make([]float64, len(logits))
	for i, l := range logits {
		exps[i] = math.Exp(l - max)
		total += exps[i]
	}
	out := make([]float32, len(logits))
	for i, e := range exps {
		out[i] = float32(e / total)
	}
	return out
}
