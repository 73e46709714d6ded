package tensor

import (
	"math"
	"testing"
)

func matVecNaive(dst []float32, w *Mat, x []float32) {
	for i := 0; i < w.R; i++ {
		row := w.Row(i)
		var sum float32
		for j := 0; j < w.C; j++ {
			sum += row[j] * x[j]
		}
		dst[i] = sum
	}
}

func TestMatVecMatchesNaive(t *testing.T) {
	t.Parallel()
	for _, shape := range [][2]int{{3, 5}, {17, 9}, {4096, 7}} {
		w := NewMat(shape[0], shape[1])
		FillRand(&w, 3, 1)
		xm := NewMat(1, shape[1])
		FillRand(&xm, 4, 1)
		x := xm.Row(0)

		got := make([]float32, w.R)
		want := make([]float32, w.R)
		MatVec(got, &w, x)
		matVecNaive(want, &w, x)
		for i := range got {
			if math.Abs(float64(got[i]-want[i])) > 1e-4 {
				t.Fatalf("shape %v row %d: got %f want %f", shape, i, got[i], want[i])
			}
		}
	}
}

func TestFillRandDeterministic(t *testing.T) {
	t.Parallel()
	a := NewMat(4, 4)
	b := NewMat(4, 4)
	FillRand(&a, 9, 0.02)
	FillRand(&b, 9, 0.02)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("value %d differs: %f vs %f", i, a.Data[i], b.Data[i])
		}
		if a.Data[i] < -0.01 || a.Data[i] > 0.01 {
			t.Fatalf("value %d out of range: %f", i, a.Data[i])
		}
	}
}

func TestMatVecShapeMismatchPanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on shape mismatch")
		}
	}()
	w := NewMat(2, 3)
	MatVec(make([]float32, 1), &w, make([]float32, 3))
}
