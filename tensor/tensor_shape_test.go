// tensor_shape_test.go - Unit Tests fuer Shape-Operationen
package tensor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestReshape testet Reshape inkl. inferierter Dimension
func TestReshape(t *testing.T) {
	a := Arange(0, 6, 1)

	b := Reshape(a, 2, 3)
	if !shapeEqual(b.Shape(), []int32{2, 3}) {
		t.Errorf("Shape = %v, erwartet [2 3]", b.Shape())
	}

	c := Reshape(a, 3, -1)
	if !shapeEqual(c.Shape(), []int32{3, 2}) {
		t.Errorf("Shape mit -1 = %v, erwartet [3 2]", c.Shape())
	}

	defer func() {
		if recover() == nil {
			t.Error("erwartet Panic bei unpassender Shape")
		}
	}()
	Reshape(a, 4, 2)
}

// TestTranspose testet 2D- und 3D-Permutationen
func TestTranspose(t *testing.T) {
	a := NewArray([]float32{1, 2, 3, 4, 5, 6}, []int32{2, 3})
	got := Transpose(a)

	want := []float32{1, 4, 2, 5, 3, 6}
	if diff := cmp.Diff(want, got.Data()); diff != "" {
		t.Errorf("Transpose falsch (-want +got):\n%s", diff)
	}
	if !shapeEqual(got.Shape(), []int32{3, 2}) {
		t.Errorf("Shape = %v, erwartet [3 2]", got.Shape())
	}

	// [2,1,3] -> Permutation (0,2,1) -> [2,3,1], Daten bleiben in Reihenfolge
	b := NewArray([]float32{1, 2, 3, 4, 5, 6}, []int32{2, 1, 3})
	got3 := Transpose(b, 0, 2, 1)
	if !shapeEqual(got3.Shape(), []int32{2, 3, 1}) {
		t.Errorf("3D Shape = %v, erwartet [2 3 1]", got3.Shape())
	}
	if diff := cmp.Diff(b.Data(), got3.Data()); diff != "" {
		t.Errorf("3D Daten falsch (-want +got):\n%s", diff)
	}
}

// TestSlice testet Bereichskopien
func TestSlice(t *testing.T) {
	a := Reshape(Arange(0, 12, 1), 3, 4)

	got := Slice(a, []int32{1, 1}, []int32{3, 3})
	want := []float32{5, 6, 9, 10}
	if diff := cmp.Diff(want, got.Data()); diff != "" {
		t.Errorf("Slice falsch (-want +got):\n%s", diff)
	}

	row := SliceAxis(a, 0, 1, 2)
	if diff := cmp.Diff([]float32{4, 5, 6, 7}, row.Data()); diff != "" {
		t.Errorf("SliceAxis falsch (-want +got):\n%s", diff)
	}
}

// TestSliceUpdate testet das Ersetzen eines Bereichs
func TestSliceUpdate(t *testing.T) {
	a := Zeros(3, 3)
	u := Full(7, 2, 2)
	got := SliceUpdate(a, u, []int32{0, 0}, []int32{2, 2})

	want := []float32{7, 7, 0, 7, 7, 0, 0, 0, 0}
	if diff := cmp.Diff(want, got.Data()); diff != "" {
		t.Errorf("SliceUpdate falsch (-want +got):\n%s", diff)
	}

	// Original bleibt unveraendert
	for i, v := range a.Data() {
		if v != 0 {
			t.Errorf("Original[%d] = %f, erwartet 0", i, v)
		}
	}
}

// TestChunk testet das gleichmaessige Aufteilen entlang einer Achse
func TestChunk(t *testing.T) {
	// [1,4,2] entlang Achse 1 in mean/logvar-Haelften teilen
	a := Reshape(Arange(0, 8, 1), 1, 4, 2)
	parts := Chunk(a, 2, 1)

	if len(parts) != 2 {
		t.Fatalf("Chunk Anzahl = %d, erwartet 2", len(parts))
	}
	if diff := cmp.Diff([]float32{0, 1, 2, 3}, parts[0].Data()); diff != "" {
		t.Errorf("Chunk[0] falsch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{4, 5, 6, 7}, parts[1].Data()); diff != "" {
		t.Errorf("Chunk[1] falsch (-want +got):\n%s", diff)
	}
	if !shapeEqual(parts[0].Shape(), []int32{1, 2, 2}) {
		t.Errorf("Chunk Shape = %v, erwartet [1 2 2]", parts[0].Shape())
	}
}

// TestConcatenate testet das Zusammenfuegen entlang verschiedener Achsen
func TestConcatenate(t *testing.T) {
	a := NewArray([]float32{1, 2}, []int32{1, 2})
	b := NewArray([]float32{3, 4}, []int32{1, 2})

	axis0 := Concatenate([]*Array{a, b}, 0)
	if !shapeEqual(axis0.Shape(), []int32{2, 2}) {
		t.Errorf("Achse 0 Shape = %v, erwartet [2 2]", axis0.Shape())
	}
	if diff := cmp.Diff([]float32{1, 2, 3, 4}, axis0.Data()); diff != "" {
		t.Errorf("Achse 0 falsch (-want +got):\n%s", diff)
	}

	axis1 := Concat(a, b, 1)
	if !shapeEqual(axis1.Shape(), []int32{1, 4}) {
		t.Errorf("Achse 1 Shape = %v, erwartet [1 4]", axis1.Shape())
	}
	if diff := cmp.Diff([]float32{1, 2, 3, 4}, axis1.Data()); diff != "" {
		t.Errorf("Achse 1 falsch (-want +got):\n%s", diff)
	}
}

// TestTile testet das Wiederholen entlang der Achsen
func TestTile(t *testing.T) {
	a := NewArray([]float32{1, 2}, []int32{1, 2})
	got := Tile(a, []int32{2, 2})

	want := []float32{1, 2, 1, 2, 1, 2, 1, 2}
	if diff := cmp.Diff(want, got.Data()); diff != "" {
		t.Errorf("Tile falsch (-want +got):\n%s", diff)
	}
	if !shapeEqual(got.Shape(), []int32{2, 4}) {
		t.Errorf("Shape = %v, erwartet [2 4]", got.Shape())
	}
}

// TestTileBatch testet das Batch-Verdoppeln fuer CFG
func TestTileBatch(t *testing.T) {
	x := Reshape(Arange(0, 4, 1), 1, 1, 2, 2)
	got := Tile(x, []int32{2, 1, 1, 1})

	if !shapeEqual(got.Shape(), []int32{2, 1, 2, 2}) {
		t.Fatalf("Shape = %v, erwartet [2 1 2 2]", got.Shape())
	}
	want := []float32{0, 1, 2, 3, 0, 1, 2, 3}
	if diff := cmp.Diff(want, got.Data()); diff != "" {
		t.Errorf("Batch-Tile falsch (-want +got):\n%s", diff)
	}
}

// TestBroadcastTo testet das Materialisieren eines Broadcasts
func TestBroadcastTo(t *testing.T) {
	a := NewArray([]float32{1, 2, 3}, []int32{1, 3})
	got := BroadcastTo(a, []int32{2, 3})

	want := []float32{1, 2, 3, 1, 2, 3}
	if diff := cmp.Diff(want, got.Data()); diff != "" {
		t.Errorf("BroadcastTo falsch (-want +got):\n%s", diff)
	}

	defer func() {
		if recover() == nil {
			t.Error("erwartet Panic bei nicht broadcastbarer Shape")
		}
	}()
	BroadcastTo(a, []int32{2, 4})
}

// TestExpandSqueeze testet Dimension einfuegen und entfernen
func TestExpandSqueeze(t *testing.T) {
	a := NewArray([]float32{1, 2}, []int32{2})

	e := ExpandDims(a, 0)
	if !shapeEqual(e.Shape(), []int32{1, 2}) {
		t.Errorf("ExpandDims Shape = %v, erwartet [1 2]", e.Shape())
	}

	s := Squeeze(e, 0)
	if !shapeEqual(s.Shape(), []int32{2}) {
		t.Errorf("Squeeze Shape = %v, erwartet [2]", s.Shape())
	}

	defer func() {
		if recover() == nil {
			t.Error("erwartet Panic bei Squeeze auf Achse > 1")
		}
	}()
	Squeeze(a, 0)
}
