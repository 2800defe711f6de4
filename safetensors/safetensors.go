// safetensors.go - Leser fuer das Safetensors-Dateiformat
//
// Dieses Modul enthaelt:
// - File: geoeffnete Safetensors-Datei mit geparstem Header
// - TensorInfo: Dtype, Shape und Daten-Offsets eines Tensors
// - Tensor: Dekodierung von F32/F16/BF16-Payloads nach float32
//
// Format: 8 Byte Little-Endian Header-Laenge, gefolgt vom JSON-Header
// {name: {dtype, shape, data_offsets}}, gefolgt von den rohen Daten.
// Die Offsets sind relativ zum Datenbereich. Der Header wird in
// Dateireihenfolge gehalten, ListTensors gibt sie unveraendert zurueck.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/d4l3k/go-bfloat16"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/x448/float16"

	"github.com/7blacky7/sd35-reverse/tensor"
)

// maxHeaderSize guards against corrupt header length fields.
const maxHeaderSize = 100 << 20

// TensorInfo describes one tensor entry in the header.
type TensorInfo struct {
	Type    string   `json:"dtype"`
	Shape   []uint64 `json:"shape"`
	Offsets []int64  `json:"data_offsets"`
}

// WeightSource provides named tensors to model loaders.
type WeightSource interface {
	ListTensors() []string
	Tensor(name string) (*tensor.Array, error)
}

// File is an opened safetensors file.
type File struct {
	f         *os.File
	dataStart int64
	header    *orderedmap.OrderedMap[string, TensorInfo]
}

// Open opens a safetensors file and parses its header.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var n int64
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading header length: %w", err)
	}
	if n <= 0 || n > maxHeaderSize {
		f.Close()
		return nil, fmt.Errorf("invalid header length %d", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}

	header := orderedmap.New[string, TensorInfo]()
	if err := json.Unmarshal(buf, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing header: %w", err)
	}

	return &File{f: f, dataStart: 8 + n, header: header}, nil
}

// Close closes the underlying file.
func (sf *File) Close() error {
	return sf.f.Close()
}

// ListTensors returns all tensor names in file order.
// Metadata entries without a dtype are skipped.
func (sf *File) ListTensors() []string {
	names := make([]string, 0, sf.header.Len())
	for pair := sf.header.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Type != "" {
			names = append(names, pair.Key)
		}
	}
	return names
}

// Has reports whether the file contains a tensor with the given name.
func (sf *File) Has(name string) bool {
	info, ok := sf.header.Get(name)
	return ok && info.Type != ""
}

// Info returns the header entry for a tensor.
func (sf *File) Info(name string) (TensorInfo, error) {
	info, ok := sf.header.Get(name)
	if !ok || info.Type == "" {
		return TensorInfo{}, fmt.Errorf("tensor %q not found", name)
	}
	return info, nil
}

// Shape returns the shape of a tensor.
func (sf *File) Shape(name string) ([]int64, error) {
	info, err := sf.Info(name)
	if err != nil {
		return nil, err
	}
	shape := make([]int64, len(info.Shape))
	for i, d := range info.Shape {
		shape[i] = int64(d)
	}
	return shape, nil
}

// Tensor reads and decodes a tensor payload to float32.
func (sf *File) Tensor(name string) (*tensor.Array, error) {
	info, err := sf.Info(name)
	if err != nil {
		return nil, err
	}
	if len(info.Offsets) != 2 || info.Offsets[1] < info.Offsets[0] {
		return nil, fmt.Errorf("tensor %q: invalid data offsets %v", name, info.Offsets)
	}
	size := info.Offsets[1] - info.Offsets[0]
	r := io.NewSectionReader(sf.f, sf.dataStart+info.Offsets[0], size)

	var f32s []float32
	switch info.Type {
	case "F32":
		f32s = make([]float32, size/4)
		if err := binary.Read(r, binary.LittleEndian, f32s); err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
	case "F16":
		u16s := make([]uint16, size/2)
		if err := binary.Read(r, binary.LittleEndian, u16s); err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}

		f32s = make([]float32, len(u16s))
		for i := range u16s {
			f32s[i] = float16.Frombits(u16s[i]).Float32()
		}
	case "BF16":
		u8s := make([]uint8, size)
		if err := binary.Read(r, binary.LittleEndian, u8s); err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}

		f32s = bfloat16.DecodeFloat32(u8s)
	default:
		return nil, fmt.Errorf("tensor %q: unknown data type %s", name, info.Type)
	}

	shape := make([]int32, len(info.Shape))
	count := 1
	for i, d := range info.Shape {
		shape[i] = int32(d)
		count *= int(d)
	}
	if count != len(f32s) {
		return nil, fmt.Errorf("tensor %q: %d elements do not match shape %v", name, len(f32s), info.Shape)
	}
	return tensor.NewArray(f32s, shape), nil
}
