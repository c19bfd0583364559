// Package tensor writes the collected dataset as NumPy .npy arrays.
//
// Files use version 1.0 of the format: the magic string, a little-endian
// header length, a Python dict literal describing dtype, order and shape
// padded with spaces to a multiple of 64 bytes, then the row-major payload.
package tensor

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// DType is a NumPy type descriptor.
type DType string

const (
	Uint8  DType = "|u1"
	Int32  DType = "<i4"
	Uint32 DType = "<u4"
)

// Size returns the size in bytes of one element.
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Int32, Uint32:
		return 4
	}
	return 0
}

var magic = []byte("\x93NUMPY")

const headerAlign = 64

var ErrFormat = errors.New("tensor: invalid npy file")

// Header describes an array.
type Header struct {
	DType DType
	Shape []int
}

// Len returns the number of elements described by the shape.
func (h Header) Len() int {
	n := 1
	for _, d := range h.Shape {
		n *= d
	}
	return n
}

func (h Header) encode() []byte {
	dims := make([]string, len(h.Shape))
	for i, d := range h.Shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := strings.Join(dims, ", ")
	if len(dims) == 1 {
		shape += ","
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", h.DType, shape)

	// magic (6) + version (2) + length (2) + dict + padding + '\n'
	total := len(magic) + 4 + len(dict) + 1
	pad := (headerAlign - total%headerAlign) % headerAlign

	var buf bytes.Buffer
	buf.Write(magic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(dict)+pad+1))
	buf.WriteString(dict)
	buf.WriteString(strings.Repeat(" ", pad))
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Write writes the array data, of the given shape, to w. data must be a
// []uint8, []int32 or []uint32 matching dtype and holding exactly the number
// of elements of shape.
func Write(w io.Writer, shape []int, data interface{}) error {
	var h Header
	var n int
	switch d := data.(type) {
	case []uint8:
		h.DType, n = Uint8, len(d)
	case []int32:
		h.DType, n = Int32, len(d)
	case []uint32:
		h.DType, n = Uint32, len(d)
	default:
		return fmt.Errorf("tensor: unsupported element type %T", data)
	}
	h.Shape = shape
	if h.Len() != n {
		return fmt.Errorf("tensor: shape %v does not match %d elements", shape, n)
	}
	if _, err := w.Write(h.encode()); err != nil {
		return err
	}
	if h.DType == Uint8 {
		_, err := w.Write(data.([]uint8))
		return err
	}
	return binary.Write(w, binary.LittleEndian, data)
}

// WriteFile creates the file at path and writes the array to it.
func WriteFile(path string, shape []int, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tensor: %w", err)
	}
	w := bufio.NewWriter(f)
	if err = Write(w, shape, data); err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("tensor: write %s: %w", path, err)
	}
	return nil
}

var headerPattern = regexp.MustCompile(`^\{'descr': '([<|>][a-z][0-9]+)', 'fortran_order': False, 'shape': \(([0-9, ]*)\), \}\s*$`)

// ReadHeader parses the header of an .npy stream, leaving r at the payload.
func ReadHeader(r io.Reader) (Header, error) {
	var pre [10]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if !bytes.Equal(pre[:6], magic) || pre[6] != 1 {
		return Header{}, fmt.Errorf("%w: bad magic or version", ErrFormat)
	}
	dict := make([]byte, binary.LittleEndian.Uint16(pre[8:]))
	if _, err := io.ReadFull(r, dict); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	m := headerPattern.FindSubmatch(dict)
	if m == nil {
		return Header{}, fmt.Errorf("%w: unsupported header %q", ErrFormat, dict)
	}
	h := Header{DType: DType(m[1])}
	if h.DType.Size() == 0 {
		return Header{}, fmt.Errorf("%w: unsupported dtype %s", ErrFormat, h.DType)
	}
	for _, s := range strings.Split(string(m[2]), ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		d, err := strconv.Atoi(s)
		if err != nil {
			return Header{}, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		h.Shape = append(h.Shape, d)
	}
	return h, nil
}

// Array is an array read back from disk.
type Array struct {
	Header
	// Data is a []uint8, []int32 or []uint32 depending on DType.
	Data interface{}
}

// ReadFile reads an array written by WriteFile.
func ReadFile(path string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	a := &Array{Header: h}
	switch h.DType {
	case Uint8:
		a.Data = make([]uint8, h.Len())
	case Int32:
		a.Data = make([]int32, h.Len())
	case Uint32:
		a.Data = make([]uint32, h.Len())
	}
	if err = binary.Read(r, binary.LittleEndian, a.Data); err != nil {
		return nil, fmt.Errorf("tensor: read %s: %w", path, err)
	}
	if _, err = r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data in %s", ErrFormat, path)
	}
	return a, nil
}
