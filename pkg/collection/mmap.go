package collection

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
)

// MMapArray is a typed, append-only sequence of fixed-size records
// persisted in one file. Build writes it with WriteMMapArray; Open maps
// it read-only. Indexing is O(1). Used for payloads, codes, packed codes,
// offsets, edges, level-offset tables (spec §4.C).
type MMapArray struct {
	data       []byte
	recordSize int
	len        int
	file       *os.File
	mapped     []byte // non-nil when backed by a real mmap
}

// WriteMMapArray streams `n` fixed-size records of `recordSize` bytes,
// produced by `emit(i)`, to a new file at path. The file is prefixed with
// the record size and count (little-endian uint64 each) so Open can
// validate it (spec §6 "mmap arrays are prefixed with their element
// type's size_of").
func WriteMMapArray(path string, n, recordSize int, emit func(i int) []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("collection: create mmap array: %w", err)
	}
	defer f.Close()

	var header [16]byte
	binary.LittleEndian.PutUint64(header[0:8], uint64(recordSize))
	binary.LittleEndian.PutUint64(header[8:16], uint64(n))
	if _, err := f.Write(header[:]); err != nil {
		return fmt.Errorf("collection: write mmap header: %w", err)
	}

	for i := 0; i < n; i++ {
		rec := emit(i)
		if len(rec) != recordSize {
			return fmt.Errorf("collection: record %d has size %d, want %d", i, len(rec), recordSize)
		}
		if _, err := f.Write(rec); err != nil {
			return fmt.Errorf("collection: write record %d: %w", i, err)
		}
	}
	return nil
}

// OpenMMapArray opens a file written by WriteMMapArray. On platforms
// without a native mmap this reads the whole file into memory; the public
// API is identical either way since the array is read-only after
// publication (spec §5 "mmap arrays: shared read-only; never mutated").
func OpenMMapArray(path string) (*MMapArray, error) {
	raw, file, mapped, err := openAndMap(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < 16 {
		return nil, fmt.Errorf("collection: %s: corrupted mmap header", path)
	}
	recordSize := int(binary.LittleEndian.Uint64(raw[0:8]))
	n := int(binary.LittleEndian.Uint64(raw[8:16]))
	want := 16 + recordSize*n
	if len(raw) < want {
		return nil, fmt.Errorf("collection: %s: corrupted mmap body (have %d bytes, want %d)", path, len(raw), want)
	}
	return &MMapArray{data: raw[16:want], recordSize: recordSize, len: n, file: file, mapped: mapped}, nil
}

// Len returns the number of records.
func (m *MMapArray) Len() int { return m.len }

// RecordSize returns the fixed size of each record in bytes.
func (m *MMapArray) RecordSize() int { return m.recordSize }

// Record returns the raw bytes of record i without copying.
func (m *MMapArray) Record(i int) []byte {
	return m.data[i*m.recordSize : (i+1)*m.recordSize]
}

// Close releases the underlying file/mapping.
func (m *MMapArray) Close() error {
	return closeMapping(m.file, m.mapped)
}

// JSONBlob is a single serializable object written once at build time and
// read once at open: used for quantizer models, small offset arrays,
// centroid matrices, and the RaBitQ projection matrix (spec §4.C).
type JSONBlob struct{}

// WriteJSON serializes v to path as indented JSON for stable field naming
// across versions (spec §6 "JSON files use a stable field naming").
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("collection: marshal json blob: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON deserializes the blob at path into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("collection: read json blob: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("collection: unmarshal json blob: %w", err)
	}
	return nil
}
