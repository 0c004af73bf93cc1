// Package vector provides a flat in-memory index with exact brute-force search.
package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// File format: magic, version, dimensions, count, next slot, then per entry
// the slot id followed by the raw little-endian float32 vector.
const (
	fileMagic   = "TDRX"
	fileVersion = uint32(1)
)

// FlatIndex is an in-memory vector index with exact squared-Euclidean search.
// Brute force over all live vectors; suitable for a personal browsing index
// (tens of thousands of chunks). Slot allocation is monotonic so a removed
// slot id can never be confused with a later insertion.
type FlatIndex struct {
	dimensions int
	slots      []int64
	vectors    [][]float32
	nextSlot   int64
	mu         sync.RWMutex
}

// NewFlatIndex creates a flat index for vectors of the given dimensionality.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dimensions: dimensions,
		slots:      make([]int64, 0),
		vectors:    make([][]float32, 0),
	}, nil
}

// Insert appends vectors and returns their assigned slot ids, in input order.
// The whole batch is rejected if any vector has the wrong dimensionality.
func (f *FlatIndex) Insert(ctx context.Context, vectors [][]float32) ([]int64, error) {
	for _, vec := range vectors {
		if len(vec) != f.dimensions {
			return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), f.dimensions)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	assigned := make([]int64, len(vectors))
	for i, vec := range vectors {
		cp := make([]float32, f.dimensions)
		copy(cp, vec)
		assigned[i] = f.nextSlot
		f.slots = append(f.slots, f.nextSlot)
		f.vectors = append(f.vectors, cp)
		f.nextSlot++
	}
	return assigned, nil
}

// Remove drops the given slots from the index. Unknown slots are ignored.
// Storage is compacted immediately; removed slots never appear in search results.
func (f *FlatIndex) Remove(ctx context.Context, slots []int64) error {
	if len(slots) == 0 {
		return nil
	}
	removeSet := make(map[int64]bool, len(slots))
	for _, s := range slots {
		removeSet[s] = true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	newSlots := f.slots[:0]
	newVectors := f.vectors[:0]
	for i, s := range f.slots {
		if !removeSet[s] {
			newSlots = append(newSlots, s)
			newVectors = append(newVectors, f.vectors[i])
		}
	}
	// Clear trailing references so removed vectors can be collected.
	for i := len(newVectors); i < len(f.vectors); i++ {
		f.vectors[i] = nil
	}
	f.slots = newSlots
	f.vectors = newVectors
	return nil
}

// Search returns up to topK slots nearest to query by squared Euclidean
// distance, ascending, ties broken by ascending slot id. An empty index
// returns an empty result, not an error.
func (f *FlatIndex) Search(ctx context.Context, query []float32, topK int) ([]*Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.slots) == 0 {
		return []*Match{}, nil
	}
	matches := make([]*Match, len(f.slots))
	for i, vec := range f.vectors {
		matches[i] = &Match{Slot: f.slots[i], Distance: SquaredL2(query, vec)}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Slot < matches[j].Slot
	})
	if topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK], nil
}

// Size returns the number of live vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.slots)
}

// Dimensions returns the vector dimensionality the index was created with.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Save writes the index to path. The file is written to a temp file and
// renamed so a crash mid-save cannot leave a truncated index behind.
// Directories are created if needed.
func (f *FlatIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write([]byte(fileMagic)); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := []uint32{fileVersion, uint32(f.dimensions), uint32(len(f.slots))}
	for _, v := range header {
		if err := binary.Write(tmp, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := binary.Write(tmp, binary.LittleEndian, uint64(f.nextSlot)); err != nil {
		return fmt.Errorf("write next slot: %w", err)
	}
	for i, slot := range f.slots {
		if err := binary.Write(tmp, binary.LittleEndian, uint64(slot)); err != nil {
			return fmt.Errorf("write slot: %w", err)
		}
		if _, err := tmp.Write(float32SliceToBytes(f.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents,
// including the slot allocation counter. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (f *FlatIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(file, magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != fileMagic {
		return fmt.Errorf("bad magic %q: not a vector index file", magic)
	}
	var version, dim, count uint32
	for _, p := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(file, binary.LittleEndian, p); err != nil {
			return fmt.Errorf("read header: %w", err)
		}
	}
	if version != fileVersion {
		return fmt.Errorf("unsupported index file version %d", version)
	}
	if int(dim) != f.dimensions {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, f.dimensions)
	}
	var nextSlot uint64
	if err := binary.Read(file, binary.LittleEndian, &nextSlot); err != nil {
		return fmt.Errorf("read next slot: %w", err)
	}

	slots := make([]int64, 0, count)
	vectors := make([][]float32, 0, count)
	buf := make([]byte, f.dimensions*4)
	for i := uint32(0); i < count; i++ {
		var slot uint64
		if err := binary.Read(file, binary.LittleEndian, &slot); err != nil {
			return fmt.Errorf("read slot: %w", err)
		}
		if _, err := io.ReadFull(file, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		slots = append(slots, int64(slot))
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots = slots
	f.vectors = vectors
	f.nextSlot = int64(nextSlot)
	return nil
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
