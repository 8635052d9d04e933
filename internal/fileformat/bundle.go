// Package fileformat implements the .wpk bundle: a single-file transport
// container for a converted artifact directory. The bundle holds a JSON
// meta section, the model.json bytes, and the concatenated shard files,
// each section independently compressed and checksummed. The directory
// artifact remains the primary output; the bundle only packages it.
package fileformat

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	lz4 "github.com/pierrec/lz4/v4"
	"github.com/zeebo/xxh3"

	"github.com/webml/weightpack/internal/artifact"
)

var magic = [8]byte{'W', 'P', 'A', 'K', 0, 0, 0, 0}

// Section type IDs.
const (
	TypeMeta      uint32 = 1
	TypeModelJSON uint32 = 2
	TypeShardData uint32 = 3
)

// Per-section compression flags.
const (
	FlagCompZSTD uint32 = 1 << 0
	FlagCompLZ4  uint32 = 1 << 1
)

const sectionAlign = 4096

// ShardFile records one packed shard file's name and byte size, in the
// order its bytes appear inside the shard-data section.
type ShardFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Meta is the bundle's JSON meta section.
type Meta struct {
	FormatVersion int                      `json:"format_version"`
	Shards        []ShardFile              `json:"shards"`
	Checksums     map[string]ChecksumIndex `json:"checksum_index"`
}

// ChecksumIndex is a rolling xxh3-64 over fixed-size chunks of a
// section's uncompressed payload.
type ChecksumIndex struct {
	Algo      string   `json:"algo"`
	ChunkSize int      `json:"chunk_size"`
	Hashes    []string `json:"hashes_hex"`
}

const checksumChunk = 1 << 20

// NewChecksumIndex hashes data in chunk-sized pieces.
func NewChecksumIndex(data []byte, chunk int) ChecksumIndex {
	hashes := make([]string, 0, (len(data)+chunk-1)/chunk)
	for i := 0; i < len(data); i += chunk {
		end := i + chunk
		if end > len(data) {
			end = len(data)
		}
		hashes = append(hashes, fmt.Sprintf("%016x", xxh3.Hash(data[i:end])))
	}
	return ChecksumIndex{Algo: "xxh3-64", ChunkSize: chunk, Hashes: hashes}
}

// Verify recomputes the index over data and reports the first mismatch.
func (ci ChecksumIndex) Verify(data []byte) error {
	have := NewChecksumIndex(data, ci.ChunkSize)
	if len(have.Hashes) != len(ci.Hashes) {
		return fmt.Errorf("chunk count mismatch: have %d want %d", len(have.Hashes), len(ci.Hashes))
	}
	for i := range have.Hashes {
		if have.Hashes[i] != ci.Hashes[i] {
			return fmt.Errorf("chunk %d checksum mismatch", i)
		}
	}
	return nil
}

type section struct {
	TypeID uint32
	Data   []byte
	Flags  uint32
}

// Writer assembles a bundle section by section.
type Writer struct {
	sections []section
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) AddSection(typeID uint32, data []byte, flags uint32) {
	w.sections = append(w.sections, section{TypeID: typeID, Data: data, Flags: flags})
}

func zstdEncode(b []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(b, make([]byte, 0, len(b))), nil
}

func zstdDecode(b []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(b, nil)
}

func lz4Encode(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Decode(b []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(b))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func alignUp(x, a int64) int64 {
	r := x % a
	if r == 0 {
		return x
	}
	return x + (a - r)
}

type tocEntry struct {
	TypeID uint32
	Offset uint64
	Size   uint64
	Flags  uint32
}

// Write lays the bundle out on disk: magic, header, TOC, then sections
// aligned to 4096 bytes.
func (w *Writer) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	payloads := make([][]byte, len(w.sections))
	for i, s := range w.sections {
		data := s.Data
		switch {
		case s.Flags&FlagCompZSTD != 0:
			if data, err = zstdEncode(data); err != nil {
				return err
			}
		case s.Flags&FlagCompLZ4 != 0:
			if data, err = lz4Encode(data); err != nil {
				return err
			}
		}
		payloads[i] = data
	}

	if _, err := f.Write(magic[:]); err != nil {
		return err
	}
	var hdr struct{ Ver, Num, Res uint32 }
	hdr.Ver, hdr.Num = 1, uint32(len(w.sections))
	if err := binary.Write(f, binary.LittleEndian, &hdr); err != nil {
		return err
	}

	toc := make([]tocEntry, len(w.sections))
	base := int64(8 + 12 + 24*len(w.sections))
	offset := alignUp(base, sectionAlign)
	for i, s := range w.sections {
		toc[i] = tocEntry{TypeID: s.TypeID, Offset: uint64(offset), Size: uint64(len(payloads[i])), Flags: s.Flags}
		offset = alignUp(offset+int64(len(payloads[i])), sectionAlign)
	}
	for _, e := range toc {
		if err := binary.Write(f, binary.LittleEndian, &e); err != nil {
			return err
		}
	}
	for i := range payloads {
		if _, err := f.Seek(int64(toc[i].Offset), io.SeekStart); err != nil {
			return err
		}
		if _, err := f.Write(payloads[i]); err != nil {
			return err
		}
	}
	return nil
}

// Reader gives access to a bundle's sections.
type Reader struct {
	f   *os.File
	TOC []tocEntry
}

func OpenBundle(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	head := make([]byte, 8)
	if _, err := io.ReadFull(f, head); err != nil {
		f.Close()
		return nil, err
	}
	if !bytes.Equal(head, magic[:]) {
		f.Close()
		return nil, errors.New("not a weightpack bundle")
	}
	var hdr struct{ Ver, Num, Res uint32 }
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		f.Close()
		return nil, err
	}
	toc := make([]tocEntry, hdr.Num)
	for i := range toc {
		if err := binary.Read(f, binary.LittleEndian, &toc[i]); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &Reader{f: f, TOC: toc}, nil
}

func (r *Reader) Close() error { return r.f.Close() }

// Section returns a section's raw on-disk payload.
func (r *Reader) Section(typeID uint32) ([]byte, error) {
	for _, e := range r.TOC {
		if e.TypeID == typeID {
			buf := make([]byte, e.Size)
			if _, err := r.f.ReadAt(buf, int64(e.Offset)); err != nil {
				return nil, err
			}
			return buf, nil
		}
	}
	return nil, fmt.Errorf("section %d not found", typeID)
}

// SectionUncompressed returns a section's payload after undoing any
// per-section compression.
func (r *Reader) SectionUncompressed(typeID uint32) ([]byte, error) {
	for _, e := range r.TOC {
		if e.TypeID != typeID {
			continue
		}
		buf := make([]byte, e.Size)
		if _, err := r.f.ReadAt(buf, int64(e.Offset)); err != nil {
			return nil, err
		}
		switch {
		case e.Flags&FlagCompZSTD != 0:
			return zstdDecode(buf)
		case e.Flags&FlagCompLZ4 != 0:
			return lz4Decode(buf)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("section %d not found", typeID)
}

// Meta decodes the bundle's meta section.
func (r *Reader) Meta() (*Meta, error) {
	b, err := r.SectionUncompressed(TypeMeta)
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode bundle meta: %w", err)
	}
	return &m, nil
}

// BundleDir packs a converted artifact directory into a single bundle
// file. Shard files are taken in manifest path order.
func BundleDir(dir, outPath string) error {
	mjBytes, err := os.ReadFile(filepath.Join(dir, "model.json"))
	if err != nil {
		return err
	}
	var mj artifact.ModelJSON
	if err := json.Unmarshal(mjBytes, &mj); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Join(dir, "model.json"), err)
	}

	var shards []ShardFile
	var payload []byte
	for _, entry := range mj.WeightsManifest {
		for _, p := range entry.Paths {
			b, err := os.ReadFile(filepath.Join(dir, p))
			if err != nil {
				return err
			}
			shards = append(shards, ShardFile{Name: p, Size: int64(len(b))})
			payload = append(payload, b...)
		}
	}

	meta := Meta{
		FormatVersion: 1,
		Shards:        shards,
		Checksums: map[string]ChecksumIndex{
			fmt.Sprint(TypeModelJSON): NewChecksumIndex(mjBytes, checksumChunk),
			fmt.Sprint(TypeShardData): NewChecksumIndex(payload, checksumChunk),
		},
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	w := NewWriter()
	w.AddSection(TypeMeta, metaBytes, 0)
	w.AddSection(TypeModelJSON, mjBytes, FlagCompZSTD)
	w.AddSection(TypeShardData, payload, FlagCompLZ4)
	return w.Write(outPath)
}

// Unbundle unpacks a bundle into an artifact directory, restoring
// model.json and every shard file byte-exactly. Destination handling
// matches the artifact writer: a plain file in the way is a conflict,
// missing directories are created.
func Unbundle(path, dir string) error {
	r, err := OpenBundle(path)
	if err != nil {
		return err
	}
	defer r.Close()
	meta, err := r.Meta()
	if err != nil {
		return err
	}
	mjBytes, err := r.SectionUncompressed(TypeModelJSON)
	if err != nil {
		return err
	}
	payload, err := r.SectionUncompressed(TypeShardData)
	if err != nil {
		return err
	}

	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return &artifact.ConflictError{Path: dir}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &artifact.WriteError{Path: dir, Err: err}
	}
	out := filepath.Join(dir, "model.json")
	if err := os.WriteFile(out, mjBytes, 0o644); err != nil {
		return &artifact.WriteError{Path: out, Err: err}
	}
	off := int64(0)
	for _, s := range meta.Shards {
		if off+s.Size > int64(len(payload)) {
			return fmt.Errorf("bundle meta lists %d bytes for %s past end of shard data", s.Size, s.Name)
		}
		out := filepath.Join(dir, s.Name)
		if err := os.WriteFile(out, payload[off:off+s.Size], 0o644); err != nil {
			return &artifact.WriteError{Path: out, Err: err}
		}
		off += s.Size
	}
	if off != int64(len(payload)) {
		return fmt.Errorf("bundle shard data has %d trailing bytes", int64(len(payload))-off)
	}
	return nil
}

// VerifyBundle recomputes the checksum index of every indexed section.
func VerifyBundle(path string) error {
	r, err := OpenBundle(path)
	if err != nil {
		return err
	}
	defer r.Close()
	meta, err := r.Meta()
	if err != nil {
		return err
	}
	for _, typeID := range []uint32{TypeModelJSON, TypeShardData} {
		ci, ok := meta.Checksums[fmt.Sprint(typeID)]
		if !ok {
			return fmt.Errorf("section %d: no checksum index in meta", typeID)
		}
		data, err := r.SectionUncompressed(typeID)
		if err != nil {
			return fmt.Errorf("section %d: %w", typeID, err)
		}
		if err := ci.Verify(data); err != nil {
			return fmt.Errorf("section %d: %w", typeID, err)
		}
	}
	return nil
}
