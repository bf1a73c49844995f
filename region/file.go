package region

import (
	"encoding/binary"
	"os"
	"syscall"
	"unsafe"

	"github.com/zeebo/errs/v2"
	"github.com/zeebo/xxh3"

	"github.com/histdb/slotpool/slotring"
)

var le = binary.LittleEndian

// file layout: a fixed preamble, then the shared ring header, then the
// two slot regions back to back. everything past the preamble is exactly
// the ring's in-memory shape, so mapping the file is constructing the
// ring.
//
//	[ 0:4 ]  magic "slp1"
//	[ 4:8 ]  layout version
//	[ 8:16]  slot width  (unsafe.Sizeof(V))
//	[16:24]  slot count
//	[24:32]  xxh3 of bytes [0:24]
//	[32:64]  zero padding
//	[64:128] slotring.Hdr
//	then     count * slotring.Item, count * V
const (
	magic   = "slp1"
	version = 1

	preSize = 64
	hdrSize = 64

	itemWidth = uint64(unsafe.Sizeof(slotring.Item{}))
)

func totalSize(width, count uint64) uint64 {
	return preSize + hdrSize + count*itemWidth + count*width
}

// File is a file-backed ring. Every process that maps the same file
// shares one pool: the lock words, reference counts and allocation
// counter all live inside the mapping.
type File[V any] struct {
	_ [0]func() // no equality

	fh  *os.File
	mem []byte

	hdr   *slotring.Hdr
	items []slotring.Item
	data  []V
}

// Create makes a new pool file of the given slot count. The file must not
// already exist. Truncating the fresh file zero-fills every region, which
// is the zero-initialization the ring protocol requires.
func Create[V any](path string, size uint64) (*File[V], error) {
	if size == 0 {
		return nil, errs.Errorf("region: zero size")
	}
	width := uint64(unsafe.Sizeof(*new(V)))
	if width == 0 {
		return nil, errs.Errorf("region: zero width record")
	}

	fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	if err := fh.Truncate(int64(totalSize(width, size))); err != nil {
		return nil, errs.Combine(errs.Wrap(err), fh.Close())
	}

	f, err := mapFile[V](fh, width, size)
	if err != nil {
		return nil, errs.Combine(err, fh.Close())
	}

	copy(f.mem[0:4], magic)
	le.PutUint32(f.mem[4:8], version)
	le.PutUint64(f.mem[8:16], width)
	le.PutUint64(f.mem[16:24], size)
	le.PutUint64(f.mem[24:32], xxh3.Hash(f.mem[0:24]))
	f.hdr.Size = size

	return f, nil
}

// Open maps an existing pool file, checking that it was laid out for the
// same record type and is not torn or truncated.
func Open[V any](path string) (*File[V], error) {
	width := uint64(unsafe.Sizeof(*new(V)))
	if width == 0 {
		return nil, errs.Errorf("region: zero width record")
	}

	fh, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	var pre [preSize]byte
	if _, err := fh.ReadAt(pre[:], 0); err != nil {
		return nil, errs.Combine(errs.Wrap(err), fh.Close())
	}

	size := le.Uint64(pre[16:24])
	switch {
	case string(pre[0:4]) != magic:
		err = errs.Errorf("region: bad magic %q", pre[0:4])
	case le.Uint32(pre[4:8]) != version:
		err = errs.Errorf("region: layout version %d, want %d", le.Uint32(pre[4:8]), version)
	case le.Uint64(pre[8:16]) != width:
		err = errs.Errorf("region: slot width %d, want %d", le.Uint64(pre[8:16]), width)
	case size == 0:
		err = errs.Errorf("region: zero size")
	case le.Uint64(pre[24:32]) != xxh3.Hash(pre[0:24]):
		err = errs.Errorf("region: preamble checksum mismatch")
	}
	if err != nil {
		return nil, errs.Combine(err, fh.Close())
	}

	st, err := fh.Stat()
	if err != nil {
		return nil, errs.Combine(errs.Wrap(err), fh.Close())
	}
	if uint64(st.Size()) != totalSize(width, size) {
		return nil, errs.Combine(
			errs.Errorf("region: file is %d bytes, want %d", st.Size(), totalSize(width, size)),
			fh.Close())
	}

	f, err := mapFile[V](fh, width, size)
	if err != nil {
		return nil, errs.Combine(err, fh.Close())
	}
	if f.hdr.Size != size {
		return nil, errs.Combine(
			errs.Errorf("region: header size %d disagrees with preamble %d", f.hdr.Size, size),
			f.Close())
	}
	return f, nil
}

func mapFile[V any](fh *os.File, width, size uint64) (*File[V], error) {
	mem, err := syscall.Mmap(int(fh.Fd()), 0, int(totalSize(width, size)),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	// the mapping is page aligned and every region offset is a multiple
	// of 8, so the views below are naturally aligned.
	items := uint64(preSize + hdrSize)
	data := items + size*itemWidth

	return &File[V]{
		fh:  fh,
		mem: mem,

		hdr:   (*slotring.Hdr)(unsafe.Pointer(&mem[preSize])),
		items: unsafe.Slice((*slotring.Item)(unsafe.Pointer(&mem[items])), size),
		data:  unsafe.Slice((*V)(unsafe.Pointer(&mem[data])), size),
	}, nil
}

// Ring is the pool view over the mapping. Multiple views over one File
// are fine; so are views from other processes over the same file.
func (f *File[V]) Ring() (*slotring.T[V], error) {
	return slotring.New(f.hdr, f.items, f.data)
}

func (f *File[V]) Size() uint64 { return f.hdr.Size }

// Close unmaps the file. Any ring views handed out become invalid.
func (f *File[V]) Close() error {
	if f.mem == nil {
		return nil
	}
	mem := f.mem
	f.mem, f.hdr, f.items, f.data = nil, nil, nil, nil
	return errs.Combine(errs.Wrap(syscall.Munmap(mem)), errs.Wrap(f.fh.Close()))
}
