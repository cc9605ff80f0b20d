package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

var ErrCRCMismatch = errors.New("wal: crc mismatch")

// Reader iterates every record in a journal directory: rotated segments
// in index order, then current.wal. A torn tail on the newest file ends
// iteration cleanly; corruption anywhere else surfaces through Err.
type Reader struct {
	ser   Serializer
	files []string
	idx   int
	f     *os.File
	br    *bufio.Reader
	rec   *Record
	err   error
}

func OpenReader(dir string, ser Serializer) (*Reader, error) {
	if ser == nil {
		ser = ProtoSerializer{}
	}
	entries, err := LoadAllIndex(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		files = append(files, filepath.Join(dir, e.File))
	}
	files = append(files, filepath.Join(dir, currentName))
	return &Reader{ser: ser, files: files}, nil
}

func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	for {
		if r.f == nil {
			if r.idx >= len(r.files) {
				return false
			}
			f, err := os.Open(r.files[r.idx])
			r.idx++
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				r.err = err
				return false
			}
			r.f = f
			r.br = bufio.NewReader(f)
		}

		rec, err := r.readFrame()
		if err == io.EOF {
			r.f.Close()
			r.f = nil
			continue
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) && r.idx >= len(r.files) {
				// torn tail on the newest file: clean end of journal
				r.f.Close()
				r.f = nil
				return false
			}
			r.err = err
			return false
		}
		r.rec = rec
		return true
	}
}

func (r *Reader) Record() *Record { return r.rec }
func (r *Reader) Err() error      { return r.err }

func (r *Reader) Close() error {
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}

func (r *Reader) readFrame() (*Record, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r.br, header[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.LittleEndian.Uint32(header[:4]))
	if _, err := io.ReadFull(r.br, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(header[4:]) {
		return nil, ErrCRCMismatch
	}
	return r.ser.Decode(payload)
}
