package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	frameHeaderSize = 8 // length(4) + crc32(4)
	currentName     = "current.wal"

	defaultSegmentSize     = 2 * 1024 * 1024
	defaultSegmentDuration = 5 * time.Minute
)

type Config struct {
	Dir             string
	SegmentSize     uint64
	SegmentDuration time.Duration
	Serializer      Serializer
	FlushInterval   time.Duration // 0 disables background flushing
}

// WAL appends framed records to current.wal and rotates full or aged
// segments out under sequence-indexed names. Safe for concurrent use.
type WAL struct {
	mu              sync.Mutex
	cfg             Config
	file            *os.File
	writer          *bufio.Writer
	seq             uint64
	segmentID       int
	segmentStartSeq uint64
	bytesWritten    uint64
	lastRotationAt  time.Time
	done            chan struct{}
}

// Open creates or reopens the journal in cfg.Dir, resuming the sequence
// from the segment index and truncating any torn tail frame left behind
// by a crash.
func Open(cfg Config) (*WAL, error) {
	if cfg.Dir == "" {
		cfg.Dir = "./wal_data"
	}
	if cfg.SegmentSize == 0 {
		cfg.SegmentSize = defaultSegmentSize
	}
	if cfg.SegmentDuration == 0 {
		cfg.SegmentDuration = defaultSegmentDuration
	}
	if cfg.Serializer == nil {
		cfg.Serializer = ProtoSerializer{}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	var segID int
	var seq uint64
	if last, err := LoadLastIndex(cfg.Dir); err != nil {
		return nil, err
	} else if last != nil {
		id, _ := strconv.Atoi(strings.TrimSuffix(last.File, ".wal"))
		segID = id
		seq = last.LastSeq
	}

	f, err := os.OpenFile(filepath.Join(cfg.Dir, currentName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	w := &WAL{
		cfg:             cfg,
		file:            f,
		segmentID:       segID,
		seq:             seq,
		segmentStartSeq: seq + 1,
		lastRotationAt:  time.Now(),
		done:            make(chan struct{}),
	}
	if err := w.recoverCurrent(); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	w.writer = bufio.NewWriterSize(f, 1<<20)

	if cfg.FlushInterval > 0 {
		go w.autoFlush()
	}
	return w, nil
}

// Append assigns the next sequence number to rec and journals it. The
// frame may sit in the write buffer until the next Sync.
func (w *WAL) Append(rec *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec.Seq = w.seq + 1
	payload, err := w.cfg.Serializer.Encode(rec)
	if err != nil {
		return err
	}
	frameSize := uint64(frameHeaderSize + len(payload))
	if w.bytesWritten+frameSize >= w.cfg.SegmentSize ||
		time.Since(w.lastRotationAt) >= w.cfg.SegmentDuration {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	if err := writeFrame(w.writer, payload); err != nil {
		return err
	}
	w.seq++
	w.bytesWritten += frameSize
	return nil
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Reset discards the whole journal after a snapshot checkpoint. The
// sequence keeps counting from where it was.
func (w *WAL) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_ = w.writer.Flush()
	if err := w.file.Close(); err != nil {
		return err
	}
	entries, _ := LoadAllIndex(w.cfg.Dir)
	for _, e := range entries {
		_ = os.Remove(filepath.Join(w.cfg.Dir, e.File))
	}
	_ = os.Remove(filepath.Join(w.cfg.Dir, indexFile))

	f, err := os.OpenFile(filepath.Join(w.cfg.Dir, currentName), os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriterSize(f, 1<<20)
	w.segmentStartSeq = w.seq + 1
	w.bytesWritten = 0
	w.lastRotationAt = time.Now()
	return nil
}

// Close flushes and finalizes current.wal as a numbered segment, so the
// next Open starts from a fresh file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	close(w.done)
	_ = w.writer.Flush()
	_ = w.file.Sync()
	if err := w.file.Close(); err != nil {
		return err
	}
	if w.bytesWritten == 0 {
		return nil
	}
	return w.finalizeSegment()
}

func (w *WAL) rotate() error {
	_ = w.writer.Flush()
	_ = w.file.Sync()
	_ = w.file.Close()

	if err := w.finalizeSegment(); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(w.cfg.Dir, currentName), os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriterSize(f, 1<<20)
	w.segmentStartSeq = w.seq + 1
	w.bytesWritten = 0
	w.lastRotationAt = time.Now()
	return nil
}

func (w *WAL) finalizeSegment() error {
	w.segmentID++
	name := fmt.Sprintf("%06d.wal", w.segmentID)
	if err := os.Rename(
		filepath.Join(w.cfg.Dir, currentName),
		filepath.Join(w.cfg.Dir, name),
	); err != nil {
		return err
	}
	return AppendIndexEntry(w.cfg.Dir, IndexEntry{
		File:      name,
		FirstSeq:  w.segmentStartSeq,
		LastSeq:   w.seq,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// recoverCurrent scans current.wal and truncates at the first torn or
// corrupt frame, resuming the sequence from the last valid record.
func (w *WAL) recoverCurrent() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	r, err := os.Open(filepath.Join(w.cfg.Dir, currentName))
	if err != nil {
		return err
	}
	defer r.Close()

	var (
		validBytes int64
		header     [frameHeaderSize]byte
	)
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return w.truncateCurrent(validBytes)
			}
			return err
		}
		payload := make([]byte, binary.LittleEndian.Uint32(header[:4]))
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				return w.truncateCurrent(validBytes)
			}
			return err
		}
		if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(header[4:]) {
			return w.truncateCurrent(validBytes)
		}
		rec, err := w.cfg.Serializer.Decode(payload)
		if err != nil {
			return w.truncateCurrent(validBytes)
		}
		w.seq = rec.Seq
		validBytes += int64(frameHeaderSize + len(payload))
	}
	w.bytesWritten = uint64(validBytes)
	return nil
}

func (w *WAL) truncateCurrent(validBytes int64) error {
	if err := w.file.Truncate(validBytes); err != nil {
		return err
	}
	w.bytesWritten = uint64(validBytes)
	return nil
}

func (w *WAL) autoFlush() {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			_ = w.Sync()
		}
	}
}

func writeFrame(wr io.Writer, payload []byte) error {
	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[4:], crc32.ChecksumIEEE(payload))
	if _, err := wr.Write(header[:]); err != nil {
		return err
	}
	_, err := wr.Write(payload)
	return err
}
