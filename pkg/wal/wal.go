// Package wal implements the append-only, crash-safe log the repository
// durably records every transaction to before mutating in-memory state.
// The record layout and torn-tail recovery rule are from spec §4.1; the
// single-writer, buffered-append-then-fsync shape is grounded on
// cuemby-warren's BoltDB transaction model (pkg/storage/doc.go) generalized
// from a B-tree file to a flat record log.
package wal

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/cuemby/graphrag/pkg/cipher"
	"github.com/cuemby/graphrag/pkg/log"
	"github.com/cuemby/graphrag/pkg/rerr"
)

// headerSize is len(lsn) + len(crc) + len(length) in the on-disk record
// layout: [lsn u64 BE][crc32 u32 BE][len u32 BE][ciphertext].
const headerSize = 8 + 4 + 4

// WAL is a single append-only file guarded by one writer at a time. Reads
// during replay are sequential and happen only at Open time or explicitly
// via Replay; there is no concurrent random access.
type WAL struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	w       *bufio.Writer
	cipher  cipher.Cipher
	nextLSN uint64 // lsn of the last appended or replayed record; 0 when empty
}

// Open opens or creates the WAL file at path, replaying any existing
// records to establish the next lsn and truncating a torn tail if found.
// The cipher defaults to cipher.Identity{} when nil.
func Open(path string, c cipher.Cipher) (*WAL, error) {
	if c == nil {
		c = cipher.Identity{}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.Storage, "wal.Open")
	}
	w := &WAL{
		path:   path,
		file:   f,
		w:      bufio.NewWriter(f),
		cipher: c,
	}
	if _, _, err := w.Replay(func(uint64, []byte) error { return nil }); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Append assigns the next lsn, encrypts plaintext, and writes the header and
// ciphertext to the buffered writer. It does not guarantee durability; call
// Flush for that.
func (w *WAL) Append(plaintext []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ciphertext, err := w.cipher.Encrypt(plaintext)
	if err != nil {
		return 0, rerr.Wrap(err, rerr.Storage, "wal.Append")
	}
	lsn := w.nextLSN + 1

	var hdr [headerSize]byte
	binary.BigEndian.PutUint64(hdr[0:8], lsn)
	binary.BigEndian.PutUint32(hdr[8:12], crc32.ChecksumIEEE(ciphertext))
	binary.BigEndian.PutUint32(hdr[12:16], uint32(len(ciphertext)))

	if _, err := w.w.Write(hdr[:]); err != nil {
		return 0, rerr.Wrap(err, rerr.Storage, "wal.Append")
	}
	if _, err := w.w.Write(ciphertext); err != nil {
		return 0, rerr.Wrap(err, rerr.Storage, "wal.Append")
	}
	w.nextLSN = lsn
	return lsn, nil
}

// Flush flushes the buffered writer and fsyncs the underlying file.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return rerr.Wrap(err, rerr.Storage, "wal.Flush")
	}
	if err := w.file.Sync(); err != nil {
		return rerr.Wrap(err, rerr.Storage, "wal.Flush")
	}
	return nil
}

// NextLSN returns the lsn of the most recently appended or replayed record
// (0 for an empty log); the next Append assigns NextLSN()+1.
func (w *WAL) NextLSN() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextLSN
}

// Close flushes and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return rerr.Wrap(err, rerr.Storage, "wal.Close")
	}
	return w.file.Close()
}

// Replay seeks to the start of the file and invokes cb(lsn, plaintext) for
// every valid record in lsn order. On io.ErrUnexpectedEOF mid-record (a
// torn tail from a crash between header write and payload write, or a
// partial fsync), the file is truncated to the last fully valid offset and
// replay stops without error. A CRC mismatch is treated as corruption and
// returns a Storage error; the file is left untouched in that case.
//
// Replay also resets the WAL's next-lsn counter, so it is safe to call at
// Open time and is exposed for the repository's own base+delta replay.
func (w *WAL) Replay(cb func(lsn uint64, plaintext []byte) error) (lastLSN uint64, recordCount int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.w.Flush(); err != nil {
		return 0, 0, rerr.Wrap(err, rerr.Storage, "wal.Replay")
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return 0, 0, rerr.Wrap(err, rerr.Storage, "wal.Replay")
	}
	r := bufio.NewReader(w.file)

	var offset int64
	var hdr [headerSize]byte
	for {
		_, readErr := io.ReadFull(r, hdr[:])
		if readErr == io.EOF {
			break
		}
		if readErr == io.ErrUnexpectedEOF {
			if err := w.truncateTornTail(offset); err != nil {
				return lastLSN, recordCount, err
			}
			break
		}
		if readErr != nil {
			return lastLSN, recordCount, rerr.Wrap(readErr, rerr.Storage, "wal.Replay")
		}

		lsn := binary.BigEndian.Uint64(hdr[0:8])
		wantCRC := binary.BigEndian.Uint32(hdr[8:12])
		length := binary.BigEndian.Uint32(hdr[12:16])

		ciphertext := make([]byte, length)
		if _, readErr := io.ReadFull(r, ciphertext); readErr != nil {
			if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
				if err := w.truncateTornTail(offset); err != nil {
					return lastLSN, recordCount, err
				}
				break
			}
			return lastLSN, recordCount, rerr.Wrap(readErr, rerr.Storage, "wal.Replay")
		}

		if crc32.ChecksumIEEE(ciphertext) != wantCRC {
			return lastLSN, recordCount, rerr.Newf(rerr.Storage, "wal.Replay", "crc mismatch at lsn %d: file is corrupt", lsn)
		}

		plaintext, err := w.cipher.Decrypt(ciphertext)
		if err != nil {
			return lastLSN, recordCount, rerr.Wrap(err, rerr.Storage, "wal.Replay")
		}
		if err := cb(lsn, plaintext); err != nil {
			return lastLSN, recordCount, err
		}

		offset += int64(headerSize) + int64(length)
		lastLSN = lsn
		recordCount++
	}

	w.nextLSN = lastLSN
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return lastLSN, recordCount, rerr.Wrap(err, rerr.Storage, "wal.Replay")
	}
	w.w = bufio.NewWriter(w.file)
	return lastLSN, recordCount, nil
}

// truncateTornTail truncates the file to offset, the last fully valid
// record boundary, discarding a partially written record left by a crash
// between header write and the next fsync.
func (w *WAL) truncateTornTail(offset int64) error {
	log.WithComponent("wal").Warn().Int64("offset", offset).Msg("truncating torn WAL tail")
	if err := w.file.Truncate(offset); err != nil {
		return rerr.Wrap(err, rerr.Storage, "wal.truncateTornTail")
	}
	if _, err := w.file.Seek(offset, io.SeekStart); err != nil {
		return rerr.Wrap(err, rerr.Storage, "wal.truncateTornTail")
	}
	return nil
}
