package wal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/cipher"
	"github.com/cuemby/graphrag/pkg/wal"
)

func TestAppendReplayOrder(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(filepath.Join(dir, "test.wal"), nil)
	require.NoError(t, err)
	defer w.Close()

	lsnA, err := w.Append([]byte("A"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), lsnA)
	require.NoError(t, w.Flush())

	lsnB, err := w.Append([]byte("B"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), lsnB)
	require.NoError(t, w.Flush())

	var got []string
	last, count, err := w.Replay(func(lsn uint64, p []byte) error {
		got = append(got, string(p))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), last)
	require.Equal(t, 2, count)
	require.Equal(t, []string{"A", "B"}, got)
}

func TestTornTailRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := wal.Open(path, nil)
	require.NoError(t, err)

	_, err = w.Append([]byte("A"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	_, err = w.Append([]byte("B"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	// Truncate to a length inside the second record's header (16 bytes) to
	// simulate a crash mid-header.
	require.NoError(t, os.Truncate(path, info.Size()-10))

	w2, err := wal.Open(path, nil)
	require.NoError(t, err)
	defer w2.Close()

	var got []string
	_, count, err := w2.Replay(func(lsn uint64, p []byte) error {
		got = append(got, string(p))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, []string{"A"}, got)

	lsn, err := w2.Append([]byte("B"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), lsn)
}

func TestCRCMismatchIsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := wal.Open(path, nil)
	require.NoError(t, err)
	_, err = w.Append([]byte("A"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF // flip a payload byte without touching the CRC
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = wal.Open(path, nil)
	require.Error(t, err)
}

func TestAESGCMCipherNeverLeaksPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := cipher.NewAESGCM(key)
	require.NoError(t, err)

	w, err := wal.Open(path, c)
	require.NoError(t, err)
	secret := []byte("the plaintext must never appear on disk verbatim")
	_, err = w.Append(secret)
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), string(secret))

	w2, err := wal.Open(path, c)
	require.NoError(t, err)
	defer w2.Close()
	var got []byte
	_, _, err = w2.Replay(func(lsn uint64, p []byte) error {
		got = p
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, secret, got)
}
