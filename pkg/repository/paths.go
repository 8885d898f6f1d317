package repository

import (
	"encoding/json"
	"path/filepath"

	"github.com/cuemby/graphrag/pkg/rerr"
)

func walPath(dir string) string        { return filepath.Join(dir, "wal.log") }
func snapshotsDir(dir string) string    { return filepath.Join(dir, "snapshots") }
func lockFilePath(dir string) string    { return filepath.Join(dir, ".lock") }

func encodeBackupSnapshot(b backupSnapshot) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.Storage, "repository.encodeBackupSnapshot")
	}
	return data, nil
}

func decodeBackupSnapshot(raw []byte) (backupSnapshot, error) {
	var b backupSnapshot
	if err := json.Unmarshal(raw, &b); err != nil {
		return backupSnapshot{}, rerr.Wrap(err, rerr.Storage, "repository.decodeBackupSnapshot")
	}
	return b, nil
}
