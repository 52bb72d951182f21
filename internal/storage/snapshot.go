package storage

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// SnapshotHeader is the plain-text first line of a snapshot file, readable
// without decoding the body.
type SnapshotHeader struct {
	Version int   `json:"version"`
	SavedAt int64 `json:"saved_at_ms"`
}

// Snapshot is a point-in-time export of both registry blobs, written as a
// zstd-compressed file alongside the database for backup and offline
// inspection.
type Snapshot struct {
	Header  SnapshotHeader `json:"header"`
	Nations string         `json:"nations"`
	Units   string         `json:"units"`
}

// WriteSnapshot writes a compressed snapshot file.
func WriteSnapshot(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}

	// A full disk surfaces here, not in the buffered writes above.
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

// ReadSnapshot reads a compressed snapshot file back.
func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header line is repeated inside the gob body; skip it.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// SnapshotPath returns a timestamped snapshot file path inside dir.
func SnapshotPath(dir string, savedAt int64) string {
	return filepath.Join(dir, fmt.Sprintf("dominion-%s.snap.zst",
		time.UnixMilli(savedAt).UTC().Format("20060102-150405")))
}
