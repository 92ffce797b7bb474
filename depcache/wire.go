package depcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is canonical so that equal snapshots encode to equal bytes and
// hash alike across runs.
var encMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("depcache: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// MarshalSnapshot serializes a Snapshot to CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return encMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("depcache: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// MarshalRun serializes a Run to CBOR bytes.
func MarshalRun(r *Run) ([]byte, error) {
	return encMode.Marshal(r)
}

// UnmarshalRun deserializes a Run from CBOR bytes.
func UnmarshalRun(data []byte) (*Run, error) {
	var r Run
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("depcache: unmarshal run: %w", err)
	}
	return &r, nil
}

// Digest is the hex SHA-256 of the canonical encoding of s.
func Digest(s *Snapshot) (string, error) {
	data, err := MarshalSnapshot(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
