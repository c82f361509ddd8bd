package book

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"os"
	"path/filepath"
)

// Snapshot is the full state of a Book: every resting order per side in
// priority order, plus the event counters needed to resume log publishing
// without sequence gaps.
type Snapshot struct {
	SchemaVersion int     `json:"schema_version"`
	Instrument    string  `json:"instrument"`
	SeqID         uint64  `json:"seq_id"`
	TradeID       uint64  `json:"trade_id"`
	Bids          []Order `json:"bids"` // best price first, FIFO within a level
	Asks          []Order `json:"asks"`
}

// createSnapshot captures the book state. Callers outside the book loop
// should go through LiveBook.TakeSnapshot instead.
func (b *Book) createSnapshot() *Snapshot {
	return &Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Instrument:    b.instrument,
		SeqID:         b.seqID,
		TradeID:       b.tradeID,
		Bids:          b.bids.toSnapshot(),
		Asks:          b.asks.toSnapshot(),
	}
}

// Restore resets the book and rebuilds it from a snapshot. Orders are
// re-inserted in snapshot order, which preserves price-time priority.
func (b *Book) Restore(snap *Snapshot) {
	b.instrument = snap.Instrument
	b.seqID = snap.SeqID
	b.tradeID = snap.TradeID
	b.bids = newBidQueue()
	b.asks = newAskQueue()

	restore := func(orders []Order, q *queue) {
		for i := range orders {
			cpy := orders[i]
			if !cpy.Remaining.IsPositive() {
				continue
			}
			q.insertOrder(&cpy)
		}
	}

	restore(snap.Bids, b.bids)
	restore(snap.Asks, b.asks)
}

// EncodeSnapshot serializes the snapshot as JSON with a trailing CRC32
// (4 bytes, big endian) so a truncated or corrupted blob is detected on
// decode.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, len(data)+4)
	copy(buf, data)
	binary.BigEndian.PutUint32(buf[len(data):], crc32.ChecksumIEEE(data))
	return buf, nil
}

// DecodeSnapshot verifies the checksum and unmarshals the snapshot.
func DecodeSnapshot(buf []byte) (*Snapshot, error) {
	if len(buf) < 4 {
		return nil, ErrChecksumMismatch
	}

	data := buf[:len(buf)-4]
	want := binary.BigEndian.Uint32(buf[len(buf)-4:])
	if crc32.ChecksumIEEE(data) != want {
		return nil, ErrChecksumMismatch
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// WriteSnapshotFile writes the snapshot to path atomically, via a temp file
// and rename.
func WriteSnapshotFile(path string, snap *Snapshot) error {
	buf, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadSnapshotFile reads and verifies a snapshot written by
// WriteSnapshotFile.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeSnapshot(buf)
}
