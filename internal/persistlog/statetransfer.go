package persistlog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Tail stream layout: [int64 latestVersion][int64 entryCount] followed by
// entryCount records of [EntrySize descriptor][payload], big-endian, in
// index order starting at the first entry past the baseline version.

// tailHeaderSize is the stream prefix: latest version and entry count.
const tailHeaderSize = 16

// maxTailPayload caps a single stream payload when no payload cap is
// configured. Descriptor lengths come off the wire and bound an allocation,
// so they are never trusted as-is.
const maxTailPayload = 1 << 30

// TailSize reports the exact serialized size of the tail stream for a
// baseline version, so callers can size buffers up front.
func (l *Log) TailSize(ver int64) (int64, error) {
	head, err := l.headRead()
	if err != nil {
		return 0, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return 0, err
	}
	defer tail.release()

	idx, err := l.upperBoundVersionLocked(ver)
	if err != nil {
		return 0, err
	}
	size := int64(tailHeaderSize)
	for ; idx < l.meta.Tail; idx++ {
		ent, err := l.backend.ReadEntry(l.meta.ID, idx)
		if err != nil {
			return 0, fmt.Errorf("read entry %d: %w", idx, err)
		}
		size += EntrySize + ent.DataLength
	}
	return size, nil
}

// PostTail streams every live entry with version greater than ver to sink
// without materializing the whole tail: the header first, then descriptor
// and payload per entry in index order.
func (l *Log) PostTail(ver int64, sink io.Writer) error {
	head, err := l.headRead()
	if err != nil {
		return err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return err
	}
	defer tail.release()

	idx, err := l.upperBoundVersionLocked(ver)
	if err != nil {
		return err
	}
	var hdr [tailHeaderSize]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(l.meta.Version))
	binary.BigEndian.PutUint64(hdr[8:16], uint64(l.meta.Tail-idx))
	if _, err := sink.Write(hdr[:]); err != nil {
		return fmt.Errorf("write tail header: %w", err)
	}
	for ; idx < l.meta.Tail; idx++ {
		ent, err := l.backend.ReadEntry(l.meta.ID, idx)
		if err != nil {
			return fmt.Errorf("read entry %d: %w", idx, err)
		}
		data, err := l.backend.ReadData(l.meta.ID, idx)
		if err != nil {
			return fmt.Errorf("read data %d: %w", idx, err)
		}
		if _, err := sink.Write(EncodeEntry(ent)); err != nil {
			return fmt.Errorf("write entry %d: %w", idx, err)
		}
		if _, err := sink.Write(data); err != nil {
			return fmt.Errorf("write data %d: %w", idx, err)
		}
	}
	return nil
}

// SerializeTail materializes the stream PostTail produces.
func (l *Log) SerializeTail(ver int64) ([]byte, error) {
	var buf bytes.Buffer
	if err := l.PostTail(ver, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ApplyTail applies a tail stream produced by a peer's PostTail. Entries at
// or below the local latest version are skipped, so overlapping or replayed
// streams are harmless; the rest go through the ordinary append path with
// offsets recomputed locally. Returns the number of entries applied and the
// sender's latest version from the header, which the caller may use for
// catch-up decisions; it is not adopted into local metadata.
func (l *Log) ApplyTail(stream io.Reader) (int, int64, error) {
	head, err := l.headRead()
	if err != nil {
		return 0, 0, err
	}
	defer head.release()
	tail, err := head.tailWrite()
	if err != nil {
		return 0, 0, err
	}
	defer tail.release()

	var hdr [tailHeaderSize]byte
	if _, err := io.ReadFull(stream, hdr[:]); err != nil {
		return 0, 0, fmt.Errorf("read tail header: %w", err)
	}
	senderLatest := int64(binary.BigEndian.Uint64(hdr[0:8]))
	count := int64(binary.BigEndian.Uint64(hdr[8:16]))
	if count < 0 {
		return 0, senderLatest, fmt.Errorf("negative entry count %d", count)
	}

	applied := 0
	var entBuf [EntrySize]byte
	for i := int64(0); i < count; i++ {
		if _, err := io.ReadFull(stream, entBuf[:]); err != nil {
			return applied, senderLatest, fmt.Errorf("read entry %d: %w", i, err)
		}
		ent, _ := DecodeEntry(entBuf[:])
		if ent.DataLength < 0 {
			return applied, senderLatest, fmt.Errorf("entry %d: negative data length %d", i, ent.DataLength)
		}
		limit := int64(maxTailPayload)
		if l.payloadMax > 0 {
			limit = l.payloadMax
		}
		if ent.DataLength > limit {
			return applied, senderLatest, fmt.Errorf("entry %d: payload %d bytes over cap %d: %w", i, ent.DataLength, limit, ErrPayloadTooLarge)
		}
		data := make([]byte, ent.DataLength)
		if _, err := io.ReadFull(stream, data); err != nil {
			return applied, senderLatest, fmt.Errorf("read data %d: %w", i, err)
		}
		if ent.Version <= l.meta.Version {
			continue
		}
		if err := l.appendLocked(data, ent.Version, ent.Time); err != nil {
			return applied, senderLatest, err
		}
		applied++
	}
	return applied, senderLatest, nil
}
