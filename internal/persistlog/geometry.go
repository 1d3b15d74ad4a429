package persistlog

import "fmt"

// Geometry describes the backend's preallocated index table. Entries are
// addressed modulo AddressSpace; the table is divided into segments of
// 1<<SegmentBits bytes, of which it holds IndexSegments.
type Geometry struct {
	SegmentBits   uint
	IndexSegments int64
	AddressSpace  int64
}

// DefaultGeometry returns the storage defaults: 64 KiB segments, a 1024
// segment index table, and a 2^21 entry address space.
func DefaultGeometry() Geometry {
	return Geometry{SegmentBits: 16, IndexSegments: 1024, AddressSpace: 1 << 21}
}

// Validate rejects geometries whose address space could alias a legal live
// span after slot wraparound.
func (g Geometry) Validate() error {
	if g.SegmentBits == 0 || g.SegmentBits > 30 {
		return fmt.Errorf("segment bits %d out of range", g.SegmentBits)
	}
	if g.IndexSegments <= 0 || g.AddressSpace <= 0 {
		return fmt.Errorf("geometry not positive: %d segments, %d slots", g.IndexSegments, g.AddressSpace)
	}
	if g.AddressSpace*EntrySize < (g.IndexSegments+2)<<g.SegmentBits {
		return fmt.Errorf("address space %d too small for %d index segments", g.AddressSpace, g.IndexSegments)
	}
	return nil
}

// SegmentSpan measures the window [head, tail) in index segments. Head and
// tail are converted to byte positions before the shift, as the table is
// segmented by bytes, not entries.
func (g Geometry) SegmentSpan(head, tail int64) int64 {
	return (EntrySize*tail)>>g.SegmentBits - (EntrySize*head)>>g.SegmentBits
}

// Slot maps a logical entry index to its physical slot.
func (g Geometry) Slot(index int64) int64 { return index % g.AddressSpace }
