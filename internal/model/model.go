package model

import "fmt"

// PacketRecord holds one row of a packet capture export.
// Records are created once by a loader and never mutated afterwards.
type PacketRecord struct {
	Sequence    int
	Timestamp   float64 // seconds since an arbitrary epoch, non-decreasing across a log
	Source      string
	Destination string
	Protocol    string
	Length      int // bytes
	Info        string
}

// RecordStore is an ordered, indexable sequence of packet records.
// Indices are 1-based to match the period index file.
type RecordStore interface {
	Len() int
	At(index int) PacketRecord
}

// Period is a labelled, inclusive range of record indices.
type Period struct {
	Start int
	End   int
	Label string
}

// Validate checks that the period addresses at least two records of a log with
// recordCount rows, i.e. 1 <= Start < End <= recordCount.
func (p Period) Validate(recordCount int) error {
	if p.Start >= p.End {
		return fmt.Errorf("start %d must be before end %d", p.Start, p.End)
	}
	if p.Start < 1 || p.End > recordCount {
		return fmt.Errorf("range %d ~ %d outside [1, %d]", p.Start, p.End, recordCount)
	}
	return nil
}

// PeerGroup is the set of records exchanged with a single peer over its dominant protocol
// during one period and direction. Records keep their original log order.
type PeerGroup struct {
	Peer      string
	Protocol  string
	Direction Direction
	Records   []PacketRecord
}
