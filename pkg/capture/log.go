// Package capture loads packet capture exports and period index files into memory.
package capture

import (
	"Go2NetPeriod/internal/model"
	"fmt"
)

// Log is an in-memory RecordStore. Index 1 is the first data row.
type Log struct {
	records []model.PacketRecord
}

// NewLog wraps records in a Log. The slice is not copied.
func NewLog(records []model.PacketRecord) *Log {
	return &Log{records: records}
}

// Len returns the number of records.
func (l *Log) Len() int {
	return len(l.records)
}

// At returns the record at the 1-based index. It panics when the index is out of range,
// callers validate periods against Len first.
func (l *Log) At(index int) model.PacketRecord {
	if index < 1 || index > len(l.records) {
		panic(fmt.Sprintf("capture: index %d out of range [1, %d]", index, len(l.records)))
	}
	return l.records[index-1]
}
