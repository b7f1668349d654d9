package capture

import (
	"Go2NetPeriod/internal/model"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrMalformedRow is returned when a capture row cannot be turned into a record.
var ErrMalformedRow = errors.New("malformed capture row")

// Column order of the export: No., Time, Source, Destination, Protocol, Length, Info.
const (
	colNo = iota
	colTime
	colSource
	colDestination
	colProtocol
	colLength
	colInfo
	numColumns
)

// LoadCSV reads a packet capture export from disk.
func LoadCSV(path string) (*Log, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture log: %w", err)
	}
	defer file.Close()

	l, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture log '%s': %w", path, err)
	}
	log.Printf("Loaded %d records from '%s'", l.Len(), path)
	return l, nil
}

// ReadCSV parses a 7-column packet capture export. A leading header row whose first
// column is "No." is skipped.
func ReadCSV(r io.Reader) (*Log, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var records []model.PacketRecord
	row := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedRow, row, err)
		}
		if row == 1 && isHeader(fields) {
			continue
		}

		rec, err := parseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedRow, row, err)
		}
		records = append(records, rec)
	}
	return NewLog(records), nil
}

func isHeader(fields []string) bool {
	return len(fields) > 0 && strings.TrimPrefix(strings.TrimSpace(fields[colNo]), "\ufeff") == "No."
}

func parseRow(fields []string) (model.PacketRecord, error) {
	if len(fields) != numColumns {
		return model.PacketRecord{}, fmt.Errorf("expected %d fields, got %d", numColumns, len(fields))
	}

	seq, err := strconv.Atoi(strings.TrimSpace(fields[colNo]))
	if err != nil {
		return model.PacketRecord{}, errors.New("invalid sequence number")
	}
	ts, err := strconv.ParseFloat(strings.TrimSpace(fields[colTime]), 64)
	if err != nil {
		return model.PacketRecord{}, errors.New("invalid time")
	}
	length, err := strconv.Atoi(strings.TrimSpace(fields[colLength]))
	if err != nil || length < 0 {
		return model.PacketRecord{}, errors.New("invalid length")
	}

	return model.PacketRecord{
		Sequence:    seq,
		Timestamp:   ts,
		Source:      fields[colSource],
		Destination: fields[colDestination],
		Protocol:    fields[colProtocol],
		Length:      length,
		Info:        fields[colInfo],
	}, nil
}
