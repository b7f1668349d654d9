package statistic

import (
	"Go2NetPeriod/internal/model"
	"Go2NetPeriod/internal/pkg/freq"
	"strings"
)

// PortPair is the (source, destination) port pair recovered from a record's info text.
// Ports are kept as text exactly as they appear.
type PortPair struct {
	Source      string
	Destination string
}

// PortCount is a port pair and the number of records that carried it.
type PortCount struct {
	Pair  PortPair
	Count int
}

// portMarker separates the source port from the destination port in info text.
const portMarker = '>'

// ParsePortPair recovers the port pair from info text of the form
//
//	<digits> <spaces> '>' <spaces> <digits> ...
//
// using the first '>' in the text. Any number of spaces may separate the ports from
// the marker. It returns false when there is no marker or either digit run is empty.
func ParsePortPair(info string) (PortPair, bool) {
	idx := strings.IndexByte(info, portMarker)
	if idx < 0 {
		return PortPair{}, false
	}

	// Source port: skip spaces left of the marker, then take the digit run.
	end := idx
	for end > 0 && info[end-1] == ' ' {
		end--
	}
	start := end
	for start > 0 && isDigit(info[start-1]) {
		start--
	}

	// Destination port: skip spaces right of the marker, then take the digit run.
	dstStart := idx + 1
	for dstStart < len(info) && info[dstStart] == ' ' {
		dstStart++
	}
	dstEnd := dstStart
	for dstEnd < len(info) && isDigit(info[dstEnd]) {
		dstEnd++
	}

	if start == end || dstStart == dstEnd {
		return PortPair{}, false
	}
	return PortPair{Source: info[start:end], Destination: info[dstStart:dstEnd]}, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// PortPairs tallies the port pairs of the records in descending order of frequency,
// keeping first-seen order among equal counts. It also returns how many records
// carried no parsable pair.
func PortPairs(records []model.PacketRecord) ([]PortCount, int) {
	counter := freq.New[PortPair]()
	misses := 0
	for _, r := range records {
		pair, ok := ParsePortPair(r.Info)
		if !ok {
			misses++
			continue
		}
		counter.Add(pair)
	}

	top := counter.MostCommon(-1)
	out := make([]PortCount, len(top))
	for i, e := range top {
		out[i] = PortCount{Pair: e.Key, Count: e.Count}
	}
	return out, misses
}
