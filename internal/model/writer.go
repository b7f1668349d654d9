package model

import (
	"context"
	"time"
)

// ReportWriter defines a sink for report text.
type ReportWriter interface {
	// WriteBlock writes one logical unit of report text atomically. Blocks from
	// concurrent callers are never interleaved.
	WriteBlock(block []byte) error
	Close() error
}

// Kinds of plotted statistics.
const (
	KindPacketSize = "packet_size"
	KindTimeDiff   = "time_diff"
)

// SeriesKey identifies a plotted statistic of one peer group.
type SeriesKey struct {
	Period    Period
	Peer      string
	Direction Direction
	State     State
	Protocol  string
	Kind      string
}

// Series is a time series handed to a DiagramSink.
type Series struct {
	Key    SeriesKey
	Title  string
	XLabel string
	YLabel string
	X      []float64
	Y      []float64
}

// DiagramSink renders a series to an external artifact.
type DiagramSink interface {
	Plot(series Series) error
}

// GroupSummary is the condensed result for one peer group, handed to publishers.
type GroupSummary struct {
	RunID       string
	Period      Period
	Direction   Direction
	State       State
	Local       string
	Peer        string
	Protocol    string
	Packets     int
	Throughput  float64
	MeanSize    float64
	MedianSize  float64
	MeanDelta   float64 // milliseconds, meaningless when DeltaCount is 0
	MedianDelta float64
	DeltaCount  int
	GeneratedAt time.Time
}

// Publisher defines a generic interface for sending group summaries to a message bus.
type Publisher interface {
	Publish(ctx context.Context, summary GroupSummary) error
	Close() error
}
