package api

import (
	"Go2NetPeriod/internal/model"
	"sync"
	"time"
)

// SummaryView is the JSON form of a group summary.
type SummaryView struct {
	RunID       string    `json:"run_id"`
	Period      string    `json:"period"`
	Start       int       `json:"start"`
	End         int       `json:"end"`
	Direction   string    `json:"direction"`
	State       string    `json:"state,omitempty"`
	Local       string    `json:"local"`
	Peer        string    `json:"peer"`
	Protocol    string    `json:"protocol"`
	Packets     int       `json:"packets"`
	Throughput  float64   `json:"throughput"`
	MeanSize    float64   `json:"mean_size"`
	MedianSize  float64   `json:"median_size"`
	MeanDelta   *float64  `json:"mean_delta"`
	MedianDelta *float64  `json:"median_delta"`
	GeneratedAt time.Time `json:"generated_at"`
}

func viewOf(s model.GroupSummary) SummaryView {
	v := SummaryView{
		RunID:       s.RunID,
		Period:      s.Period.Label,
		Start:       s.Period.Start,
		End:         s.Period.End,
		Direction:   s.Direction.String(),
		State:       s.State.String(),
		Local:       s.Local,
		Peer:        s.Peer,
		Protocol:    s.Protocol,
		Packets:     s.Packets,
		Throughput:  s.Throughput,
		MeanSize:    s.MeanSize,
		MedianSize:  s.MedianSize,
		GeneratedAt: s.GeneratedAt,
	}
	// Undefined deltas stay null.
	if s.DeltaCount > 0 {
		mean, median := s.MeanDelta, s.MedianDelta
		v.MeanDelta, v.MedianDelta = &mean, &median
	}
	return v
}

// SummaryLog keeps the most recent summaries, oldest first.
type SummaryLog struct {
	mu       sync.Mutex
	items    []model.GroupSummary
	capacity int
}

// NewSummaryLog creates a log holding at most capacity summaries.
func NewSummaryLog(capacity int) *SummaryLog {
	if capacity <= 0 {
		capacity = 1
	}
	return &SummaryLog{capacity: capacity}
}

// Add appends s, evicting the oldest entry when full.
func (l *SummaryLog) Add(s model.GroupSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == l.capacity {
		copy(l.items, l.items[1:])
		l.items = l.items[:len(l.items)-1]
	}
	l.items = append(l.items, s)
}

// Views returns the JSON views of the stored summaries.
func (l *SummaryLog) Views() []SummaryView {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SummaryView, len(l.items))
	for i, s := range l.items {
		out[i] = viewOf(s)
	}
	return out
}
