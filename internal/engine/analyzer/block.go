package analyzer

import (
	"Go2NetPeriod/internal/engine/grouping"
	"Go2NetPeriod/internal/engine/statistic"
	"Go2NetPeriod/internal/model"
	"bytes"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

const undefined = "undefined (insufficient data)"

// directionResult is the report block of one (period, direction) pair and everything
// derived from its groups.
type directionResult struct {
	dir        model.Direction
	block      []byte
	summaries  []model.GroupSummary
	series     []model.Series
	negligible int
	misses     int
}

func (a *Analyzer) analyzeDirection(store model.RecordStore, p model.Period, dir model.Direction, local string) (directionResult, error) {
	d := directionResult{dir: dir}
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "\nANALYZE %s(%d ~ %d) PERIOD(%s)", p.Label, p.Start, p.End, strings.ToUpper(dir.String()))
	if a.opts.State != model.StateUnspecified {
		fmt.Fprintf(&buf, " STATE(%s)", strings.ToUpper(a.opts.State.String()))
	}
	buf.WriteString("\n")

	var throughput float64
	if a.opts.ReportThroughput {
		var err error
		throughput, err = statistic.Throughput(store, p, dir, local)
		if err != nil {
			return d, err
		}
		fmt.Fprintf(&buf, "\tmean throughput: %.2f B/s\n", throughput)
	}

	groups, err := grouping.Group(store, p, dir, local, a.opts.Grouping)
	if err != nil {
		return d, err
	}
	d.negligible = groups.Negligible
	log.Debugf("Period '%s' %s: %d groups, %d negligible", p.Label, dir, len(groups.Groups), groups.Negligible)

	for _, g := range groups.Groups {
		summary, err := a.writeGroup(&buf, &d, p, g, local)
		if err != nil {
			return d, err
		}
		summary.Throughput = throughput
		d.summaries = append(d.summaries, summary)
	}

	d.block = buf.Bytes()
	return d, nil
}

// writeGroup appends the sub-block of one peer group: header, port pairs, size and
// inter-arrival statistics.
func (a *Analyzer) writeGroup(buf *bytes.Buffer, d *directionResult, p model.Period, g model.PeerGroup, local string) (model.GroupSummary, error) {
	from, to := g.Peer, local
	if g.Direction == model.Upload {
		from, to = local, g.Peer
	}
	fmt.Fprintf(buf, "%s ---> %s (%s) [%d packets]:\n", from, to, g.Protocol, len(g.Records))

	pairs, misses := statistic.PortPairs(g.Records)
	d.misses += misses
	for _, pc := range pairs {
		fmt.Fprintf(buf, "\tsrcPort: %s > dstPort: %s: %d packets\n", pc.Pair.Source, pc.Pair.Destination, pc.Count)
	}

	sizes, err := statistic.Sizes(g.Records)
	if err != nil {
		return model.GroupSummary{}, err
	}
	fmt.Fprintf(buf, "\tmean size: %.2f Bytes\n", sizes.Mean)
	fmt.Fprintf(buf, "\tmedian size: %.2f Bytes\n", sizes.Median)
	if a.opts.ReportVariance {
		fmt.Fprintf(buf, "\tvariance: %.2f Bytes\n", sizes.Variance)
	}

	deltas, values := statistic.InterArrival(g.Records)
	if deltas.Defined() {
		fmt.Fprintf(buf, "\tmean delta: %.2f ms\n", deltas.Mean)
		fmt.Fprintf(buf, "\tmedian delta: %.2f ms\n", deltas.Median)
		if a.opts.ReportVariance {
			fmt.Fprintf(buf, "\tvariance: %.2f ms\n", deltas.Variance)
		}
	} else {
		fmt.Fprintf(buf, "\tmean delta: %s\n", undefined)
		fmt.Fprintf(buf, "\tmedian delta: %s\n", undefined)
		if a.opts.ReportVariance {
			fmt.Fprintf(buf, "\tvariance: %s\n", undefined)
		}
	}

	if a.diagrams != nil {
		d.series = append(d.series, a.groupSeries(p, g, values)...)
	}

	return model.GroupSummary{
		Period:      p,
		Direction:   g.Direction,
		State:       a.opts.State,
		Local:       local,
		Peer:        g.Peer,
		Protocol:    g.Protocol,
		Packets:     len(g.Records),
		MeanSize:    sizes.Mean,
		MedianSize:  sizes.Median,
		MeanDelta:   deltas.Mean,
		MedianDelta: deltas.Median,
		DeltaCount:  deltas.Count,
		GeneratedAt: a.now(),
	}, nil
}

// groupSeries builds the packet size and inter-arrival series of a group. The delta
// series is omitted when the group has fewer than two records.
func (a *Analyzer) groupSeries(p model.Period, g model.PeerGroup, deltas []float64) []model.Series {
	times := make([]float64, len(g.Records))
	lengths := make([]float64, len(g.Records))
	for i, r := range g.Records {
		times[i] = r.Timestamp
		lengths[i] = float64(r.Length)
	}

	key := model.SeriesKey{
		Period:    p,
		Peer:      g.Peer,
		Direction: g.Direction,
		State:     a.opts.State,
		Protocol:  g.Protocol,
	}
	desc := fmt.Sprintf("%s %s %s", p.Label, g.Peer, g.Direction)

	sizeKey := key
	sizeKey.Kind = model.KindPacketSize
	out := []model.Series{{
		Key:    sizeKey,
		Title:  fmt.Sprintf("%s packet size analysis(%s)", desc, g.Protocol),
		XLabel: "time(s)",
		YLabel: "packet size(B)",
		X:      times,
		Y:      lengths,
	}}

	if len(deltas) > 0 {
		diffKey := key
		diffKey.Kind = model.KindTimeDiff
		out = append(out, model.Series{
			Key:    diffKey,
			Title:  fmt.Sprintf("%s time diff analysis(%s)", desc, g.Protocol),
			XLabel: "time(s)",
			YLabel: "time diff(ms)",
			X:      times[1:],
			Y:      deltas,
		})
	}
	return out
}
