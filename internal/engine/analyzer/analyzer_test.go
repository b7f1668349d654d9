package analyzer

import (
	"Go2NetPeriod/internal/engine/grouping"
	"Go2NetPeriod/internal/engine/statistic"
	"Go2NetPeriod/internal/metrics"
	"Go2NetPeriod/internal/model"
	"Go2NetPeriod/internal/report"
	"Go2NetPeriod/pkg/capture"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const local = "10.0.0.2"

func rec(t float64, src, dst, proto string, length int, info string) model.PacketRecord {
	return model.PacketRecord{Timestamp: t, Source: src, Destination: dst, Protocol: proto, Length: length, Info: info}
}

func newStore(records ...model.PacketRecord) *capture.Log {
	for i := range records {
		records[i].Sequence = i + 1
	}
	return capture.NewLog(records)
}

func smallStore() *capture.Log {
	return newStore(
		rec(0.0, "1.1.1.1", local, "TCP", 100, "443  >  5000 [ACK] Len=46"),
		rec(0.1, local, "1.1.1.1", "TCP", 60, "5000  >  443 [ACK] Len=0"),
		rec(0.3, "1.1.1.1", local, "TCP", 200, "443  >  5000 [PSH, ACK] Len=146"),
		rec(0.5, "8.8.8.8", local, "UDP", 80, "53  >  40000 Len=38"),
		rec(1.0, "1.1.1.1", local, "TCP", 300, "443  >  5001 Len=246"),
	)
}

func testOptions() Options {
	return Options{
		Grouping: grouping.Options{
			ServerLimit:         3,
			NegligibleThreshold: 2,
			ZeroPayloadMarker:   "Len=0",
		},
		ReportVariance:   true,
		ReportThroughput: true,
		Workers:          1,
	}
}

func run(t *testing.T, opts Options, store model.RecordStore, periods []model.Period, sink model.DiagramSink, pubs ...model.Publisher) (string, Result, error) {
	t.Helper()
	var buf bytes.Buffer
	w := report.NewTextWriter(&buf)
	res, err := New(opts, w, sink, pubs, nil).Run(context.Background(), store, periods, local)
	if cerr := w.Close(); cerr != nil {
		t.Fatalf("Close failed: %v", cerr)
	}
	return buf.String(), res, err
}

func TestRun_ReportText(t *testing.T) {
	got, res, err := run(t, testOptions(), smallStore(), []model.Period{{Start: 1, End: 5, Label: "call"}}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := "\nANALYZE call(1 ~ 5) PERIOD(DOWNLOAD)\n" +
		"\tmean throughput: 680.00 B/s\n" +
		"1.1.1.1 ---> 10.0.0.2 (TCP) [3 packets]:\n" +
		"\tsrcPort: 443 > dstPort: 5000: 2 packets\n" +
		"\tsrcPort: 443 > dstPort: 5001: 1 packets\n" +
		"\tmean size: 200.00 Bytes\n" +
		"\tmedian size: 200.00 Bytes\n" +
		"\tvariance: 6666.67 Bytes\n" +
		"\tmean delta: 500.00 ms\n" +
		"\tmedian delta: 500.00 ms\n" +
		"\tvariance: 40000.00 ms\n" +
		"\nANALYZE call(1 ~ 5) PERIOD(UPLOAD)\n" +
		"\tmean throughput: 60.00 B/s\n"
	if got != want {
		t.Errorf("Unexpected report.\nwant:\n%s\ngot:\n%s", want, got)
	}
	if res.Groups != 1 || res.Negligible != 2 || res.Periods != 1 || res.RunID == "" {
		t.Errorf("Unexpected result: %+v", res)
	}
}

func TestRun_SwitchesAndState(t *testing.T) {
	opts := testOptions()
	opts.ReportThroughput = false
	opts.ReportVariance = false
	opts.State = model.StateIdle

	got, _, err := run(t, opts, smallStore(), []model.Period{{Start: 1, End: 5, Label: "call"}}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.HasPrefix(got, "\nANALYZE call(1 ~ 5) PERIOD(DOWNLOAD) STATE(IDLE)\n1.1.1.1 ---> ") {
		t.Errorf("Unexpected header:\n%s", got)
	}
	if strings.Contains(got, "throughput") || strings.Contains(got, "variance") {
		t.Errorf("Disabled sections were reported:\n%s", got)
	}
}

func TestRun_UploadHeaderAndUndefinedDeltas(t *testing.T) {
	opts := testOptions()
	opts.Grouping.NegligibleThreshold = 1

	got, _, err := run(t, opts, smallStore(), []model.Period{{Start: 1, End: 5, Label: "call"}}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	upload := got[strings.Index(got, "PERIOD(UPLOAD)"):]
	want := "PERIOD(UPLOAD)\n" +
		"\tmean throughput: 60.00 B/s\n" +
		"10.0.0.2 ---> 1.1.1.1 (TCP) [1 packets]:\n" +
		"\tsrcPort: 5000 > dstPort: 443: 1 packets\n" +
		"\tmean size: 60.00 Bytes\n" +
		"\tmedian size: 60.00 Bytes\n" +
		"\tvariance: 0.00 Bytes\n" +
		"\tmean delta: undefined (insufficient data)\n" +
		"\tmedian delta: undefined (insufficient data)\n" +
		"\tvariance: undefined (insufficient data)\n"
	if upload != want {
		t.Errorf("Unexpected upload block.\nwant:\n%s\ngot:\n%s", want, upload)
	}
}

func TestRun_InvalidPeriodFailsBeforeWriting(t *testing.T) {
	periods := []model.Period{{Start: 1, End: 5, Label: "ok"}, {Start: 4, End: 9, Label: "past the end"}}
	got, _, err := run(t, testOptions(), smallStore(), periods, nil)
	if !errors.Is(err, grouping.ErrInvalidPeriod) {
		t.Fatalf("Expected ErrInvalidPeriod, got %v", err)
	}
	if got != "" {
		t.Errorf("Expected an empty report, got:\n%s", got)
	}
}

func TestRun_DegeneratePeriodLeavesNoPartialReport(t *testing.T) {
	store := newStore(
		rec(1.0, "1.1.1.1", local, "TCP", 100, ""),
		rec(2.0, "1.1.1.1", local, "TCP", 100, ""),
		rec(2.0, "1.1.1.1", local, "TCP", 100, ""),
	)
	periods := []model.Period{{Start: 1, End: 2, Label: "fine"}, {Start: 2, End: 3, Label: "instant"}}

	got, _, err := run(t, testOptions(), store, periods, nil)
	if !errors.Is(err, statistic.ErrDegeneratePeriod) {
		t.Fatalf("Expected ErrDegeneratePeriod, got %v", err)
	}
	if got != "" {
		t.Errorf("Expected an empty report, got:\n%s", got)
	}
}

func randomLog(seed int64, n int) (*capture.Log, []model.Period) {
	rng := rand.New(rand.NewSource(seed))
	peers := []string{"1.1.1.1", "8.8.8.8", "142.250.1.1", "151.101.1.1", "104.16.0.1"}
	protos := []string{"TCP", "UDP", "TLSv1.3", "QUIC"}

	records := make([]model.PacketRecord, n)
	ts := 0.0
	for i := range records {
		ts += float64(rng.Intn(50)+1) / 1000
		peer := peers[rng.Intn(len(peers))]
		proto := protos[rng.Intn(len(protos))]
		sp, dp := 1024+rng.Intn(4), 443+rng.Intn(2)
		info := fmt.Sprintf("%d  >  %d Len=%d", sp, dp, rng.Intn(1400))
		if rng.Intn(2) == 0 {
			records[i] = rec(ts, peer, local, proto, 60+rng.Intn(1400), info)
		} else {
			records[i] = rec(ts, local, peer, proto, 60+rng.Intn(1400), info)
		}
	}

	var periods []model.Period
	for i := 0; i < 12; i++ {
		start := 1 + rng.Intn(n-1)
		end := start + 1 + rng.Intn(n-start)
		periods = append(periods, model.Period{Start: start, End: end, Label: fmt.Sprintf("p%d", i)})
	}
	return newStore(records...), periods
}

func TestRun_IdenticalAcrossRerunsAndWorkerCounts(t *testing.T) {
	store, periods := randomLog(42, 2000)

	opts := testOptions()
	opts.Grouping.NegligibleThreshold = 10
	baseline, _, err := run(t, opts, store, periods, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.Count(baseline, "\nANALYZE ") != 2*len(periods) {
		t.Fatalf("Expected %d blocks", 2*len(periods))
	}

	for _, workers := range []int{1, 3, 8} {
		opts.Workers = workers
		got, _, err := run(t, opts, store, periods, nil)
		if err != nil {
			t.Fatalf("Run with %d workers failed: %v", workers, err)
		}
		if got != baseline {
			t.Errorf("Report with %d workers differs from the baseline", workers)
		}
	}
}

type recordingSink struct {
	mu     sync.Mutex
	series []model.Series
	err    error
	failAt int // err is returned from this call on (1-based); 0 fails every call
}

func (s *recordingSink) Plot(series model.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = append(s.series, series)
	if len(s.series) >= s.failAt {
		return s.err
	}
	return nil
}

type recordingPublisher struct {
	summaries []model.GroupSummary
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, s model.GroupSummary) error {
	p.summaries = append(p.summaries, s)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestRun_DiagramsAndPublishers(t *testing.T) {
	opts := testOptions()
	opts.Grouping.NegligibleThreshold = 1
	sink := &recordingSink{}
	pub := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("bus down")}

	_, res, err := run(t, opts, smallStore(), []model.Period{{Start: 1, End: 5, Label: "call"}}, sink, pub, failing)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 1. Three groups: 1.1.1.1 and 8.8.8.8 down, 1.1.1.1 up.
	if len(pub.summaries) != 3 || len(failing.summaries) != 3 {
		t.Fatalf("Expected 3 summaries per publisher, got %d and %d", len(pub.summaries), len(failing.summaries))
	}
	first := pub.summaries[0]
	if first.RunID != res.RunID || first.Peer != "1.1.1.1" || first.Direction != model.Download || first.Packets != 3 {
		t.Errorf("Unexpected first summary: %+v", first)
	}
	if first.Throughput != 680 || first.MeanSize != 200 || first.DeltaCount != 2 {
		t.Errorf("Unexpected statistics in summary: %+v", first)
	}

	// 2. Single-record groups only get a size series.
	if len(sink.series) != 4 {
		t.Fatalf("Expected 4 series, got %d", len(sink.series))
	}
	kinds := []string{model.KindPacketSize, model.KindTimeDiff, model.KindPacketSize, model.KindPacketSize}
	for i, s := range sink.series {
		if s.Key.Kind != kinds[i] {
			t.Errorf("Series %d: expected %s, got %s", i, kinds[i], s.Key.Kind)
		}
	}
	diff := sink.series[1]
	if len(diff.X) != 2 || diff.X[0] != 0.3 || diff.Y[1] < 699.99 || diff.Y[1] > 700.01 {
		t.Errorf("Unexpected time diff series: %+v", diff)
	}
}

func TestRun_DiagramFailureIsFatal(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	if _, _, err := run(t, testOptions(), smallStore(), []model.Period{{Start: 1, End: 5, Label: "call"}}, sink); err == nil {
		t.Error("Expected the diagram error to abort the run")
	}
}

func TestRun_LateDiagramFailureCommitsNothing(t *testing.T) {
	// 1. The first series renders, the second one fails.
	sink := &recordingSink{err: errors.New("disk full"), failAt: 2}
	pub := &recordingPublisher{}
	periods := []model.Period{{Start: 1, End: 5, Label: "a"}, {Start: 1, End: 4, Label: "b"}}
	text, _, err := run(t, testOptions(), smallStore(), periods, sink, pub)
	if err == nil {
		t.Fatal("Expected the diagram error to abort the run")
	}

	// 2. Neither the report nor the publishers saw any of the run.
	if text != "" {
		t.Errorf("Expected an empty report, got:\n%s", text)
	}
	if len(pub.summaries) != 0 {
		t.Errorf("Expected nothing published, got %d summaries", len(pub.summaries))
	}
}

func TestRun_Metrics(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics.New failed: %v", err)
	}
	var buf bytes.Buffer
	a := New(testOptions(), report.NewTextWriter(&buf), nil, nil, m)
	if _, err := a.Run(context.Background(), smallStore(), []model.Period{{Start: 1, End: 5, Label: "call"}}, local); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := testutil.ToFloat64(m.PeriodsAnalyzed); got != 1 {
		t.Errorf("Expected 1 period, got %v", got)
	}
	if got := testutil.ToFloat64(m.GroupsReported.WithLabelValues("download")); got != 1 {
		t.Errorf("Expected 1 download group, got %v", got)
	}
	if got := testutil.ToFloat64(m.GroupsNegligible.WithLabelValues("upload")); got != 1 {
		t.Errorf("Expected 1 negligible upload group, got %v", got)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	a := New(testOptions(), report.NewTextWriter(&buf), nil, nil, nil)
	if _, err := a.Run(ctx, smallStore(), []model.Period{{Start: 1, End: 5, Label: "call"}}, local); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
