// Package grouping selects, per period and direction, the peers that dominate the
// conversation and the single protocol each of them predominantly uses.
package grouping

import (
	"Go2NetPeriod/internal/model"
	"Go2NetPeriod/internal/pkg/freq"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidPeriod is returned when a period does not address a valid range of the store.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrEmptyGroup is returned when a dominance lookup has no candidate records.
	ErrEmptyGroup = errors.New("empty group")
)

// Options holds the tunables of the grouping stages.
type Options struct {
	ServerLimit         int
	NegligibleThreshold int
	ExcludeZeroPayload  bool
	ZeroPayloadMarker   string
}

// DefaultOptions returns 3 peers, a threshold of 10 records and no zero-payload exclusion.
func DefaultOptions() Options {
	return Options{
		ServerLimit:         3,
		NegligibleThreshold: 10,
		ZeroPayloadMarker:   "Len=0",
	}
}

// Result is the outcome of grouping one period in one direction.
type Result struct {
	Groups     []model.PeerGroup
	Negligible int // peers dropped by the negligibility filter
}

// Filter returns the records of the period that flow in dir relative to local,
// in log order.
func Filter(store model.RecordStore, period model.Period, dir model.Direction, local string, opts Options) ([]model.PacketRecord, error) {
	if err := period.Validate(store.Len()); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPeriod, period.Label, err)
	}

	var out []model.PacketRecord
	for i := period.Start; i <= period.End; i++ {
		rec := store.At(i)
		if !dir.Matches(rec, local) {
			continue
		}
		if opts.ExcludeZeroPayload && opts.ZeroPayloadMarker != "" && strings.Contains(rec.Info, opts.ZeroPayloadMarker) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// RankPeers returns up to limit peer addresses ordered by descending record count.
// Peers with equal counts keep the order in which they were first seen.
func RankPeers(records []model.PacketRecord, dir model.Direction, limit int) []string {
	counter := freq.New[string]()
	for _, rec := range records {
		counter.Add(dir.PeerField(rec))
	}

	top := counter.MostCommon(limit)
	peers := make([]string, len(top))
	for i, e := range top {
		peers[i] = e.Key
	}
	return peers
}

// DominantProtocol returns the most frequent protocol among the records of peer and
// the subsequence of the peer's records that use it. Ties go to the protocol seen first.
func DominantProtocol(records []model.PacketRecord, dir model.Direction, peer string) (string, []model.PacketRecord, error) {
	counter := freq.New[string]()
	for _, rec := range records {
		if dir.PeerField(rec) == peer {
			counter.Add(rec.Protocol)
		}
	}
	top := counter.MostCommon(1)
	if len(top) == 0 {
		return "", nil, fmt.Errorf("%w: no %s records for peer %s", ErrEmptyGroup, dir, peer)
	}

	proto := top[0].Key
	matching := make([]model.PacketRecord, 0, top[0].Count)
	for _, rec := range records {
		if dir.PeerField(rec) == peer && rec.Protocol == proto {
			matching = append(matching, rec)
		}
	}
	return proto, matching, nil
}

// Group runs the filter, ranker, dominance and negligibility stages for one period and
// direction. The dominant protocol is chosen first and the negligibility threshold is
// applied to the protocol-filtered record count.
func Group(store model.RecordStore, period model.Period, dir model.Direction, local string, opts Options) (Result, error) {
	relevant, err := Filter(store, period, dir, local, opts)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, peer := range RankPeers(relevant, dir, opts.ServerLimit) {
		proto, matching, err := DominantProtocol(relevant, dir, peer)
		if err != nil {
			return Result{}, err
		}
		if len(matching) < opts.NegligibleThreshold {
			log.Debugf("Dropping negligible %s peer %s (%s, %d records) in period '%s'", dir, peer, proto, len(matching), period.Label)
			res.Negligible++
			continue
		}
		res.Groups = append(res.Groups, model.PeerGroup{
			Peer:      peer,
			Protocol:  proto,
			Direction: dir,
			Records:   matching,
		})
	}
	return res, nil
}
