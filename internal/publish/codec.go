// Package publish sends group summaries to message buses.
package publish

import (
	"Go2NetPeriod/internal/model"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Encode serializes a summary as a protobuf Struct. The generation time is stored as
// the seconds and nanos of a protobuf Timestamp.
func Encode(s model.GroupSummary) ([]byte, error) {
	ts := timestamppb.New(s.GeneratedAt)
	if err := ts.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid generation time: %w", err)
	}

	fields, err := structpb.NewStruct(map[string]interface{}{
		"run_id":       s.RunID,
		"period_label": s.Period.Label,
		"period_start": s.Period.Start,
		"period_end":   s.Period.End,
		"direction":    s.Direction.String(),
		"state":        s.State.String(),
		"local":        s.Local,
		"peer":         s.Peer,
		"protocol":     s.Protocol,
		"packets":      s.Packets,
		"throughput":   s.Throughput,
		"mean_size":    s.MeanSize,
		"median_size":  s.MedianSize,
		"mean_delta":   s.MeanDelta,
		"median_delta": s.MedianDelta,
		"delta_count":  s.DeltaCount,
		"generated_at": map[string]interface{}{
			"seconds": ts.GetSeconds(),
			"nanos":   ts.GetNanos(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build summary struct: %w", err)
	}

	data, err := proto.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}
	return data, nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (model.GroupSummary, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return model.GroupSummary{}, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	f := st.GetFields()

	dir, err := model.ParseDirection(f["direction"].GetStringValue())
	if err != nil {
		return model.GroupSummary{}, err
	}
	state, err := model.ParseState(f["state"].GetStringValue())
	if err != nil {
		return model.GroupSummary{}, err
	}

	gen := f["generated_at"].GetStructValue().GetFields()
	ts := &timestamppb.Timestamp{
		Seconds: int64(gen["seconds"].GetNumberValue()),
		Nanos:   int32(gen["nanos"].GetNumberValue()),
	}
	if err := ts.CheckValid(); err != nil {
		return model.GroupSummary{}, fmt.Errorf("invalid generation time: %w", err)
	}

	return model.GroupSummary{
		RunID: f["run_id"].GetStringValue(),
		Period: model.Period{
			Start: int(f["period_start"].GetNumberValue()),
			End:   int(f["period_end"].GetNumberValue()),
			Label: f["period_label"].GetStringValue(),
		},
		Direction:   dir,
		State:       state,
		Local:       f["local"].GetStringValue(),
		Peer:        f["peer"].GetStringValue(),
		Protocol:    f["protocol"].GetStringValue(),
		Packets:     int(f["packets"].GetNumberValue()),
		Throughput:  f["throughput"].GetNumberValue(),
		MeanSize:    f["mean_size"].GetNumberValue(),
		MedianSize:  f["median_size"].GetNumberValue(),
		MeanDelta:   f["mean_delta"].GetNumberValue(),
		MedianDelta: f["median_delta"].GetNumberValue(),
		DeltaCount:  int(f["delta_count"].GetNumberValue()),
		GeneratedAt: ts.AsTime(),
	}, nil
}
