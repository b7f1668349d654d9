package pcap

import (
	"Go2NetPeriod/internal/model"
	"Go2NetPeriod/pkg/capture"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
)

type packetDataSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Reader reads packets from a pcap or pcapng file and turns them into records
// that look like the rows of a capture export.
type Reader struct {
	file   *os.File
	source packetDataSource
}

// NewReader creates a new reader for the given file path. Both the classic pcap and
// the pcapng formats are accepted.
func NewReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}

	var source packetDataSource
	if r, err := pcapgo.NewReader(file); err == nil {
		source = r
	} else {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
		ng, ngErr := pcapgo.NewNgReader(file, pcapgo.DefaultNgReaderOptions)
		if ngErr != nil {
			file.Close()
			return nil, fmt.Errorf("not a pcap or pcapng file: %v / %v", err, ngErr)
		}
		source = ng
	}
	return &Reader{file: file, source: source}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() {
	r.file.Close()
}

// ReadRecords decodes every packet of the file. Time is expressed in seconds relative
// to the first packet.
func (r *Reader) ReadRecords() []model.PacketRecord {
	packetSource := gopacket.NewPacketSource(r.source, r.source.LinkType())

	var records []model.PacketRecord
	var first time.Time
	for packet := range packetSource.Packets() {
		meta := packet.Metadata()
		if len(records) == 0 {
			first = meta.Timestamp
		}
		rec := toRecord(packet)
		rec.Sequence = len(records) + 1
		rec.Timestamp = meta.Timestamp.Sub(first).Seconds()
		records = append(records, rec)
	}
	return records
}

// Load reads a pcap file into an in-memory log.
func Load(filePath string) (*capture.Log, error) {
	reader, err := NewReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file: %w", err)
	}
	defer reader.Close()

	records := reader.ReadRecords()
	log.Printf("Decoded %d packets from '%s'", len(records), filePath)
	return capture.NewLog(records), nil
}

func toRecord(packet gopacket.Packet) model.PacketRecord {
	rec := model.PacketRecord{Length: len(packet.Data())}
	if meta := packet.Metadata(); meta != nil && meta.Length > 0 {
		rec.Length = meta.Length
	}

	if nl := packet.NetworkLayer(); nl != nil {
		src, dst := nl.NetworkFlow().Endpoints()
		rec.Source, rec.Destination = src.String(), dst.String()
	} else if link := packet.LinkLayer(); link != nil {
		src, dst := link.LinkFlow().Endpoints()
		rec.Source, rec.Destination = src.String(), dst.String()
	}

	rec.Protocol = topLayerName(packet)

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		rec.Info = tcpInfo(packet.Layer(layers.LayerTypeTCP).(*layers.TCP))
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		rec.Info = fmt.Sprintf("%d  >  %d Len=%d", uint16(udp.SrcPort), uint16(udp.DstPort), len(udp.Payload))
	default:
		rec.Info = rec.Protocol
	}
	return rec
}

// topLayerName returns the name of the highest decoded protocol layer.
func topLayerName(packet gopacket.Packet) string {
	all := packet.Layers()
	for i := len(all) - 1; i >= 0; i-- {
		switch all[i].LayerType() {
		case gopacket.LayerTypePayload, gopacket.LayerTypeDecodeFailure, gopacket.LayerTypeFragment:
			continue
		}
		return all[i].LayerType().String()
	}
	return "Unknown"
}

func tcpInfo(tcp *layers.TCP) string {
	var flags []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{tcp.FIN, "FIN"}, {tcp.SYN, "SYN"}, {tcp.RST, "RST"},
		{tcp.PSH, "PSH"}, {tcp.ACK, "ACK"}, {tcp.URG, "URG"},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	return fmt.Sprintf("%d  >  %d [%s] Seq=%d Ack=%d Win=%d Len=%d",
		uint16(tcp.SrcPort), uint16(tcp.DstPort), strings.Join(flags, ", "),
		tcp.Seq, tcp.Ack, tcp.Window, len(tcp.Payload))
}
