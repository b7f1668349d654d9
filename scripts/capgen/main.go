// capgen writes a synthetic session capture and the period index that goes with it.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
)

var (
	serverIP    = net.IP{93, 184, 216, 34}
	collectorIP = net.IP{10, 20, 0, 9}
	baseTime    = time.Unix(1700000000, 0)
)

type genOptions struct {
	Local   net.IP
	Periods int
	Packets int
	Seed    int64
}

// generator serializes packets of alternating burst and idle periods.
type generator struct {
	w    *pcapgo.Writer
	rnd  *rand.Rand
	opts genOptions
	now  time.Time
	eth  *layers.Ethernet
}

// generate writes opts.Periods periods of opts.Packets packets each to w and returns
// the index lines describing them.
func generate(w io.Writer, opts genOptions) ([]string, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	g := &generator{
		w:    pw,
		rnd:  rand.New(rand.NewSource(opts.Seed)),
		opts: opts,
		now:  baseTime,
		eth: &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
			EthernetType: layers.EthernetTypeIPv4,
		},
	}

	var index []string
	for p := 0; p < opts.Periods; p++ {
		start := p*opts.Packets + 1
		label := "idle"
		if p%2 == 0 {
			label = "burst"
		}
		for i := 0; i < opts.Packets; i++ {
			var err error
			if label == "burst" {
				err = g.burstPacket()
			} else {
				err = g.idlePacket()
			}
			if err != nil {
				return nil, err
			}
		}
		index = append(index, fmt.Sprintf("%d %d %s %d", start, start+opts.Packets-1, label, p+1))
	}
	return index, nil
}

// burstPacket emits a large download segment, or now and then a bare upload ACK.
func (g *generator) burstPacket() error {
	g.now = g.now.Add(time.Duration(2+g.rnd.Intn(6)) * time.Millisecond)
	if g.rnd.Intn(5) == 0 {
		return g.tcp(g.opts.Local, serverIP, 51000, 8443, 0)
	}
	return g.tcp(serverIP, g.opts.Local, 8443, 51000, 1000+g.rnd.Intn(400))
}

// idlePacket emits a small telemetry datagram or its acknowledgement.
func (g *generator) idlePacket() error {
	g.now = g.now.Add(time.Duration(150+g.rnd.Intn(100)) * time.Millisecond)
	if g.rnd.Intn(2) == 0 {
		return g.udp(g.opts.Local, collectorIP, 40000, 9999, 30+g.rnd.Intn(30))
	}
	return g.udp(collectorIP, g.opts.Local, 9999, 40000, 60+g.rnd.Intn(120))
}

func (g *generator) tcp(src, dst net.IP, sport, dport, size int) error {
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: src, DstIP: dst}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(sport),
		DstPort: layers.TCPPort(dport),
		Seq:     g.rnd.Uint32(),
		Ack:     g.rnd.Uint32(),
		ACK:     true,
		PSH:     size > 0,
		Window:  14600,
	}
	tcp.SetNetworkLayerForChecksum(ip)
	return g.write(g.eth, ip, tcp, gopacket.Payload(g.payload(size)))
}

func (g *generator) udp(src, dst net.IP, sport, dport, size int) error {
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: src, DstIP: dst}
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	udp.SetNetworkLayerForChecksum(ip)
	return g.write(g.eth, ip, udp, gopacket.Payload(g.payload(size)))
}

func (g *generator) payload(size int) []byte {
	b := make([]byte, size)
	g.rnd.Read(b)
	return b
}

func (g *generator) write(ls ...gopacket.SerializableLayer) error {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		return fmt.Errorf("failed to serialize layers: %w", err)
	}
	data := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: g.now, CaptureLength: len(data), Length: len(data)}
	if err := g.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

func main() {
	outputFile := flag.String("o", "session.pcap", "Output pcap file path")
	indexFile := flag.String("i", "index.txt", "Output index file path")
	local := flag.String("local", "192.168.1.5", "Address of the local host")
	periods := flag.Int("periods", 4, "Number of periods to generate")
	packets := flag.Int("c", 200, "Number of packets per period")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	localIP := net.ParseIP(*local).To4()
	if localIP == nil {
		log.Fatalf("Not an IPv4 address: %s", *local)
	}
	if *periods <= 0 || *packets < 2 {
		log.Fatalf("Need at least one period of two packets")
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	log.Printf("Generating %d periods of %d packets into %s...", *periods, *packets, *outputFile)
	bw := bufio.NewWriter(f)
	index, err := generate(bw, genOptions{Local: localIP, Periods: *periods, Packets: *packets, Seed: *seed})
	if err != nil {
		log.Fatalf("Failed to generate capture: %v", err)
	}
	if err := bw.Flush(); err != nil {
		log.Fatalf("Failed to flush capture: %v", err)
	}

	idx, err := os.Create(*indexFile)
	if err != nil {
		log.Fatalf("Failed to create index file: %v", err)
	}
	defer idx.Close()
	for _, line := range index {
		fmt.Fprintln(idx, line)
	}

	log.Printf("Successfully generated %d packets into %s, index in %s.", *periods*(*packets), *outputFile, *indexFile)
}
