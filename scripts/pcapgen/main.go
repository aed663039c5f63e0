package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapgen synthesizes a capture of complete bidirectional flows (TCP sessions
// with handshake, data and teardown, plus DNS-style UDP pairs) for exercising
// the analyzer offline.
func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	flowCount := flag.Int("c", 100, "Number of flows to generate")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	g := &generator{w: w, rng: rng, now: time.Now().Add(-time.Hour)}

	log.Printf("Generating %d flows into %s (seed %d)...", *flowCount, *outputFile, *seed)
	packets := 0
	for i := 0; i < *flowCount; i++ {
		if rng.Intn(4) == 0 {
			packets += g.udpExchange()
		} else {
			packets += g.tcpSession()
		}
		g.now = g.now.Add(time.Duration(rng.Intn(200)) * time.Millisecond)
	}

	log.Printf("Successfully generated %d flows (%d packets) into %s.", *flowCount, packets, *outputFile)
}

type generator struct {
	w   *pcapgo.Writer
	rng *rand.Rand
	now time.Time
}

func (g *generator) clientIP() net.IP {
	return net.IP{10, 0, byte(g.rng.Intn(4)), byte(g.rng.Intn(254) + 1)}
}

func (g *generator) serverIP() net.IP {
	return net.IP{203, 0, 113, byte(g.rng.Intn(254) + 1)}
}

// tcpSession writes handshake, a few data segments in both directions, and a
// FIN from each side.
func (g *generator) tcpSession() int {
	client, server := g.clientIP(), g.serverIP()
	srcPort := layers.TCPPort(g.rng.Intn(65535-1024) + 1024)
	dstPort := layers.TCPPort([]int{80, 443, 22, 8080}[g.rng.Intn(4)])

	packets := 0
	send := func(fromClient bool, payloadSize int, fin bool, syn bool, ack bool) {
		tcp := &layers.TCP{
			Seq:    g.rng.Uint32(),
			SYN:    syn,
			FIN:    fin,
			ACK:    ack,
			PSH:    payloadSize > 0,
			Window: 64240,
		}
		var ip *layers.IPv4
		if fromClient {
			ip = &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: client, DstIP: server}
			tcp.SrcPort, tcp.DstPort = srcPort, dstPort
		} else {
			ip = &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: server, DstIP: client}
			tcp.SrcPort, tcp.DstPort = dstPort, srcPort
		}
		g.writePacket(ip, tcp, payloadSize)
		packets++
		g.now = g.now.Add(time.Duration(g.rng.Intn(20)+1) * time.Millisecond)
	}

	send(true, 0, false, true, false)  // SYN
	send(false, 0, false, true, true)  // SYN-ACK
	send(true, 0, false, false, true)  // ACK
	for i := 0; i < g.rng.Intn(8)+2; i++ {
		fromClient := g.rng.Intn(3) == 0
		send(fromClient, g.rng.Intn(1200)+50, false, false, true)
	}
	send(true, 0, true, false, true)  // FIN
	send(false, 0, true, false, true) // FIN-ACK
	return packets
}

// udpExchange writes a query and a response.
func (g *generator) udpExchange() int {
	client, server := g.clientIP(), g.serverIP()
	srcPort := layers.UDPPort(g.rng.Intn(65535-1024) + 1024)

	query := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: client, DstIP: server}
	g.writePacket(query, &layers.UDP{SrcPort: srcPort, DstPort: 53}, g.rng.Intn(60)+20)
	g.now = g.now.Add(time.Duration(g.rng.Intn(30)+1) * time.Millisecond)

	resp := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: server, DstIP: client}
	g.writePacket(resp, &layers.UDP{SrcPort: 53, DstPort: srcPort}, g.rng.Intn(400)+40)
	g.now = g.now.Add(time.Millisecond)
	return 2
}

func (g *generator) writePacket(ip *layers.IPv4, transport gopacket.SerializableLayer, payloadSize int) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	switch t := transport.(type) {
	case *layers.TCP:
		t.SetNetworkLayerForChecksum(ip)
	case *layers.UDP:
		t.SetNetworkLayerForChecksum(ip)
	}

	payload := make([]byte, payloadSize)
	g.rng.Read(payload)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, transport, gopacket.Payload(payload)); err != nil {
		log.Fatalf("Failed to serialize layers: %v", err)
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     g.now,
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	if err := g.w.WritePacket(ci, buf.Bytes()); err != nil {
		log.Fatalf("Failed to write packet: %v", err)
	}
}
