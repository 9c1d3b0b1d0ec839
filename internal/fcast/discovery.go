package fcast

import (
	"context"
	"log"
	"net"
	"sync"

	"github.com/libp2p/zeroconf/v2"
)

const (
	fcastServiceType      = "_fcast._tcp"
	chromecastServiceType = "_googlecast._tcp"
	mdnsDomain            = "local."
)

// DiscoveryListener receives device availability changes from a Discovery.
// Implementations must not block.
type DiscoveryListener interface {
	DeviceAvailable(info DeviceInfo)
	DeviceRemoved(name string)
}

// Discovery browses the local network for FCast and Chromecast receivers
// over mDNS and reports them to a DiscoveryListener.
type Discovery struct {
	listener DiscoveryListener

	mu     sync.Mutex
	cancel context.CancelFunc
	seen   map[string]DeviceInfo
}

// NewDiscovery creates a discovery session reporting to listener.
func NewDiscovery(listener DiscoveryListener) *Discovery {
	return &Discovery{
		listener: listener,
		seen:     make(map[string]DeviceInfo),
	}
}

// Start begins browsing in the background for both service types. Calling
// Start while already running is a no-op.
func (d *Discovery) Start() {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.mu.Unlock()

	go d.browse(ctx, fcastServiceType, ProtocolFCast)
	go d.browse(ctx, chromecastServiceType, ProtocolChromecast)
}

// Stop halts all outstanding browse goroutines.
func (d *Discovery) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Discovery) browse(ctx context.Context, serviceType string, protocol ProtocolType) {
	entries := make(chan *zeroconf.ServiceEntry, 16)
	go func() {
		for entry := range entries {
			d.handleEntry(entry, protocol)
		}
	}()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		log.Printf("DISCOVERY: new resolver for %s: %v", serviceType, err)
		close(entries)
		return
	}
	if err := resolver.Browse(ctx, serviceType, mdnsDomain, entries); err != nil {
		log.Printf("DISCOVERY: browse %s: %v", serviceType, err)
	}
	<-ctx.Done()
}

func (d *Discovery) handleEntry(entry *zeroconf.ServiceEntry, protocol ProtocolType) {
	if entry.TTL == 0 {
		d.mu.Lock()
		delete(d.seen, entry.Instance)
		d.mu.Unlock()
		d.listener.DeviceRemoved(entry.Instance)
		return
	}

	addrs := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	addrs = append(addrs, entry.AddrIPv4...)
	addrs = append(addrs, entry.AddrIPv6...)
	if len(addrs) == 0 {
		return
	}

	info := DeviceInfo{
		Name:      entry.Instance,
		Protocol:  protocol,
		Addresses: addrs,
		Port:      uint16(entry.Port),
	}

	d.mu.Lock()
	d.seen[entry.Instance] = info
	d.mu.Unlock()

	d.listener.DeviceAvailable(info)
}
