// ABOUTME: mDNS advertisement and browsing so phones and other boards on the LAN can find a running snapboard.
// ABOUTME: The TXT record carries the version and whether the board wants an auth token.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD service a board registers under.
const ServiceType = "_snapboard._tcp"

// Service describes the board being advertised.
type Service struct {
	Instance string // defaults to the hostname
	Port     int
	Version  string
	Auth     bool
	// Host and IPs override detection; tests pin them.
	Host string
	IPs  []net.IP
}

// Peer is a board found on the network.
type Peer struct {
	Instance string `json:"instance"`
	Addr     string `json:"addr"`
	Version  string `json:"version,omitempty"`
	Auth     bool   `json:"auth"`
}

// Advertiser answers mDNS queries until Shutdown.
type Advertiser struct {
	server *mdns.Server
	logger *slog.Logger
}

// Zone builds the mDNS zone for svc without touching the network.
func Zone(svc Service) (*mdns.MDNSService, error) {
	if svc.Port <= 0 {
		return nil, errors.New("discovery: port must be positive")
	}
	if svc.Instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		svc.Instance = host
	}
	ips := svc.IPs
	if len(ips) == 0 && svc.Host == "" {
		ips = []net.IP{firstIPv4()}
	}
	host := svc.Host
	if host != "" && !strings.HasSuffix(host, ".") {
		host += "."
	}
	zone, err := mdns.NewMDNSService(svc.Instance, ServiceType, "", host, svc.Port, ips, txtRecord(svc))
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	return zone, nil
}

// Advertise starts answering for svc on the LAN.
func Advertise(svc Service, logger *slog.Logger) (*Advertiser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	zone, err := Zone(svc)
	if err != nil {
		return nil, err
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	logger.Info("advertising board",
		slog.String("component", "discovery"),
		slog.String("instance", zone.Instance),
		slog.Int("port", svc.Port))
	return &Advertiser{server: server, logger: logger}, nil
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	a.logger.Info("stopped advertising board", slog.String("component", "discovery"))
	return a.server.Shutdown()
}

// Browse queries the LAN for boards until ctx ends or wait elapses.
func Browse(ctx context.Context, wait time.Duration) ([]Peer, error) {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < wait {
			wait = left
		}
	}
	entries := make(chan *mdns.ServiceEntry, 16)
	var peers []Peer
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		seen := make(map[string]bool)
		for e := range entries {
			p, ok := PeerFrom(e)
			if !ok || seen[p.Addr] {
				continue
			}
			seen[p.Addr] = true
			peers = append(peers, p)
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = wait
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	<-collected
	if err != nil {
		return peers, fmt.Errorf("mdns query: %w", err)
	}
	return peers, ctx.Err()
}

// PeerFrom converts a browse result. Entries without an IPv4 address or port
// are skipped.
func PeerFrom(e *mdns.ServiceEntry) (Peer, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Peer{}, false
	}
	p := Peer{
		Instance: instanceName(e.Name),
		Addr:     net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port)),
	}
	for _, field := range e.InfoFields {
		key, value, _ := strings.Cut(field, "=")
		switch key {
		case "version":
			p.Version = value
		case "auth":
			p.Auth = value == "token"
		}
	}
	return p, true
}

func txtRecord(svc Service) []string {
	auth := "none"
	if svc.Auth {
		auth = "token"
	}
	txt := []string{"app=snapboard", "auth=" + auth}
	if svc.Version != "" {
		txt = append(txt, "version="+svc.Version)
	}
	return txt
}

// instanceName strips the service suffix from a full DNS-SD name.
func instanceName(full string) string {
	if i := strings.Index(full, "."+ServiceType); i >= 0 {
		full = full[:i]
	}
	return strings.ReplaceAll(full, `\ `, " ")
}

func firstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
