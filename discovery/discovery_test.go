// ABOUTME: Tests for mDNS zone construction and browse-result decoding.
// ABOUTME: No multicast traffic; hosts and IPs are pinned.
package discovery_test

import (
	"net"
	"slices"
	"testing"

	"github.com/hashicorp/mdns"

	"github.com/2389-research/snapboard/discovery"
)

func TestZone_CarriesPortAndTXT(t *testing.T) {
	zone, err := discovery.Zone(discovery.Service{
		Instance: "kitchen board",
		Port:     7780,
		Version:  "1.2.0",
		Auth:     true,
		Host:     "kitchen.local",
		IPs:      []net.IP{net.IPv4(192, 168, 1, 20)},
	})
	if err != nil {
		t.Fatalf("Zone: %v", err)
	}
	if zone.Port != 7780 || zone.Service != discovery.ServiceType {
		t.Errorf("zone = %+v", zone)
	}
	if zone.HostName != "kitchen.local." {
		t.Errorf("host = %q", zone.HostName)
	}
	for _, want := range []string{"app=snapboard", "auth=token", "version=1.2.0"} {
		if !slices.Contains(zone.TXT, want) {
			t.Errorf("TXT %v missing %q", zone.TXT, want)
		}
	}
}

func TestZone_RejectsMissingPort(t *testing.T) {
	if _, err := discovery.Zone(discovery.Service{Instance: "x", IPs: []net.IP{net.IPv4(10, 0, 0, 1)}}); err == nil {
		t.Fatal("expected error for zero port")
	}
}

func TestPeerFrom(t *testing.T) {
	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
		want  discovery.Peer
		ok    bool
	}{
		{
			name: "full entry",
			entry: &mdns.ServiceEntry{
				Name:       `kitchen\ board._snapboard._tcp.local.`,
				AddrV4:     net.IPv4(192, 168, 1, 20),
				Port:       7780,
				InfoFields: []string{"app=snapboard", "auth=token", "version=1.2.0"},
			},
			want: discovery.Peer{Instance: "kitchen board", Addr: "192.168.1.20:7780", Version: "1.2.0", Auth: true},
			ok:   true,
		},
		{
			name: "open board",
			entry: &mdns.ServiceEntry{
				Name:       "den._snapboard._tcp.local.",
				AddrV4:     net.IPv4(10, 0, 0, 5),
				Port:       9000,
				InfoFields: []string{"auth=none"},
			},
			want: discovery.Peer{Instance: "den", Addr: "10.0.0.5:9000"},
			ok:   true,
		},
		{name: "no address", entry: &mdns.ServiceEntry{Name: "x", Port: 7780}},
		{name: "no port", entry: &mdns.ServiceEntry{Name: "x", AddrV4: net.IPv4(10, 0, 0, 5)}},
		{name: "nil", entry: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := discovery.PeerFrom(tt.entry)
			if ok != tt.ok || got != tt.want {
				t.Errorf("PeerFrom = %+v, %v; want %+v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestShutdown_NilAdvertiser(t *testing.T) {
	var a *discovery.Advertiser
	if err := a.Shutdown(); err != nil {
		t.Errorf("Shutdown on nil = %v", err)
	}
}
