package link

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

// LinkPath is where the companion serves the websocket.
const LinkPath = "/link"

// Advertise announces the companion's link endpoint on the local network.
// Shut the returned server down to withdraw the announcement.
func Advertise(serviceType string, port int) (*mdns.Server, error) {
	if port <= 0 {
		return nil, fmt.Errorf("invalid port for mDNS advertisement: %d", port)
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "swimsync"
	}
	service, err := mdns.NewMDNSService(host, serviceType, "local", "", port, nil, []string{"path=" + LinkPath})
	if err != nil {
		return nil, fmt.Errorf("creating mDNS service: %w", err)
	}
	return mdns.NewServer(&mdns.Config{Zone: service})
}

// Discover looks for an advertised companion and returns its websocket URL.
func Discover(ctx context.Context, serviceType string, timeout time.Duration) (string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan string, 1)
	drained := make(chan struct{})

	go func() {
		defer close(drained)
		for entry := range entries {
			if entry.AddrV4 == nil || entry.Port == 0 {
				continue
			}
			select {
			case found <- fmt.Sprintf("ws://%s:%d%s", entry.AddrV4, entry.Port, LinkPath):
			default:
			}
		}
	}()

	params := mdns.DefaultParams(serviceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	<-drained
	if err != nil {
		return "", fmt.Errorf("mDNS query for %s: %w", serviceType, err)
	}

	select {
	case url := <-found:
		return url, nil
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", fmt.Errorf("no %s service found", serviceType)
	}
}
