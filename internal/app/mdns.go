package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsServiceType = "_beaconwatch._tcp"
	mdnsDomain      = "local."
)

// startMDNS advertises the webhook endpoint so gateways on the LAN can find it.
func (a *App) startMDNS(port int) error {
	if port <= 0 {
		return fmt.Errorf("invalid port %d", port)
	}

	a.stopMDNS()

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "beaconwatch"
	}

	instance := mdnsInstanceName(fmt.Sprintf("BeaconWatch (%s)", hostname))

	server, err := zeroconf.Register(instance, mdnsServiceType, mdnsDomain, port, mdnsTXT(port, mdnsHostLabel(hostname), a.cfg.MQTTBroker != ""), nil)
	if err != nil {
		return fmt.Errorf("register mdns service: %w", err)
	}

	a.mdns = server
	a.logger.Info("mDNS advertisement started", "instance", instance, "port", port)
	return nil
}

func (a *App) stopMDNS() {
	if a.mdns == nil {
		return
	}

	a.mdns.Shutdown()
	a.logger.Info("mDNS advertisement stopped")
	a.mdns = nil
}

func mdnsTXT(port int, host string, mqtt bool) []string {
	if !strings.Contains(host, ".") {
		host += ".local"
	}
	txt := []string{
		fmt.Sprintf("http_port=%d", port),
		"webhook=/flespi",
		"data=/data",
		"proto=v1",
		fmt.Sprintf("host=%s", host),
	}
	if mqtt {
		txt = append(txt, "mqtt=1")
	}
	return txt
}

func mdnsInstanceName(name string) string {
	cleaned := strings.NewReplacer("\n", " ", "\r", " ", ".", " ", "_", " ").Replace(strings.TrimSpace(name))
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		cleaned = "BeaconWatch"
	}
	return truncateRunes(cleaned, 63)
}

func mdnsHostLabel(name string) string {
	cleaned := strings.TrimSpace(strings.ToLower(name))
	cleaned = strings.NewReplacer(" ", "-", "_", "-", "\n", "", "\r", "").Replace(cleaned)
	if cleaned == "" {
		cleaned = "beaconwatch"
	}
	// DNS labels are limited to 63 characters.
	return truncateRunes(cleaned, 63)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
