package config

import (
	"net"
	"strings"
)

// cgnatBlock is 100.64.0.0/10. Cloudflare WARP, Tailscale and carrier grade
// NATs hand out addresses from it; direct P2P through them usually fails.
var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

var tunnelNameHints = []string{"tun", "tap", "wg", "ppp", "warp"}

type netInterface struct {
	name     string
	up       bool
	loopback bool
	addrs    []net.IP
}

func systemInterfaces() []netInterface {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	out := make([]netInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		ni := netInterface{
			name:     iface.Name,
			up:       iface.Flags&net.FlagUp != 0,
			loopback: iface.Flags&net.FlagLoopback != 0,
		}
		addrs, err := iface.Addrs()
		if err == nil {
			for _, addr := range addrs {
				switch v := addr.(type) {
				case *net.IPNet:
					ni.addrs = append(ni.addrs, v.IP)
				case *net.IPAddr:
					ni.addrs = append(ni.addrs, v.IP)
				}
			}
		}
		out = append(out, ni)
	}
	return out
}

// restrictedNetwork reports whether any active interface looks like a VPN
// tunnel or carries a CGNAT address.
func restrictedNetwork(ifaces []netInterface) bool {
	for _, iface := range ifaces {
		if !iface.up || iface.loopback {
			continue
		}

		name := strings.ToLower(iface.name)
		for _, hint := range tunnelNameHints {
			if strings.Contains(name, hint) {
				return true
			}
		}

		for _, ip := range iface.addrs {
			if cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}
