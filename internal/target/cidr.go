package target

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/projectdiscovery/mapcidr"
)

// MaxHostBits caps how many addresses a range may expand to (2^MaxHostBits).
const MaxHostBits = 20

// InvalidRangeError reports a CIDR argument that cannot be expanded.
type InvalidRangeError struct {
	Input string
	Err   error
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range %q: %v", e.Input, e.Err)
}

func (e *InvalidRangeError) Unwrap() error { return e.Err }

// ParseCIDR expands a network into one http:// target per usable host
// address. A bare address is treated as a single-host network.
func ParseCIDR(s string) (*List, error) {
	prefix, err := parsePrefix(s)
	if err != nil {
		return nil, &InvalidRangeError{Input: s, Err: err}
	}
	if hostBits := prefix.Addr().BitLen() - prefix.Bits(); hostBits > MaxHostBits {
		return nil, &InvalidRangeError{
			Input: s,
			Err:   fmt.Errorf("range has 2^%d addresses, at most 2^%d supported", hostBits, MaxHostBits),
		}
	}

	ips, err := mapcidr.IPAddresses(prefix.String())
	if err != nil {
		return nil, &InvalidRangeError{Input: s, Err: err}
	}

	hosts := usableHosts(prefix, ips)
	targets := make([]string, 0, len(hosts))
	for _, h := range hosts {
		targets = append(targets, hostURL(h))
	}
	return NewList(prefix.String(), targets), nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Prefix{}, errors.New("empty range")
	}
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return unmap(netip.PrefixFrom(addr, addr.BitLen()))
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	if p.Masked() != p {
		return netip.Prefix{}, fmt.Errorf("%s has host bits set", p)
	}
	return unmap(p)
}

// unmap rewrites an IPv4-mapped IPv6 prefix (::ffff:a.b.c.d/n) as the IPv4
// prefix it covers. mapcidr cannot walk the mapped form.
func unmap(p netip.Prefix) (netip.Prefix, error) {
	if !p.Addr().Is4In6() {
		return p, nil
	}
	if p.Bits() < 96 {
		return netip.Prefix{}, fmt.Errorf("%s spans beyond the IPv4-mapped range", p)
	}
	return netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96), nil
}

// usableHosts drops the network address (and the broadcast address on IPv4)
// unless the prefix is too small to have any: /31 and /32, /127 and /128.
func usableHosts(prefix netip.Prefix, ips []string) []netip.Addr {
	all := prefix.Addr().BitLen()-prefix.Bits() <= 1
	network := prefix.Addr()
	broadcast := lastAddr(prefix)

	hosts := make([]netip.Addr, 0, len(ips))
	for _, s := range ips {
		ip, err := netip.ParseAddr(s)
		if err != nil || !prefix.Contains(ip.Unmap()) {
			continue
		}
		ip = ip.Unmap()
		if !all {
			if ip == network {
				continue
			}
			if ip.Is4() && ip == broadcast {
				continue
			}
		}
		hosts = append(hosts, ip)
	}
	return hosts
}

func lastAddr(prefix netip.Prefix) netip.Addr {
	b := prefix.Addr().AsSlice()
	for i := prefix.Bits(); i < len(b)*8; i++ {
		b[i/8] |= 1 << (7 - uint(i%8))
	}
	addr, _ := netip.AddrFromSlice(b)
	return addr
}

func hostURL(ip netip.Addr) string {
	if ip.Is6() {
		return "http://[" + ip.String() + "]"
	}
	return "http://" + ip.String()
}
