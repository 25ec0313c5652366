package api

import (
	"fmt"
	"net"
	"os"

	"github.com/songgao/water"
	"github.com/vishvananda/netlink"
)

// TunConfig describes how to create and address a TUN device.
type TunConfig struct {
	Name  string
	MTU   int
	Local net.IP
	Peer  net.IP
}

// TunDevice owns a kernel TUN character device: its fd survives
// transport reconnects and is never closed by the pump or the retry
// supervisor, only by the process shutting the interface down.
type TunDevice struct {
	iface *water.Interface
	file  *os.File

	Name  string
	MTU   int
	Local net.IP
	Peer  net.IP
}

// OpenTun creates (or attaches to) a TUN character device, assigns it
// the local/peer IPv4 addresses and MTU, and brings it up.
func OpenTun(cfg TunConfig) (*TunDevice, error) {
	waterCfg := water.Config{DeviceType: water.TUN}
	waterCfg.Name = cfg.Name

	iface, err := water.New(waterCfg)
	if err != nil {
		return nil, fmt.Errorf("could not open tun device %q: %w", cfg.Name, err)
	}

	file, ok := iface.ReadWriteCloser.(*os.File)
	if !ok {
		_ = iface.Close()
		return nil, fmt.Errorf("tun device %q did not expose a duplicable file descriptor", cfg.Name)
	}

	dev := &TunDevice{
		iface: iface,
		file:  file,
		Name:  iface.Name(),
		MTU:   cfg.MTU,
		Local: cfg.Local,
		Peer:  cfg.Peer,
	}

	if err := dev.configure(); err != nil {
		_ = iface.Close()
		return nil, err
	}

	return dev, nil
}

func (d *TunDevice) configure() error {
	link, err := netlink.LinkByName(d.Name)
	if err != nil {
		return fmt.Errorf("could not find link for tun device %q: %w", d.Name, err)
	}

	if d.MTU > 0 {
		if err := netlink.LinkSetMTU(link, d.MTU); err != nil {
			return fmt.Errorf("could not set mtu %d on %q: %w", d.MTU, d.Name, err)
		}
	}

	addr := &netlink.Addr{
		IPNet: &net.IPNet{IP: d.Local, Mask: net.CIDRMask(32, 32)},
		Peer:  &net.IPNet{IP: d.Peer, Mask: net.CIDRMask(32, 32)},
	}
	if err := netlink.AddrReplace(link, addr); err != nil {
		return fmt.Errorf("could not assign address %s (peer %s) to %q: %w", d.Local, d.Peer, d.Name, err)
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("could not bring up tun device %q: %w", d.Name, err)
	}

	return nil
}

// Reconfigure re-points the peer (destination) address, used when the
// retry supervisor re-runs the handshake after a reconnect. For this
// design the peer address does not change across reconnects, but the
// operation is idempotent and safe to call again regardless.
func (d *TunDevice) Reconfigure(peer net.IP) error {
	d.Peer = peer
	return d.configure()
}

// Fd returns the raw file descriptor for poller registration.
func (d *TunDevice) Fd() int {
	return int(d.file.Fd())
}

// Read delivers exactly one whole IPv4 packet per call, as a TUN
// character device always does.
func (d *TunDevice) Read(buf []byte) (int, error) {
	return d.file.Read(buf)
}

// Write accepts exactly one whole IPv4 packet per call.
func (d *TunDevice) Write(buf []byte) (int, error) {
	return d.file.Write(buf)
}

// Close releases the underlying device.
func (d *TunDevice) Close() error {
	return d.iface.Close()
}
