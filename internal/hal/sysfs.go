package hal

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileADC reads a raw converter count from a sysfs attribute, e.g. an IIO
// channel like /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type FileADC struct {
	Path string
}

func (a *FileADC) ReadRaw() (int, error) {
	b, err := os.ReadFile(a.Path)
	if err != nil {
		return 0, fmt.Errorf("adc %s: %w", a.Path, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("adc %s: bad value: %w", a.Path, err)
	}
	return n, nil
}

// FileEchoPulser reads the last echo round-trip duration in microseconds
// from a sysfs attribute exported by the ranger driver. The driver writes 0
// when the ping timed out with no echo.
type FileEchoPulser struct {
	Path string
}

func (p *FileEchoPulser) EchoMicros() (int, error) {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, fmt.Errorf("echo %s: %w", p.Path, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("echo %s: bad value: %w", p.Path, err)
	}
	return n, nil
}

// SysfsLink observes a kernel-managed network interface through
// /sys/class/net/<iface>. Association itself is owned by the OS
// (wpa_supplicant or wired autoneg); a probe here checks whether the
// interface has come up yet.
type SysfsLink struct {
	Iface string
	// Root overrides /sys/class/net for tests.
	Root string
}

func (l *SysfsLink) root() string {
	if l.Root != "" {
		return l.Root
	}
	return "/sys/class/net"
}

func (l *SysfsLink) TryAssociate() error {
	if l.Associated() {
		return nil
	}
	return fmt.Errorf("link %s: not up", l.Iface)
}

func (l *SysfsLink) Associated() bool {
	b, err := os.ReadFile(filepath.Join(l.root(), l.Iface, "operstate"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(b)) == "up"
}

func (l *SysfsLink) HardwareAddr() (string, error) {
	b, err := os.ReadFile(filepath.Join(l.root(), l.Iface, "address"))
	if err != nil {
		return "", fmt.Errorf("link %s: %w", l.Iface, err)
	}
	addr := strings.TrimSpace(string(b))
	if addr == "" {
		return "", fmt.Errorf("link %s: empty hardware address", l.Iface)
	}
	return addr, nil
}
