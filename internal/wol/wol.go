// Package wol sends Wake-on-LAN magic packets to managed devices once
// utility power is back, so machines the pre-shutdown hooks powered off
// come back without operator intervention.
package wol

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/upsguard/upsguard/internal/config"
	"github.com/upsguard/upsguard/pkg/logger"
	"go.uber.org/zap"
)

// sendAttempts is how many times each magic packet is sent. UDP broadcast
// is fire-and-forget; repeating the send covers a dropped datagram.
const (
	sendAttempts = 3
	sendDelay    = 2 * time.Second
)

// MagicPacket builds the standard wake frame for a MAC address: 6 bytes of
// 0xFF followed by the MAC repeated 16 times. Accepts colon, dash, and dot
// separators.
func MagicPacket(macAddress string) ([]byte, error) {
	clean := strings.NewReplacer(":", "", "-", "", ".", "").Replace(macAddress)
	if len(clean) != 12 {
		return nil, fmt.Errorf("invalid MAC address format: %s", macAddress)
	}
	mac, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid MAC address %s: %w", macAddress, err)
	}

	packet := make([]byte, 0, 6+16*6)
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xFF)
	}
	for i := 0; i < 16; i++ {
		packet = append(packet, mac...)
	}
	return packet, nil
}

// Waker sends wake packets for the configured device list.
type Waker struct {
	cfg config.WOLConfig
}

func NewWaker(cfg config.WOLConfig) *Waker {
	return &Waker{cfg: cfg}
}

// WakeAll sends a magic packet to every configured MAC address, repeating
// each send a few times. Per-device failures are logged and skipped; one
// unreachable device must not block the rest.
func (w *Waker) WakeAll() {
	if !w.cfg.Enabled || len(w.cfg.MacAddresses) == 0 {
		return
	}
	for _, mac := range w.cfg.MacAddresses {
		if err := w.wake(mac); err != nil {
			logger.Warn("wake-on-lan send failed", zap.String("mac", mac), zap.Error(err))
			continue
		}
		logger.Info("wake-on-lan packet sent", zap.String("mac", mac))
	}
}

func (w *Waker) wake(macAddress string) error {
	packet, err := MagicPacket(macAddress)
	if err != nil {
		return err
	}

	broadcast := w.cfg.BroadcastAddress
	if broadcast == "" {
		broadcast = "255.255.255.255"
	}
	port := w.cfg.Port
	if port <= 0 {
		port = 9
	}
	addr := net.JoinHostPort(broadcast, strconv.Itoa(port))

	conn, err := net.Dial("udp", addr)
	if err != nil {
		return fmt.Errorf("wol dial failed: %w", err)
	}
	defer conn.Close()

	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if _, err := conn.Write(packet); err != nil {
			return fmt.Errorf("wol send failed on attempt %d: %w", attempt, err)
		}
		if attempt < sendAttempts {
			time.Sleep(sendDelay)
		}
	}
	return nil
}
