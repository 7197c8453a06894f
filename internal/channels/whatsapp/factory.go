package whatsapp

import (
	"fmt"

	"github.com/nextlevelbuilder/hrdesk/internal/channels"
	"github.com/nextlevelbuilder/hrdesk/internal/config"
)

// New builds the transport selected by cfg.Transport. inbound receives
// webhook bodies relayed by the bridge; the cloud transport ignores it.
func New(cfg config.WhatsAppConfig, inbound InboundFunc) (channels.Channel, error) {
	switch cfg.Transport {
	case "", "cloud":
		c, err := NewCloud(CloudOptions{
			BaseURL:       cfg.APIBaseURL,
			Version:       cfg.APIVersion,
			PhoneNumberID: cfg.PhoneNumberID,
			AccessToken:   cfg.AccessToken,
			SendRate:      cfg.SendRate,
			SendBurst:     cfg.SendBurst,
			Timeout:       config.Duration(cfg.Timeout, 0),
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "bridge":
		b, err := NewBridge(cfg.BridgeURL, inbound)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown whatsapp transport %q", cfg.Transport)
	}
}
