package mpesa

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/storepay/internal/platform/gatewayx"
	"github.com/fatflowers/storepay/pkg/config"
)

// New builds the client from application config; credentials never leave the client.
func New(cfg *config.Config, l *zap.SugaredLogger) *Client {
	return NewClient(cfg.Mpesa, gatewayx.NewClient(ProviderName, cfg.Gateway, l), l)
}

var Module = fx.Options(
	fx.Provide(New),
)
