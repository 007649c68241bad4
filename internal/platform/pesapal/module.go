package pesapal

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/storepay/internal/platform/gatewayx"
	"github.com/fatflowers/storepay/pkg/config"
)

func New(cfg *config.Config, l *zap.SugaredLogger) *Client {
	return NewClient(cfg.Pesapal, gatewayx.NewClient(ProviderName, cfg.Gateway, l), l)
}

var Module = fx.Options(
	fx.Provide(New),
)
