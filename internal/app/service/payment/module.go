package payment

import (
	"go.uber.org/fx"

	"github.com/fatflowers/storepay/internal/platform/mpesa"
	"github.com/fatflowers/storepay/internal/platform/pesapal"
)

var Module = fx.Options(
	fx.Provide(
		func(c *mpesa.Client) MpesaGateway { return c },
		func(c *pesapal.Client) PesapalGateway { return c },
		NewCallbackSigner,
		NewService,
	),
)
