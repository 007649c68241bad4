package reconcile

import (
	"go.uber.org/fx"

	"github.com/fatflowers/storepay/internal/platform/mpesa"
	"github.com/fatflowers/storepay/internal/platform/pesapal"
)

var Module = fx.Module("reconcile",
	fx.Provide(
		func(c *mpesa.Client) MpesaQuerier { return c },
		func(c *pesapal.Client) PesapalQuerier { return c },
		NewService,
	),
)

// JobModule starts the periodic sweep. Only the API process includes it.
var JobModule = fx.Module("reconcile_job",
	fx.Provide(NewJob),
	fx.Invoke(registerJob),
)
