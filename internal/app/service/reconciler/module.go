package reconciler

import "go.uber.org/fx"

// Module exposes the reconciler via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
