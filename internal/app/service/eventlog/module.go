package eventlog

import "go.uber.org/fx"

// Module exposes the event log service via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
