package allocator

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(NewAllocator),
)
