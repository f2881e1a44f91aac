//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideMetrics,
	ProvideFetcher,
	ProvideClient,
	wire.Struct(new(App), "*"),
)

func InitializeApp(path ConfigPath) (*App, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
