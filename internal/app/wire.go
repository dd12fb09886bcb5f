//go:build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/gowvp/sentry/internal/conf"
	"github.com/gowvp/sentry/internal/data"
	"github.com/gowvp/sentry/internal/web/api"
)

func wireApp(bc *conf.Bootstrap) (*App, func(), error) {
	panic(wire.Build(data.ProviderSet, api.ProviderSet, ProviderSet))
}
