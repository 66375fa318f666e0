//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/mednat/tandem-extras/internal/biz"
	"github.com/mednat/tandem-extras/internal/conf"
	"github.com/mednat/tandem-extras/internal/data"
	"github.com/mednat/tandem-extras/internal/host"
	"github.com/mednat/tandem-extras/internal/server"
	"github.com/mednat/tandem-extras/internal/service"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Filter, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, host.ProviderSet, service.ProviderSet, newApp))
}

// wireDiagnostics builds the store checker used by the check command.
func wireDiagnostics(*conf.Data, log.Logger) (*biz.Diagnostics, func(), error) {
	panic(wire.Build(data.NewCacheRepo, biz.NewDiagnostics))
}
