// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"net/http"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"cafe-navigator/internal/api/http/middleware"
	"cafe-navigator/internal/app"
	"cafe-navigator/internal/pipeline/query"
	"cafe-navigator/pkg/tracing"

	apihttp "cafe-navigator/internal/api/http"
)

// App API 应用：HTTP 服务 + 查询解析管线
type App struct {
	bootstrap *app.Bootstrap
	server    *http.Server
	tracer    *sdktrace.TracerProvider
}

// NewApp 装配 API 应用
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config

	var tracer *sdktrace.TracerProvider
	if cfg != nil && cfg.Monitoring.Tracing.Enable {
		serviceName := cfg.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "cafe-navigator"
		}
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    serviceName,
			ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
			Insecure:       cfg.Monitoring.Tracing.Insecure,
		})
		if err != nil {
			bootstrap.Logger.Warn("初始化 tracer failed，继续无追踪运行", "error", err)
		} else {
			tracer = tp
		}
	}

	resolver := query.NewResolver(query.ResolverOptions{
		Client:   bootstrap.Client,
		Searcher: bootstrap.Searcher,
		Store:    bootstrap.Store,
		Config:   cfg,
		Logger:   bootstrap.Logger.Named("resolver"),
	})

	handler := apihttp.NewHandler(resolver, bootstrap.Store, bootstrap.Logger.Named("http"))
	router := apihttp.NewRouter(handler, middleware.NewMiddleware(bootstrap.Logger.Named("http")))
	router.SetupRoutes()

	return &App{
		bootstrap: bootstrap,
		server:    &http.Server{Handler: router.Engine()},
		tracer:    tracer,
	}, nil
}

// Run 启动 HTTP 服务，阻塞直到停止
func (a *App) Run(addr string) error {
	a.server.Addr = addr
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)
	return a.server.ListenAndServe()
}

// Shutdown 优雅关闭：HTTP、tracer、存储与缓存
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)

	if a.tracer != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if terr := a.tracer.Shutdown(flushCtx); terr != nil {
			a.bootstrap.Logger.Warn("tracer 关闭failed", "error", terr)
		}
		cancel()
	}
	if a.bootstrap.Store != nil {
		a.bootstrap.Store.Close()
	}
	if a.bootstrap.Cache != nil {
		if cerr := a.bootstrap.Cache.Close(); cerr != nil {
			a.bootstrap.Logger.Warn("缓存关闭failed", "error", cerr)
		}
	}
	return err
}
