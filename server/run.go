// Copyright 2025 ActiveStore
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

package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"activestore/proxy/shared/logger"
	"activestore/proxy/upstream"
)

// Run builds the proxy from configuration and serves until SIGINT or
// SIGTERM. Configuration is read from the file named by ACTIVESTORE_CONFIG,
// when set, with environment variables taking precedence.
func Run() error {
	log := logger.New("proxy")

	cfg, err := LoadConfig(os.Getenv("ACTIVESTORE_CONFIG"))
	if err != nil {
		return err
	}

	client := upstream.NewClient(upstream.Options{
		HTTPClient: &http.Client{Timeout: cfg.UpstreamTimeout},
		Region:     cfg.Region,
	})
	handler := NewHandler(cfg, client, log)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler.Middleware(c.Handler(router)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("", "proxy listening", map[string]interface{}{
			"addr":        cfg.ListenAddr,
			"s3_endpoint": cfg.S3Endpoint,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("", "shutting down", map[string]interface{}{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
