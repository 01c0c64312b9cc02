/*
   Copyright 2022 The StratusLab pdisk Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/stratuslab/pdisk"
	"github.com/stratuslab/pdisk/pkg/configuration"
	"github.com/stratuslab/pdisk/pkg/dispatcher"
	"github.com/stratuslab/pdisk/pkg/metrics"
	"github.com/stratuslab/pdisk/utils/log"
)

var serveConfig struct {
	listenAddr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve persistent disk actions over HTTP",
	Long: `serve exposes the backend actions as an HTTP API:

  POST /luns/:id/:action   {"size": 100, "newVolumeId": "...", "proxy": "..."}
  GET  /operations         journal of past operations (needs journal_path)
  GET  /healthz
  GET  /metrics

The configuration file is watched and reloaded on change.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfig.listenAddr, "listen", pdisk.DefaultListenAddr, "Listen address of the HTTP API")
	rootCmd.AddCommand(serveCmd)
}

func printWelcome(cfg *configuration.Config) {
	log.Info("-------- Welcome to use pdisk backend server --------")
	log.Infof("Git Commit ID : %s", commit())
	log.Infof("config file : %s", cfg.Path)
	log.Infof("iscsi proxies : %v", cfg.Main.ISCSIProxies)
	log.Info("------------------------------------")
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	printWelcome(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := []dispatcher.Option{dispatcher.WithMetrics(metrics.NewMetrics(reg))}

	repo, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if repo != nil {
		defer repo.Close()
		opts = append(opts, dispatcher.WithJournal(repo))
	}

	d := dispatcher.New(cfg, opts...)
	cfg.Watch(func(next *configuration.Config) {
		log.Infof("Reloading backends, iscsi proxies : %v", next.Main.ISCSIProxies)
		d.Reload(next)
	})

	server := newHttpServer(d, repo, reg)
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", serveConfig.listenAddr)
		errCh <- server.e.Start(serveConfig.listenAddr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Shutting down the HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.e.Shutdown(shutdownCtx)
	}
}
