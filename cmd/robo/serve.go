package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/robo-predictor/internal/metrics"
	"github.com/danielpatrickdp/robo-predictor/internal/rpc"
	"github.com/danielpatrickdp/robo-predictor/internal/session"
)

const serveLongDesc string = `Run the Predictor gRPC service. Every client session gets its own
predictor. Prometheus metrics are served on --metrics-listen at /metrics
(empty disables).`

func newServeCmd(root *roboCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the predictor gRPC service",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := root.load(cmd, map[string]string{
				"listen":         "server.listen",
				"metrics-listen": "server.metrics_listen",
			})
			if err != nil {
				return err
			}
			return root.serve(cmd.Context())
		},
	}

	cmd.Flags().StringP("listen", "l", "localhost:50061", "Address for the gRPC service to listen on")
	cmd.Flags().StringP("metrics-listen", "m", "localhost:9161", "Address for /metrics to listen on")

	return cmd
}

func (c *roboCommander) serve(ctx context.Context) error {
	store, err := c.openJournal()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	recorder := metrics.NewPrometheus()
	capacity := c.cfg.Capacity.PredictorCapacity()
	mgr := session.NewManager(
		session.Config{Capacity: capacity},
		session.WithJournal(store),
		session.WithLogger(c.logger),
		session.WithMetrics(recorder),
	)

	lis, err := net.Listen("tcp", c.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.cfg.Server.Listen, err)
	}
	srv := grpc.NewServer()
	rpc.Register(srv, mgr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(lis); err != nil {
			return fmt.Errorf("grpc server error: %w", err)
		}
		return nil
	})
	c.logger.Info("starting predictor service",
		"listen", c.cfg.Server.Listen,
		"singles", capacity.Singles, "pairs", capacity.Pairs, "triples", capacity.Triples)

	var metricsSrv *http.Server
	if c.cfg.Server.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", recorder.Handler())
		metricsSrv = &http.Server{
			Addr:              c.cfg.Server.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
		c.logger.Info("starting metrics server", "listen", c.cfg.Server.MetricsListen)
	}

	g.Go(func() error {
		<-ctx.Done()
		c.logger.Info("shutting down")
		srv.GracefulStop()
		if metricsSrv == nil {
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	return ignoreCanceled(g.Wait())
}

// ignoreCanceled treats a canceled context as a clean shutdown.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
