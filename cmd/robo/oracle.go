package main

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/robo-predictor/internal/oracle"
)

const oracleLongDesc string = `Serve the Oracle gRPC service that "robo run --oracle" asks for guesses.

With --table the answers come from a JSON, YAML or TOML file:
  {"default": "night", "guesses": {"42": "day"}}
and --watch reloads it whenever it changes. Otherwise every guess is
--default-guess.`

type oracleCommander struct {
	table string
	watch bool
}

func newOracleCmd(root *roboCommander) *cobra.Command {
	cmder := &oracleCommander{}

	cmd := &cobra.Command{
		Use:   "oracle",
		Short: "Serve a static or table-driven oracle",
		Long:  oracleLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := root.load(cmd, map[string]string{
				"listen":        "oracle.listen",
				"default-guess": "oracle.default",
			})
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), root)
		},
	}

	cmd.Flags().StringP("listen", "l", "localhost:50062", "Address for the oracle to listen on")
	cmd.Flags().String("default-guess", "night", "Answer when no table is given (day|night)")
	cmd.Flags().StringVarP(&cmder.table, "table", "t", "", "Table of per-planet answers (.json, .yaml, .toml)")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Reload the table when the file changes")

	return cmd
}

func (c *oracleCommander) run(ctx context.Context, root *roboCommander) error {
	logger := root.logger
	g, ctx := errgroup.WithContext(ctx)

	var o oracle.Oracle = oracle.Static(root.cfg.Oracle.DefaultGuess())
	switch {
	case c.table != "" && c.watch:
		r, err := oracle.NewReloadable(c.table, logger)
		if err != nil {
			return err
		}
		defer r.Close()
		g.Go(func() error { return r.Watch(ctx) })
		o = r
		logger.Info("watching oracle table", "path", c.table, "entries", len(r.Table().Guesses))
	case c.table != "":
		t, err := oracle.LoadTable(c.table)
		if err != nil {
			return err
		}
		o = t
		logger.Info("loaded oracle table", "path", c.table, "entries", len(t.Guesses), "default", t.Default.String())
	}

	lis, err := net.Listen("tcp", root.cfg.Oracle.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", root.cfg.Oracle.Listen, err)
	}
	srv := grpc.NewServer()
	oracle.Register(srv, o)

	g.Go(func() error {
		if err := srv.Serve(lis); err != nil {
			return fmt.Errorf("oracle server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down oracle")
		srv.GracefulStop()
		return nil
	})
	logger.Info("starting oracle", "listen", root.cfg.Oracle.Listen)

	return ignoreCanceled(g.Wait())
}
