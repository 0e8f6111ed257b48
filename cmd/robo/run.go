package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/robo-predictor/internal/oracle"
	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
	"github.com/danielpatrickdp/robo-predictor/internal/session"
)

const runLongDesc string = `Read visits from stdin, one per line:

  <planet_id> <day|night> [guess]

Each line is predicted first and then observed. When the guess is omitted it
is asked from the oracle at --oracle, or --default-guess when none is set or
the oracle fails. Blank lines and lines starting with # are skipped; "quit"
ends the session.`

func newRunCmd(root *roboCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Predict planets read from stdin",
		Long:  runLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := root.load(cmd, map[string]string{
				"oracle":         "oracle.addr",
				"default-guess":  "oracle.default",
				"oracle-timeout": "oracle.timeout",
			})
			if err != nil {
				return err
			}
			return root.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("oracle", "", "Address of a remote oracle service")
	cmd.Flags().String("default-guess", "night", "Guess used without an oracle answer (day|night)")
	cmd.Flags().Duration("oracle-timeout", 2*time.Second, "Timeout for one oracle call")

	return cmd
}

func (c *roboCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	store, err := c.openJournal()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	def := c.cfg.Oracle.DefaultGuess()
	var guesser oracle.Oracle = oracle.Static(def)
	if c.cfg.Oracle.Addr != "" {
		client, err := oracle.NewClient(c.cfg.Oracle.Addr)
		if err != nil {
			return err
		}
		defer client.Close()
		guesser = oracle.WithFallback(client, def, c.logger)
		c.logger.Info("using remote oracle", "addr", c.cfg.Oracle.Addr)
	}

	mgr := session.NewManager(
		session.Config{Capacity: c.cfg.Capacity.PredictorCapacity()},
		session.WithJournal(store),
		session.WithLogger(c.logger),
	)
	r := &runner{
		sessions: mgr,
		oracle:   guesser,
		timeout:  c.cfg.Oracle.Timeout,
		logger:   c.logger,
	}
	return r.loop(ctx, in, out)
}

// #region runner
type runner struct {
	sessions *session.Manager
	oracle   oracle.Oracle
	timeout  time.Duration
	logger   *slog.Logger
}

type visit struct {
	planet predictor.PlanetID
	actual predictor.Outcome
	guess  *predictor.Outcome
}

func (r *runner) loop(ctx context.Context, in io.Reader, out io.Writer) error {
	sess, err := r.sessions.Open(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "session %s\n", sess.ID)

	var steps, hits, oracleHits int
	scanner := bufio.NewScanner(in)
	lineNum := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		v, err := parseVisit(line)
		if err != nil {
			r.logger.Warn("skipping line", "line", lineNum, "error", err)
			continue
		}

		guess, err := r.guess(ctx, v)
		if err != nil {
			r.logger.Warn("oracle error", "planet", uint64(v.planet), "error", err)
			continue
		}

		d, err := r.sessions.Predict(ctx, sess.ID, v.planet, guess)
		if err != nil {
			return err
		}
		rec, err := r.sessions.Observe(ctx, sess.ID, v.planet, v.actual)
		if err != nil {
			return err
		}

		steps++
		if rec.Hit() {
			hits++
		}
		if guess == v.actual {
			oracleHits++
		}
		fmt.Fprintf(out, "[%d] planet=%d guess=%s predicted=%s rule=%s actual=%s hit=%t\n",
			rec.Index, uint64(v.planet), guess, d.Outcome, d.Rule, v.actual, rec.Hit())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	stats, err := r.sessions.Stats(sess.ID)
	if err != nil {
		return err
	}
	if err := r.sessions.Close(ctx, sess.ID); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nSummary: %d steps, %d hits, %d oracle hits\n", steps, hits, oracleHits)
	fmt.Fprintf(out, "Tables: singles=%d pairs=%d triples=%d evictions=%d (~%d bytes)\n",
		stats.Singles, stats.Pairs, stats.Triples, stats.Evictions.Total(), predictor.EstimatedBytes(stats))
	return nil
}

func (r *runner) guess(ctx context.Context, v visit) (predictor.Outcome, error) {
	if v.guess != nil {
		return *v.guess, nil
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.oracle.Guess(ctx, v.planet)
}

// parseVisit reads "<planet_id> <outcome> [guess]".
func parseVisit(line string) (visit, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 3 {
		return visit{}, fmt.Errorf("want <planet_id> <day|night> [guess], got %q", line)
	}

	id, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return visit{}, fmt.Errorf("planet id: %w", err)
	}
	actual, err := predictor.ParseOutcome(fields[1])
	if err != nil {
		return visit{}, err
	}

	v := visit{planet: predictor.PlanetID(id), actual: actual}
	if len(fields) == 3 {
		g, err := predictor.ParseOutcome(fields[2])
		if err != nil {
			return visit{}, fmt.Errorf("guess: %w", err)
		}
		v.guess = &g
	}
	return v, nil
}

// #endregion runner
