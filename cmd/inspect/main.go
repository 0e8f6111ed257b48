package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/robo-predictor/internal/journal"
	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to robo journal")
	last := flag.Int("last", 20, "show N most recent sessions")
	sessionID := flag.String("session", "", "show single session detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/robo.db [--last N] [--session id] [--json]")
		os.Exit(2)
	}

	store, err := journal.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if *sessionID != "" {
		err = runDetailMode(ctx, store, *sessionID, *jsonOut)
	} else {
		err = runListMode(ctx, store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	SessionID  string             `json:"session_id"`
	Capacity   predictor.Capacity `json:"capacity"`
	Steps      int                `json:"steps"`
	Predicted  int                `json:"predicted"`
	Hits       int                `json:"hits"`
	OracleHits int                `json:"oracle_hits"`
	Accuracy   *float64           `json:"accuracy,omitempty"`
	CreatedAt  string             `json:"created_at"`
	Closed     bool               `json:"closed"`
}

func runListMode(ctx context.Context, store *journal.Store, last int, jsonOut bool) error {
	sessions, err := store.ListSessions(ctx, last)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}

	// Store returns DESC, reverse for chronological
	rows := make([]listRow, len(sessions))
	for i, s := range sessions {
		r := listRow{
			SessionID:  s.SessionID,
			Capacity:   s.Capacity,
			Steps:      s.Steps,
			Predicted:  s.Predicted,
			Hits:       s.Hits,
			OracleHits: s.OracleHits,
			CreatedAt:  s.CreatedAt.Format("2006-01-02T15:04:05Z"),
			Closed:     s.ClosedAt != nil,
		}
		if s.Predicted > 0 {
			acc := float64(s.Hits) / float64(s.Predicted)
			r.Accuracy = &acc
		}
		rows[len(sessions)-1-i] = r
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %6s  %6s  %8s  %-8s  %-7s  %s\n",
		"Session", "Steps", "Hits", "Accuracy", "Capacity", "State", "Created")
	fmt.Printf("%-10s+-%6s+-%6s+-%8s+-%-8s+-%-7s+-%s\n",
		"----------", "------", "------", "--------", "--------", "-------", "--------------------")
	for _, r := range rows {
		acc := "-"
		if r.Accuracy != nil {
			acc = fmt.Sprintf("%.4f", *r.Accuracy)
		}
		state := "open"
		if r.Closed {
			state = "closed"
		}
		fmt.Printf("%-10s  %6d  %6d  %8s  %-8s  %-7s  %s\n",
			shortID(r.SessionID), r.Steps, r.Hits, acc, capacityLabel(r.Capacity), state, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailStep struct {
	Index         int                `json:"index"`
	PlanetID      uint64             `json:"planet_id"`
	ExternalGuess *predictor.Outcome `json:"external_guess,omitempty"`
	Predicted     *predictor.Outcome `json:"predicted,omitempty"`
	Rule          predictor.Rule     `json:"rule,omitempty"`
	Actual        predictor.Outcome  `json:"actual"`
	Hit           bool               `json:"hit"`
}

type detailOutput struct {
	SessionID  string             `json:"session_id"`
	Capacity   predictor.Capacity `json:"capacity"`
	CreatedAt  string             `json:"created_at"`
	ClosedAt   string             `json:"closed_at,omitempty"`
	Predicted  int                `json:"predicted"`
	Hits       int                `json:"hits"`
	OracleHits int                `json:"oracle_hits"`
	Steps      []detailStep       `json:"steps"`
}

func runDetailMode(ctx context.Context, store *journal.Store, sessionID string, jsonOut bool) error {
	sess, err := store.Summary(ctx, sessionID)
	if err != nil {
		return err
	}
	records, err := store.Steps(ctx, sessionID)
	if err != nil {
		return err
	}

	out := detailOutput{
		SessionID:  sess.SessionID,
		Capacity:   sess.Capacity,
		CreatedAt:  sess.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Predicted:  sess.Predicted,
		Hits:       sess.Hits,
		OracleHits: sess.OracleHits,
		Steps:      make([]detailStep, len(records)),
	}
	if sess.ClosedAt != nil {
		out.ClosedAt = sess.ClosedAt.Format("2006-01-02T15:04:05Z")
	}
	for i, r := range records {
		out.Steps[i] = detailStep{
			Index:     r.Index,
			PlanetID:  uint64(r.PlanetID),
			Predicted: r.Predicted,
			Rule:      r.Rule,
			Actual:    r.Actual,
			Hit:       r.Hit(),
		}
		if r.Predicted != nil {
			guess := r.ExternalGuess
			out.Steps[i].ExternalGuess = &guess
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Session:  %s\n", out.SessionID)
	fmt.Printf("Capacity: %s\n", capacityLabel(out.Capacity))
	fmt.Printf("Created:  %s\n", out.CreatedAt)
	if out.ClosedAt != "" {
		fmt.Printf("Closed:   %s\n", out.ClosedAt)
	}
	fmt.Printf("Hits:     %d/%d predicted (oracle %d/%d steps)\n",
		out.Hits, out.Predicted, out.OracleHits, len(out.Steps))
	fmt.Println()

	fmt.Printf("%-6s| %-22s| %-6s| %-9s| %-16s| %-6s| %s\n", "Step", "Planet", "Guess", "Predicted", "Rule", "Actual", "Hit")
	for _, s := range out.Steps {
		guess, pred := "-", "-"
		if s.ExternalGuess != nil {
			guess = s.ExternalGuess.String()
		}
		if s.Predicted != nil {
			pred = s.Predicted.String()
		}
		rule := string(s.Rule)
		if rule == "" {
			rule = "-"
		}
		fmt.Printf("%-6d| %-22d| %-6s| %-9s| %-16s| %-6s| %t\n",
			s.Index, s.PlanetID, guess, pred, rule, s.Actual, s.Hit)
	}
	return nil
}

// #endregion detail-mode

// #region helpers

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func capacityLabel(c predictor.Capacity) string {
	if c.Unbounded() {
		return "unbounded"
	}
	return fmt.Sprintf("%d/%d/%d", c.Singles, c.Pairs, c.Triples)
}

// #endregion helpers
