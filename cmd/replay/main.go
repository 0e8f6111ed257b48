package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/robo-predictor/internal/eval"
	"github.com/danielpatrickdp/robo-predictor/internal/journal"
	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
	"github.com/danielpatrickdp/robo-predictor/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to robo journal (DB mode)")
	sessionID := flag.String("session", "", "session id to replay (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") ||
		(*dbPath != "" && *sessionID == "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/robo.db --session <id>")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *sessionID)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region modes

func runDBMode(dbPath, sessionID string) int {
	store, err := journal.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	ctx := context.Background()
	sess, err := store.GetSession(ctx, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get session: %v\n", err)
		return 2
	}
	records, err := store.Steps(ctx, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load steps: %v\n", err)
		return 2
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stderr, "session %s has no steps\n", sessionID)
		return 2
	}

	// The exported fixture carries the journaled predictions as expectations.
	f := replay.ExportFixture("", sess.Capacity, records)
	return run(f)
}

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	return run(f)
}

func run(f *replay.Fixture) int {
	config := f.Config.ToReplayConfig()
	results, final := replay.Replay(f.ToSteps(), config)

	code := printComparison(results, f.Expected)

	summary := replay.Summarize(results, final)
	res := eval.NewEvalHarness(config.EvalConfig).Run(summary.Tally)
	printEval(summary, res)
	if !res.Passed {
		code = 1
	}
	return code
}

// #endregion modes

// #region output

// printComparison outputs a comparison table and returns exit code.
func printComparison(results []replay.StepResult, expected []replay.FixtureExpected) int {
	fmt.Printf("%-6s| %-22s| %-9s| %-9s| %-16s| %s\n", "Step", "Planet", "Expected", "Replayed", "Rule", "Match")
	fmt.Printf("%-6s+%-22s+%-9s+%-9s+%-16s+%s\n",
		"------", "-----------------------", "----------", "----------", "-----------------", "------")

	matches := 0
	for _, e := range expected {
		r := results[e.Index]
		match := "DIFF"
		if predictionsMatch(e, r.Decision) {
			match = "OK"
			matches++
		}
		fmt.Printf("%-6d| %-22d| %-9s| %-9s| %-16s| %s\n",
			e.Index, uint64(r.Step.PlanetID), e.Predicted, r.Decision.Outcome, r.Decision.Rule, match)
	}

	diverge := len(expected) - matches
	fmt.Printf("\nSummary: %d steps, %d compared, %d match, %d diverge\n",
		len(results), len(expected), matches, diverge)

	if diverge > 0 {
		return 1
	}
	return 0
}

// predictionsMatch compares an expectation with a replayed decision. An
// expectation without a rule only checks the outcome.
func predictionsMatch(e replay.FixtureExpected, d predictor.Decision) bool {
	if e.Predicted != d.Outcome {
		return false
	}
	return e.Rule == "" || e.Rule == d.Rule
}

func printEval(s replay.ReplaySummary, res eval.EvalResult) {
	fmt.Printf("Hits: %d/%d (oracle %d/%d)\n", s.Hits, s.Total, s.OracleHits, s.Total)
	fmt.Printf("Tables: singles=%d pairs=%d triples=%d evictions=%d\n",
		s.FinalStats.Singles, s.FinalStats.Pairs, s.FinalStats.Triples, s.FinalStats.Evictions.Total())
	for _, m := range res.Metrics {
		mark := "ok"
		if !m.Pass {
			mark = "FAIL"
		}
		fmt.Printf("  %-30s %.4f %s\n", m.Name, m.Value, mark)
	}
	fmt.Printf("Eval: %s\n", res.Reason)
}

// #endregion output
