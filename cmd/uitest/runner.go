package main

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/lifecycle"
	"github.com/ternarybob/uitest/internal/models"
)

// result is the final outcome of one scenario after all attempts
type result struct {
	Name     string
	Outcome  models.TestOutcome
	Attempts int
	Duration time.Duration
}

// runSuite runs every scenario concurrently, one session each, and returns
// results in suite order. A scenario is retried while it fails, up to
// attempts times in total.
func runSuite(ctx context.Context, orch *lifecycle.Orchestrator, suite []scenario, attempts int, logger arbor.ILogger) []result {
	if attempts < 1 {
		attempts = 1
	}

	results := make([]result, len(suite))
	var wg sync.WaitGroup
	for i, sc := range suite {
		common.SafeGo(&wg, logger, "scenario "+sc.Name, func() {
			results[i] = runScenario(ctx, orch, sc, attempts, logger)
		})
	}
	wg.Wait()

	// a scenario whose goroutine panicked outside the lifecycle
	for i := range results {
		if results[i].Name == "" {
			results[i] = result{
				Name:    suite[i].Name,
				Outcome: models.TestOutcome{Status: models.TestStatusFailed, Message: "scenario runner panicked"},
			}
		}
	}
	return results
}

func runScenario(ctx context.Context, orch *lifecycle.Orchestrator, sc scenario, attempts int, logger arbor.ILogger) result {
	start := time.Now()
	res := result{Name: sc.Name}

	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		res.Attempts = attempt

		outcome, err := orch.Execute(ctx, sc.Name, sc.Run)
		res.Outcome = outcome
		if err != nil {
			logger.Error().Err(err).Str("scenario", sc.Name).Int("attempt", attempt).Msg("Harness setup failed")
		}
		if !outcome.Failed() {
			break
		}
		if attempt < attempts {
			logger.Warn().
				Str("scenario", sc.Name).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Str("message", outcome.Message).
				Msg("Scenario failed, retrying")
		}
	}

	res.Duration = time.Since(start)
	return res
}

// summarize counts results by status
func summarize(results []result) map[models.TestStatus]int {
	counts := make(map[models.TestStatus]int, 4)
	for _, r := range results {
		counts[r.Outcome.Status]++
	}
	return counts
}
