package pipeline

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"

	"gong-wizard-go/internal/aggregator"
	"gong-wizard-go/internal/classifier"
	perr "gong-wizard-go/internal/errors"
	"gong-wizard-go/internal/logger"
	"gong-wizard-go/internal/report"
	"gong-wizard-go/internal/runlog"
	"gong-wizard-go/internal/types"
)

// Fetcher yields the calls that started inside a date range. It does not
// filter by product. A fetcher cut short by ctx must end with a partial fetch
// error; a sequence that ends without an error is treated as complete.
type Fetcher interface {
	Calls(ctx context.Context, rng types.DateRange) iter.Seq2[types.Call, error]
}

type Options struct {
	Filter  types.FilterConfig
	Fetcher Fetcher
	// Source names the fetcher in the run ledger, e.g. "gong" or an input path.
	Source  string
	Builder *report.Builder
	// RunLog is optional.
	RunLog  *runlog.Store
	Logger  *logger.Logger
	Timeout time.Duration
	Now     func() time.Time
}

// Result is the outcome of one run. For a partial run the tallies hold what
// was classified before the fetch stopped and the report only carries fetch stats.
type Result struct {
	RunID      string
	Status     runlog.Status
	Calls      *aggregator.Tally
	Utterances *aggregator.Tally
	Included   []aggregator.IncludedCall
	Report     *report.Report
	Err        error
}

func (r *Result) Partial() bool { return r.Status == runlog.StatusPartial }

// Run executes one fetch, classify, aggregate and report pass. Configuration
// problems fail before the fetcher is touched. A fatal fetch error returns no
// report; a cancelled or timed out fetch returns a partial Result together with
// a partial fetch error.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := validate(opts); err != nil {
		return nil, perr.WithStage(err, "configure")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.New()
	}
	builder := opts.Builder
	if builder == nil {
		builder = report.NewBuilder(log)
	}

	rng := opts.Filter.Range()
	res := &Result{RunID: uuid.NewString(), Status: runlog.StatusRunning}
	log = log.Component("pipeline").WithRun(res.RunID)
	started := now()

	if opts.RunLog != nil {
		err := opts.RunLog.Begin(ctx, runlog.Run{
			ID:        res.RunID,
			From:      rng.Start.Format("2006-01-02"),
			To:        rng.End.Format("2006-01-02"),
			Products:  opts.Filter.Products(),
			Source:    opts.Source,
			StartedAt: started,
		})
		if err != nil {
			log.WithError(err).Warn("run ledger unavailable")
		}
	}
	log.WithField("range", rng.String()).WithField("products", opts.Filter.Products()).Info("run started")

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// Classification and aggregation stay on this goroutine; the fetcher may
	// fetch concurrently underneath.
	cls := classifier.New(opts.Filter)
	state := classifier.NewRunState()
	agg := aggregator.New()
	var fetchErr error
	for call, err := range opts.Fetcher.Calls(ctx, rng) {
		if err != nil {
			fetchErr = err
			break
		}
		agg.Observe(call, cls.Classify(state, call))
	}
	res.Calls, res.Utterances, res.Included = agg.Calls, agg.Utterances, agg.IncludedCalls()

	switch {
	case fetchErr == nil:
		res.Status = runlog.StatusComplete
	case perr.IsCode(fetchErr, perr.CodePartialFetch):
		res.Status = runlog.StatusPartial
		res.Err = perr.WithStage(fetchErr, "fetch")
	default:
		res.Status = runlog.StatusFailed
		res.Err = perr.WithStage(fetchErr, "fetch")
	}

	if res.Status != runlog.StatusFailed {
		res.Report = builder.Build(report.Input{
			RunID:       res.RunID,
			Range:       rng,
			Products:    opts.Filter.Products(),
			Calls:       agg.Calls,
			Utterances:  agg.Utterances,
			Included:    res.Included,
			StartedAt:   started,
			CompletedAt: now(),
			Complete:    res.Status == runlog.StatusComplete,
		})
	}

	entry := log.WithField("status", res.Status).
		WithField("calls_total", res.Calls.Total).
		WithField("calls_included", res.Calls.Included).
		WithField("utterances_total", res.Utterances.Total).
		WithField("utterances_included", res.Utterances.Included)
	if res.Err != nil {
		entry.WithField("error", res.Err.Error()).Error("run did not complete")
	} else {
		entry.Info("run finished")
	}

	if opts.RunLog != nil {
		failures := 0
		if res.Report != nil {
			failures = len(res.Report.Failures)
		}
		err := opts.RunLog.Finish(context.WithoutCancel(ctx), res.RunID, runlog.Outcome{
			Status:             res.Status,
			FinishedAt:         now(),
			TotalCalls:         res.Calls.Total,
			IncludedCalls:      res.Calls.Included,
			TotalUtterances:    res.Utterances.Total,
			IncludedUtterances: res.Utterances.Included,
			ArtifactFailures:   failures,
			Err:                res.Err,
		})
		if err != nil {
			log.WithError(err).Warn("run ledger not updated")
		}
	}
	return res, res.Err
}

func validate(opts Options) error {
	if opts.Fetcher == nil {
		return perr.Configf("no fetcher configured")
	}
	if err := opts.Filter.Range().Validate(); err != nil {
		return err
	}
	if len(opts.Filter.Products()) == 0 {
		return perr.Configf("no products selected")
	}
	return nil
}
