package orchestrator

import (
	"context"
	"time"

	"playercore/internal/events"
	"playercore/internal/transport"
)

const (
	statsFlushJobName = "stats-flush"
	statsFlushInterval = 5 * time.Minute
)

// startStatsFlush registers the periodic job that batches queued
// StatRecord/LogRecord values to the CMS, the way the teacher's cluster
// forwarders drain a buffered channel on a timer rather than submitting
// on every single record.
func (o *Orchestrator) startStatsFlush(ctx context.Context) error {
	return o.scheduler.AddDurationJob(statsFlushJobName, statsFlushInterval, func() {
		o.flushStats(context.WithoutCancel(ctx))
	})
}

// flushStats submits every queued stat and log record in one batch each,
// and reports current-layout status alongside them. Queued records stay
// queued on failure so the next tick retries them.
func (o *Orchestrator) flushStats(ctx context.Context) {
	if stats := o.state.DrainStats(); len(stats) > 0 {
		o.emit(events.Event{Kind: events.KindSubmitStatsRequest})
		if err := o.transport.SubmitStats(ctx, stats); err != nil {
			o.logger.Warn("submit stats failed", "error", err)
			for _, s := range stats {
				o.state.QueueStat(s)
			}
		}
	}

	if logs := o.state.DrainLogs(); len(logs) > 0 {
		if err := o.transport.SubmitLog(ctx, logs); err != nil {
			o.logger.Warn("submit log failed", "error", err)
			for _, l := range logs {
				o.state.QueueLog(l)
			}
		}
	}

	report := transport.StatusReport{At: time.Now()}
	if id, ok := o.state.CurrentLayout(); ok {
		report.CurrentLayout = &id
	}
	if err := o.transport.NotifyStatus(ctx, report); err != nil {
		o.emit(events.Event{Kind: events.KindStatusNotifyFailed, Err: err})
		return
	}
	o.emit(events.Event{Kind: events.KindStatusNotified})
}
