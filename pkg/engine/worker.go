package engine

import (
	"context"
	"time"
)

// summarizeTimeout bounds one background summarization pass, including the
// external generation call.
const summarizeTimeout = 60 * time.Second

// EnqueueSummarize queues a fire-and-forget summarization pass. A full queue
// drops the request: the next turn or the sweep job will re-trigger it, since
// eligibility is monotonic until a summary is created. Safe to call
// concurrently; calls after Close are ignored.
func (e *Engine) EnqueueSummarize(conversationID string) {
	select {
	case <-e.done:
		return
	default:
	}

	select {
	case e.queue <- conversationID:
		e.gaugeQueue()
	default:
		e.logger.Warn("engine: summarize queue full, dropping trigger",
			"conversation", conversationID)
	}
}

// worker drains the summarization queue until Close, then finishes whatever
// is still queued.
func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case conversationID := <-e.queue:
			e.gaugeQueue()
			e.summarizeOne(conversationID)
		case <-e.done:
			for {
				select {
				case conversationID := <-e.queue:
					e.gaugeQueue()
					e.summarizeOne(conversationID)
				default:
					return
				}
			}
		}
	}
}

// summarizeOne runs one background pass for a conversation. Overlapping
// triggers collapse on the per-conversation lock, and eligibility is
// re-checked under it so a queue entry made stale by an earlier pass is a
// no-op. Failures go to the log; nothing propagates to the caller that
// enqueued the trigger.
func (e *Engine) summarizeOne(conversationID string) {
	if !e.tryLock(conversationID) {
		return
	}
	defer e.unlock(conversationID)

	ctx, cancel := context.WithTimeout(context.Background(), summarizeTimeout)
	defer cancel()

	needs, err := e.summarizer.Needs(ctx, conversationID)
	if err != nil {
		e.logger.Warn("engine: summarize eligibility check failed",
			"conversation", conversationID, "error", err)
		return
	}
	if !needs {
		return
	}

	_, outcome, err := e.summarizer.Run(ctx, conversationID)
	e.recordOutcome(outcome)
	if err != nil {
		e.logger.Warn("engine: background summarization failed",
			"conversation", conversationID, "error", err)
	}
}

func (e *Engine) gaugeQueue() {
	if e.metrics != nil {
		e.metrics.SummarizeQueue.Set(float64(len(e.queue)))
	}
}
