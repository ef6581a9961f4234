package engine

import (
	"time"

	"github.com/aalhour/lsmkv/internal/logging"
)

// idlePoll is the maximum time the run manager waits between checks
// when no caller has nudged it, as a backstop against a missed signal.
const idlePoll = 50 * time.Millisecond

// runManagerLoop is the single background goroutine responsible for
// flushing and compacting; serializing both through one goroutine
// means flush and compaction of the same level never race each other.
func (e *Engine) runManagerLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-e.wakeCh:
		case <-ticker.C:
		}

		if err := e.maybeFlush(); err != nil {
			e.logger.Errorf("%s%v", logging.NSFlush, err)
			continue
		}
		if err := e.maybeCompact(); err != nil {
			e.logger.Errorf("%s%v", logging.NSCompact, err)
		}
	}
}
