package output

import (
	"fmt"
	"time"

	"github.com/dixieflatline76/Jitter/util/log"
	"github.com/robfig/cron/v3"
)

// DefaultPruneSchedule sweeps the output directory once an hour.
const DefaultPruneSchedule = "@every 1h"

// Janitor prunes expired outputs on a cron schedule.
type Janitor struct {
	files  *FileManager
	maxAge time.Duration
	cron   *cron.Cron
}

// NewJanitor creates a janitor that removes outputs older than maxAge.
func NewJanitor(files *FileManager, maxAge time.Duration) *Janitor {
	return &Janitor{
		files:  files,
		maxAge: maxAge,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start runs one sweep right away and then on schedule (standard cron syntax
// or descriptors such as "@every 30m"). A zero retention disables the janitor.
func (j *Janitor) Start(schedule string) error {
	if j.maxAge <= 0 {
		log.Print("Output retention disabled, outputs are kept forever")
		return nil
	}
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}

	go j.Sweep()
	j.cron.Start()
	log.Printf("Pruning outputs older than %s (%s)", j.maxAge, schedule)
	return nil
}

// Sweep prunes once.
func (j *Janitor) Sweep() {
	j.files.Prune(j.maxAge)
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
