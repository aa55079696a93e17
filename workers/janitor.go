package workers

import (
	"log"
	"sync"

	"github.com/camden-git/facesession/database"
)

// Guard runs fn while no session operation is in flight.
type Guard interface {
	Exclusive(fn func() error) error
}

// ArtifactLedger lists and claims artifacts left behind by replaced sessions.
type ArtifactLedger interface {
	Orphans() ([]database.Artifact, error)
	Claim(a database.Artifact) (bool, error)
}

// Remover deletes a stored file.
type Remover interface {
	Delete(fullPath string) error
}

// PurgeStats summarises one purge pass.
type PurgeStats struct {
	Listed  int
	Claimed int
	Deleted int
	Failed  int
}

// Janitor deletes files owned by sessions that have since been replaced.
// Requests are coalesced: at most one purge waits in the queue at a time.
type Janitor struct {
	JobQueue chan struct{}
	Guard    Guard
	Ledger   ArtifactLedger
	Storage  Remover
	Wg       sync.WaitGroup
	StopChan chan struct{}
	stopOnce sync.Once

	// OnPurge, if set, is called after every pass. Used by tests.
	OnPurge func(PurgeStats, error)
}

func NewJanitor(guard Guard, ledger ArtifactLedger, storage Remover, numWorkers int) *Janitor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	j := &Janitor{
		JobQueue: make(chan struct{}, 1),
		Guard:    guard,
		Ledger:   ledger,
		Storage:  storage,
		StopChan: make(chan struct{}),
	}
	j.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go j.worker(i)
	}
	log.Printf("janitor: started %d worker(s)", numWorkers)
	return j
}

func (j *Janitor) worker(id int) {
	defer j.Wg.Done()
	for {
		select {
		case <-j.JobQueue:
			stats, err := j.Purge()
			if err != nil {
				log.Printf("janitor: worker %d purge failed: %v", id, err)
			} else if stats.Listed > 0 {
				log.Printf("janitor: worker %d purged %d of %d orphaned artifact(s), %d failed",
					id, stats.Deleted, stats.Listed, stats.Failed)
			}
			if j.OnPurge != nil {
				j.OnPurge(stats, err)
			}
		case <-j.StopChan:
			log.Printf("janitor: worker %d stopping", id)
			return
		}
	}
}

// RequestPurge schedules a purge pass. It returns false when one is already
// pending or the janitor has stopped.
func (j *Janitor) RequestPurge() bool {
	select {
	case <-j.StopChan:
		return false
	default:
	}
	select {
	case j.JobQueue <- struct{}{}:
		return true
	default:
		return false
	}
}

// Purge runs one pass synchronously. Each artifact is claimed before its file
// is removed, so a path re-recorded by a newer session is left alone.
func (j *Janitor) Purge() (PurgeStats, error) {
	var stats PurgeStats
	err := j.Guard.Exclusive(func() error {
		orphans, err := j.Ledger.Orphans()
		if err != nil {
			return err
		}
		stats.Listed = len(orphans)
		for _, a := range orphans {
			claimed, err := j.Ledger.Claim(a)
			if err != nil {
				log.Printf("janitor: failed to claim %s: %v", a.Path, err)
				stats.Failed++
				continue
			}
			if !claimed {
				continue
			}
			stats.Claimed++
			if err := j.Storage.Delete(a.Path); err != nil {
				log.Printf("janitor: failed to delete %s (%s): %v", a.Path, a.Kind, err)
				stats.Failed++
				continue
			}
			stats.Deleted++
		}
		return nil
	})
	return stats, err
}

func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		log.Println("janitor: stopping...")
		close(j.StopChan)
		j.Wg.Wait()
		log.Println("janitor: all workers stopped")
	})
}
