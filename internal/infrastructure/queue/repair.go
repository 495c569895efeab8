package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/planpal/social-system/internal/core/ports"
	"github.com/planpal/social-system/internal/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	jobTimeout     = 10 * time.Second
)

// FriendWriter is the slice of the profile store the repair workers need.
type FriendWriter interface {
	AddFriend(ctx context.Context, id, friendID string) error
}

// Repairer restores symmetry on the friends relation: each job re-applies
// the missing reverse edge with the store's idempotent add-to-set write.
// Jobs are sharded by profile id onto a fixed worker set, so repairs for the
// same profile execute in order.
type Repairer struct {
	workers  []chan ports.RepairJob
	profiles FriendWriter
	log      zerolog.Logger
}

// NewRepairer creates a Repairer with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewRepairer(numWorkers int, profiles FriendWriter, log zerolog.Logger) *Repairer {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	r := &Repairer{
		workers:  make([]chan ports.RepairJob, numWorkers),
		profiles: profiles,
		log:      log,
	}
	for i := range r.workers {
		r.workers[i] = make(chan ports.RepairJob, channelBuffer)
	}
	return r
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// jobs already dequeued still complete, so a caller navigating away does not
// silently lose a pending write.
func (r *Repairer) Start(ctx context.Context) {
	for i, ch := range r.workers {
		go r.runWorker(ctx, i, ch)
	}
}

// Enqueue routes a job to the worker owning its profile id. Non-blocking up
// to channelBuffer capacity.
func (r *Repairer) Enqueue(job ports.RepairJob) {
	idx := r.shardIndex(job.ProfileID)
	r.workers[idx] <- job
	metrics.RepairQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(r.workers[idx])))
}

// shardIndex maps a profile id deterministically to a worker index.
func (r *Repairer) shardIndex(profileID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(profileID))
	return int(h.Sum32()) % len(r.workers)
}

func (r *Repairer) runWorker(ctx context.Context, id int, ch <-chan ports.RepairJob) {
	worker := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			metrics.RepairQueueDepth.WithLabelValues(worker).Set(float64(len(ch)))
			r.execute(job, id)
		}
	}
}

func (r *Repairer) execute(job ports.RepairJob, workerID int) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := r.profiles.AddFriend(ctx, job.ProfileID, job.FriendID); err != nil {
		metrics.RepairsTotal.WithLabelValues("error").Inc()
		r.log.Error().Err(err).
			Str("profile_id", job.ProfileID).
			Str("friend_id", job.FriendID).
			Int("worker_id", workerID).
			Msg("friend edge repair failed")
		return
	}

	metrics.RepairsTotal.WithLabelValues("ok").Inc()
	r.log.Info().
		Str("profile_id", job.ProfileID).
		Str("friend_id", job.FriendID).
		Msg("friend edge repaired")
}
