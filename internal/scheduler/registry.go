package scheduler

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Registry maps campaign IDs to their live cron entries. It holds at most one
// entry per campaign and is the only in-memory record of which campaigns are
// dispatching; it is rebuilt from campaign status on startup.
type Registry struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	claims  map[string]struct{}
}

// NewCron builds the cron runner shared by the registry and the scheduler's
// housekeeping entries. A panicking job is logged and the runner keeps going;
// a job still running when its next fire comes due is skipped.
func NewCron() *cron.Cron {
	logger := cron.PrintfLogger(log.Default())
	return cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
}

func NewRegistry(c *cron.Cron) *Registry {
	return &Registry{
		cron:    c,
		entries: make(map[string]cron.EntryID),
		claims:  make(map[string]struct{}),
	}
}

// Claim marks campaignID as being started. It returns false if the campaign
// already has an entry or another claim. A successful Register consumes the
// claim; otherwise the claimer must Release it.
func (r *Registry) Claim(campaignID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[campaignID]; ok {
		return false
	}
	if _, ok := r.claims[campaignID]; ok {
		return false
	}
	r.claims[campaignID] = struct{}{}
	return true
}

// Release drops a claim that did not end in Register
func (r *Registry) Release(campaignID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.claims, campaignID)
}

// Register schedules job every interval for campaignID. Returns false and
// changes nothing if the campaign already has an entry.
func (r *Registry) Register(campaignID string, interval time.Duration, job func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[campaignID]; ok {
		return false
	}

	r.entries[campaignID] = r.cron.Schedule(cron.Every(interval), cron.FuncJob(job))
	delete(r.claims, campaignID)
	return true
}

// Remove cancels the campaign's entry. A run already in progress finishes;
// no further runs fire. Returns false if there was no entry.
func (r *Registry) Remove(campaignID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entryID, ok := r.entries[campaignID]
	if !ok {
		return false
	}

	r.cron.Remove(entryID)
	delete(r.entries, campaignID)
	return true
}

func (r *Registry) Has(campaignID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[campaignID]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// IDs returns the registered campaign IDs in sorted order
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Next returns when the campaign's entry fires next. The zero time means no
// entry or a runner that has not started.
func (r *Registry) Next(campaignID string) time.Time {
	r.mu.Lock()
	entryID, ok := r.entries[campaignID]
	r.mu.Unlock()

	if !ok {
		return time.Time{}
	}
	return r.cron.Entry(entryID).Next
}
