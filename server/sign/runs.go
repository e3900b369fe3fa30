package serversign

import (
	"sync"
	"time"

	"github.com/Pjt727/autosign/signin"
	"github.com/Pjt727/autosign/signin/services"
)

const DEFAULT_RUN_EXPIRY = 30 * time.Minute

// browserRun is the run of one browser plus the candidates of its last pending
// decision
type browserRun struct {
	run        *signin.Run
	candidates map[string]services.ScheduleEntry
	expireTime time.Time
}

// runs are in memory as the front-end is only served locally
type runStore struct {
	tokenToRun  map[string]*browserRun
	runDuration time.Duration
	mu          sync.Mutex
}

func newRunStore(runDuration time.Duration) *runStore {
	return &runStore{
		tokenToRun:  make(map[string]*browserRun),
		runDuration: runDuration,
	}
}

func (s *runStore) get(token string) (*browserRun, bool) {
	s.expire()
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.tokenToRun[token]
	if ok {
		run.expireTime = time.Now().Add(s.runDuration)
	}
	return run, ok
}

func (s *runStore) add(token string, run *signin.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenToRun[token] = &browserRun{
		run:        run,
		candidates: make(map[string]services.ScheduleEntry),
		expireTime: time.Now().Add(s.runDuration),
	}
}

func (s *runStore) setCandidates(token string, candidates []services.ScheduleEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.tokenToRun[token]
	if !ok {
		return
	}
	run.candidates = make(map[string]services.ScheduleEntry, len(candidates))
	for _, candidate := range candidates {
		run.candidates[candidate.ScheduleID] = candidate
	}
}

func (s *runStore) candidate(token string, scheduleID string) (services.ScheduleEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.tokenToRun[token]
	if !ok {
		return services.ScheduleEntry{}, false
	}
	entry, ok := run.candidates[scheduleID]
	return entry, ok
}

func (s *runStore) remove(token string) {
	s.mu.Lock()
	run, ok := s.tokenToRun[token]
	delete(s.tokenToRun, token)
	s.mu.Unlock()
	if ok {
		run.run.Close()
	}
}

func (s *runStore) expire() {
	currentTime := time.Now()
	var expired []*browserRun
	s.mu.Lock()
	for token, run := range s.tokenToRun {
		if currentTime.After(run.expireTime) {
			expired = append(expired, run)
			delete(s.tokenToRun, token)
		}
	}
	s.mu.Unlock()
	for _, run := range expired {
		run.run.Close()
	}
}
