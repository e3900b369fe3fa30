package signin

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Pjt727/autosign/signin/services"
	log "github.com/sirupsen/logrus"
)

// Service is everything a portal has to offer for a run.
type Service interface {
	Authenticate(ctx context.Context, creds services.Credentials) (*services.Session, error)
	ResolveProfile(ctx context.Context, session *services.Session) (services.Profile, error)
	ActiveTerm(ctx context.Context, session *services.Session, profileID string) (services.Term, error)
	Courses(ctx context.Context, session *services.Session, profileID string, termCode string) ([]services.Course, error)
	Schedules
	Submitter
}

// Run is one authenticated pass over the portal. Its session is used by one
// call at a time.
type Run struct {
	mu      sync.Mutex
	Session *services.Session
	Profile services.Profile
	Term    services.Term
	Courses []services.Course
}

// FindCourse matches a course by id or case insensitive name.
func (r *Run) FindCourse(query string) (services.Course, bool) {
	query = strings.TrimSpace(query)
	for _, course := range r.Courses {
		if course.ID == query {
			return course, true
		}
	}
	for _, course := range r.Courses {
		if strings.EqualFold(course.Name, query) {
			return course, true
		}
	}
	return services.Course{}, false
}

func (r *Run) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Session.Discard()
}

type Orchestrator struct {
	service Service
	engine  *Engine
	logger  *log.Entry
}

func NewOrchestrator(service Service, logger *log.Entry, opts ...EngineOption) *Orchestrator {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	// the portal's zone goes first so an explicit WithLocation still wins
	if located, ok := service.(interface{ Location() *time.Location }); ok {
		opts = append([]EngineOption{WithLocation(located.Location())}, opts...)
	}
	return &Orchestrator{
		service: service,
		engine:  NewEngine(service, service, logger, opts...),
		logger:  logger,
	}
}

// Start authenticates and resolves everything a sign-in needs. Any failure drops
// the session, the caller starts over with a new Start.
func (o *Orchestrator) Start(ctx context.Context, creds services.Credentials) (*Run, error) {
	logger := o.logger.WithField("job", "start")
	session, err := o.service.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}
	run := &Run{Session: session}

	run.Profile, err = o.service.ResolveProfile(ctx, session)
	if err != nil {
		session.Discard()
		return nil, err
	}
	run.Term, err = o.service.ActiveTerm(ctx, session, run.Profile.ID)
	if err != nil {
		session.Discard()
		return nil, err
	}
	run.Courses, err = o.service.Courses(ctx, session, run.Profile.ID, run.Term.Code)
	if err != nil {
		session.Discard()
		return nil, err
	}

	logger.WithFields(log.Fields{
		"name":    run.Profile.DisplayName,
		"term":    run.Term.Name,
		"courses": len(run.Courses),
	}).Info("Ready to sign in")
	return run, nil
}

func (o *Orchestrator) Sign(ctx context.Context, run *Run, courseID string) (Outcome, error) {
	run.mu.Lock()
	defer run.mu.Unlock()
	return o.engine.Run(ctx, run.Session, run.Profile, courseID)
}

func (o *Orchestrator) SignMakeup(ctx context.Context, run *Run, entry services.ScheduleEntry) (Outcome, error) {
	run.mu.Lock()
	defer run.mu.Unlock()
	return o.engine.SignMakeup(ctx, run.Session, run.Profile, entry)
}
