package signin

import (
	"context"
	"errors"
	"time"

	"github.com/Pjt727/autosign/signin/services"
	log "github.com/sirupsen/logrus"
)

const (
	// classes may be signed into this long before they begin
	EarlySignWindow = 10 * time.Minute
	// added to the submission timestamp for clock and network drift
	TimestampSkew = 5 * time.Second
)

type State int

const (
	StateNoActiveClass State = iota
	StateInProgress
	StateImminent
	StatePendingManualMakeup
	StateSigned
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateNoActiveClass:
		return "no_active_class"
	case StateInProgress:
		return "in_progress"
	case StateImminent:
		return "imminent"
	case StatePendingManualMakeup:
		return "pending_manual_makeup"
	case StateSigned:
		return "signed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type Schedules interface {
	ScheduleDetail(ctx context.Context, session *services.Session, profileID string, courseID string) ([]services.ScheduleEntry, error)
	ScheduleByDate(ctx context.Context, session *services.Session, profileID string, date time.Time) ([]services.ScheduleEntry, error)
}

type Submitter interface {
	SubmitSign(ctx context.Context, session *services.Session, profileID string, scheduleID string, timestamp int64) (services.SignResult, error)
}

// Decision is which entry, if any, should be signed into.
type Decision struct {
	State State
	// set for StateInProgress and StateImminent
	Target services.ScheduleEntry
	// set for StatePendingManualMakeup, the caller picks one
	Candidates []services.ScheduleEntry
}

// Outcome is the decision plus where the run ended.
type Outcome struct {
	Decision Decision
	State    State
	Result   services.SignResult
}

// Decide picks the entry to sign into. entries are the course's schedule as the
// portal ordered it. today is the student's schedule for now's date, when nil the
// entries falling on now's date are used instead.
func Decide(
	entries []services.ScheduleEntry,
	today []services.ScheduleEntry,
	courseID string,
	now time.Time,
) (Decision, error) {
	if len(entries) == 0 {
		return Decision{State: StateNoActiveClass}, services.ErrNoScheduleData
	}

	last := entries[len(entries)-1]
	if !last.End.Before(now) {
		return Decision{State: StateInProgress, Target: last}, nil
	}

	if today == nil {
		today = onDate(entries, now)
	}
	windowEnd := now.Add(EarlySignWindow)
	for _, entry := range today {
		if entry.CourseID != courseID {
			continue
		}
		if !entry.Begin.Before(now) && !entry.Begin.After(windowEnd) {
			return Decision{State: StateImminent, Target: entry}, nil
		}
	}

	var candidates []services.ScheduleEntry
	for _, entry := range entries {
		if entry.Status == services.SignStatusUnsigned {
			candidates = append(candidates, entry)
		}
	}
	if len(candidates) == 0 {
		return Decision{State: StateNoActiveClass}, services.ErrNoActiveClassAndNoMakeupCandidates
	}
	return Decision{State: StatePendingManualMakeup, Candidates: candidates}, nil
}

// dates are compared in the zone each entry was parsed in, not the clock's
func onDate(entries []services.ScheduleEntry, now time.Time) []services.ScheduleEntry {
	sameDay := []services.ScheduleEntry{}
	for _, entry := range entries {
		y, m, d := entry.Begin.Date()
		year, month, day := now.In(entry.Begin.Location()).Date()
		if y == year && m == month && d == day {
			sameDay = append(sameDay, entry)
		}
	}
	return sameDay
}

// the portal expects milliseconds since epoch pushed TimestampSkew forward
func SubmissionTimestamp(now time.Time) int64 {
	return now.UnixMilli() + TimestampSkew.Milliseconds()
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the portal's zone, "today" is decided in it.
func WithLocation(location *time.Location) EngineOption {
	return func(e *Engine) {
		if location != nil {
			e.location = location
		}
	}
}

// Engine fetches a course's schedule, decides what to sign into and submits it.
type Engine struct {
	schedules Schedules
	submitter Submitter
	now       func() time.Time
	location  *time.Location
	logger    *log.Entry
}

func NewEngine(schedules Schedules, submitter Submitter, logger *log.Entry, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	e := &Engine{
		schedules: schedules,
		submitter: submitter,
		now:       time.Now,
		location:  time.Local,
		logger:    logger.WithField("job", "signIn"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run signs into the class in progress or about to begin. When there is none the
// outcome is StatePendingManualMakeup with the candidates and nothing is submitted.
func (e *Engine) Run(
	ctx context.Context,
	session *services.Session,
	profile services.Profile,
	courseID string,
) (Outcome, error) {
	logger := e.logger.WithField("course", courseID)
	if err := session.RequireAuthenticated(); err != nil {
		return Outcome{State: StateNoActiveClass}, err
	}

	entries, err := e.schedules.ScheduleDetail(ctx, session, profile.ID, courseID)
	if err != nil {
		return Outcome{State: StateNoActiveClass}, err
	}

	now := e.now().In(e.location)
	var today []services.ScheduleEntry
	if len(entries) > 0 && entries[len(entries)-1].End.Before(now) {
		logger.Info("No class in progress, looking for one about to begin")
		today, err = e.todaysSchedule(ctx, logger, session, profile, now)
		if err != nil {
			return Outcome{State: StateNoActiveClass}, err
		}
	}

	decision, err := Decide(entries, today, courseID, now)
	if err != nil {
		logger.WithError(err).Warn("Nothing to sign into")
		return Outcome{Decision: decision, State: decision.State}, err
	}

	switch decision.State {
	case StateInProgress:
		logger.WithField("schedule", decision.Target.ScheduleID).Info("Found class in progress")
	case StateImminent:
		logger.WithFields(log.Fields{
			"schedule": decision.Target.ScheduleID,
			"minutes":  decision.Target.Begin.Sub(now).Minutes(),
		}).Info("Found class about to begin")
	case StatePendingManualMakeup:
		logger.WithField("candidates", len(decision.Candidates)).Info("No class to sign into, choose one to make up")
		return Outcome{Decision: decision, State: decision.State}, nil
	}

	return e.submit(ctx, logger, session, profile, decision)
}

// SignMakeup submits a makeup sign-in for an entry the caller picked from the
// candidates of a StatePendingManualMakeup outcome.
func (e *Engine) SignMakeup(
	ctx context.Context,
	session *services.Session,
	profile services.Profile,
	entry services.ScheduleEntry,
) (Outcome, error) {
	logger := e.logger.WithFields(log.Fields{"course": entry.CourseID, "makeup": true})
	if err := session.RequireAuthenticated(); err != nil {
		return Outcome{State: StatePendingManualMakeup}, err
	}
	return e.submit(ctx, logger, session, profile, Decision{State: StatePendingManualMakeup, Target: entry})
}

func (e *Engine) todaysSchedule(
	ctx context.Context,
	logger *log.Entry,
	session *services.Session,
	profile services.Profile,
	now time.Time,
) ([]services.ScheduleEntry, error) {
	today, err := e.schedules.ScheduleByDate(ctx, session, profile.ID, now)
	if err == nil {
		return today, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !errors.Is(err, services.ErrNoScheduleData) {
		logger.WithError(err).Warn("Could not get today's schedule, using the course schedule")
	}
	return nil, nil
}

func (e *Engine) submit(
	ctx context.Context,
	logger *log.Entry,
	session *services.Session,
	profile services.Profile,
	decision Decision,
) (Outcome, error) {
	outcome := Outcome{Decision: decision, State: decision.State}
	timestamp := SubmissionTimestamp(e.now())
	logger.WithFields(log.Fields{
		"schedule":  decision.Target.ScheduleID,
		"timestamp": timestamp,
	}).Debug("Submitting sign-in")

	result, err := e.submitter.SubmitSign(ctx, session, profile.ID, decision.Target.ScheduleID, timestamp)
	outcome.Result = result
	if errors.Is(err, services.ErrSignRejected) {
		outcome.State = StateRejected
		return outcome, err
	}
	if err != nil {
		return outcome, err
	}
	outcome.State = StateSigned
	logger.WithField("schedule", decision.Target.ScheduleID).Info("Sign-in succeeded")
	return outcome, nil
}
