package serversign

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Pjt727/autosign/data/credentials"
	logginghelpers "github.com/Pjt727/autosign/data/logging-helpers"
	"github.com/Pjt727/autosign/signin"
	"github.com/Pjt727/autosign/signin/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Sanatized int

const (
	RunToken Sanatized = iota
)

const RunCookieName = "autosign_run"

//go:embed static/index.html
var static embed.FS

type signHandler struct {
	orchestrator *signin.Orchestrator
	store        *credentials.FileStore
	broadcaster  *logginghelpers.Broadcaster
	runs         *runStore
	logger       *log.Entry
}

func newSignHandler(
	orchestrator *signin.Orchestrator,
	store *credentials.FileStore,
	broadcaster *logginghelpers.Broadcaster,
	logger *log.Entry,
) *signHandler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &signHandler{
		orchestrator: orchestrator,
		store:        store,
		broadcaster:  broadcaster,
		runs:         newRunStore(DEFAULT_RUN_EXPIRY),
		logger:       logger.WithField("service", "web"),
	}
}

type errorView struct {
	Error string `json:"error"`
}

type courseView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type runView struct {
	Name          string       `json:"name"`
	StudentNumber string       `json:"studentNumber"`
	Term          string       `json:"term"`
	Courses       []courseView `json:"courses"`
}

type entryView struct {
	ScheduleID string    `json:"scheduleId"`
	CourseID   string    `json:"courseId"`
	Begin      time.Time `json:"begin"`
	End        time.Time `json:"end"`
	Signed     bool      `json:"signed"`
}

type resultView struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type outcomeView struct {
	State      string      `json:"state"`
	Schedule   *entryView  `json:"schedule,omitempty"`
	Result     *resultView `json:"result,omitempty"`
	Candidates []entryView `json:"candidates,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func toEntryView(entry services.ScheduleEntry) entryView {
	return entryView{
		ScheduleID: entry.ScheduleID,
		CourseID:   entry.CourseID,
		Begin:      entry.Begin,
		End:        entry.End,
		Signed:     entry.Signed(),
	}
}

func toCourseViews(courses []services.Course) []courseView {
	views := make([]courseView, len(courses))
	for i, course := range courses {
		views[i] = courseView{ID: course.ID, Name: course.Name}
	}
	return views
}

func toOutcomeView(outcome signin.Outcome, err error) outcomeView {
	view := outcomeView{
		State: outcome.State.String(),
		Error: services.Describe(err),
	}
	if outcome.Decision.Target.ScheduleID != "" {
		entry := toEntryView(outcome.Decision.Target)
		view.Schedule = &entry
	}
	if outcome.Result != (services.SignResult{}) {
		view.Result = &resultView{
			Status:  outcome.Result.StatusCode,
			Code:    outcome.Result.ErrorCode,
			Message: outcome.Result.ErrorMessage,
		}
	}
	for _, candidate := range outcome.Decision.Candidates {
		view.Candidates = append(view.Candidates, toEntryView(candidate))
	}
	return view
}

// statusFor maps an error kind to the status code the front-end branches on
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrMissingCredentials):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrSignRejected), errors.Is(err, services.ErrCourseNotStarted):
		return http.StatusConflict
	case errors.Is(err, services.ErrNoActiveTerm),
		errors.Is(err, services.ErrNoCourses),
		errors.Is(err, services.ErrProfileNotFound),
		errors.Is(err, services.ErrNoScheduleData),
		errors.Is(err, services.ErrNoActiveClassAndNoMakeupCandidates):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNetwork),
		errors.Is(err, services.ErrUnexpectedResponse),
		errors.Is(err, services.ErrTokenNotFound),
		errors.Is(err, services.ErrLoginPageMalformed),
		errors.Is(err, services.ErrMissingIdentityToken),
		errors.Is(err, services.ErrUnknownCourseStatus):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *signHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Could not encode response")
	}
}

func (h *signHandler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, statusFor(err), errorView{Error: services.Describe(err)})
}

func (h *signHandler) home(w http.ResponseWriter, r *http.Request) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		h.logger.WithError(err).Error("Could not read index page")
		http.Error(w, http.StatusText(500), 500)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// login starts a run with the submitted credentials or, when none are submitted,
// with the stored ones
func (h *signHandler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	creds := services.Credentials{
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}
	submitted := creds.Username != "" || creds.Password != ""
	if !submitted && h.store != nil {
		stored, err := h.store.Load()
		if err == nil {
			creds = stored
		} else if !errors.Is(err, credentials.ErrNoCredentials) {
			h.logger.WithError(err).Warn("Could not load stored credentials")
		}
	}

	run, err := h.orchestrator.Start(ctx, creds)
	if err != nil {
		if services.ShouldInvalidateCredentials(err) && h.store != nil {
			if delErr := h.store.Delete(); delErr != nil {
				h.logger.WithError(delErr).Error("Could not delete stored credentials")
			}
		}
		h.writeError(w, err)
		return
	}
	if submitted && r.FormValue("remember") != "" && h.store != nil {
		if err := h.store.Save(creds); err != nil {
			h.logger.WithError(err).Error("Could not save credentials")
		}
	}

	if cookie, err := r.Cookie(RunCookieName); err == nil {
		h.runs.remove(cookie.Value)
	}
	token := uuid.New().String()
	h.runs.add(token, run)
	http.SetCookie(w, &http.Cookie{
		Name:     RunCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	h.writeJSON(w, http.StatusOK, runView{
		Name:          run.Profile.DisplayName,
		StudentNumber: run.Profile.StudentNumber,
		Term:          run.Term.Name,
		Courses:       toCourseViews(run.Courses),
	})
}

func (h *signHandler) ensureRun(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(RunCookieName)
		if err != nil {
			h.writeError(w, services.ErrNotAuthenticated)
			return
		}
		if _, ok := h.runs.get(cookie.Value); !ok {
			h.writeError(w, services.ErrNotAuthenticated)
			return
		}
		ctx := context.WithValue(r.Context(), RunToken, cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// only valid behind ensureRun
func (h *signHandler) currentRun(r *http.Request) (string, *browserRun, bool) {
	token := r.Context().Value(RunToken).(string)
	run, ok := h.runs.get(token)
	return token, run, ok
}

func (h *signHandler) courses(w http.ResponseWriter, r *http.Request) {
	_, run, ok := h.currentRun(r)
	if !ok {
		h.writeError(w, services.ErrNotAuthenticated)
		return
	}
	h.writeJSON(w, http.StatusOK, toCourseViews(run.run.Courses))
}

func (h *signHandler) sign(w http.ResponseWriter, r *http.Request) {
	token, run, ok := h.currentRun(r)
	if !ok {
		h.writeError(w, services.ErrNotAuthenticated)
		return
	}
	courseID := chi.URLParam(r, "courseID")
	course, ok := run.run.FindCourse(courseID)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorView{Error: "unknown course " + courseID})
		return
	}

	outcome, err := h.orchestrator.Sign(r.Context(), run.run, course.ID)
	h.runs.setCandidates(token, outcome.Decision.Candidates)
	if err != nil {
		h.logger.WithError(err).WithField("course", course.ID).Warn("Sign-in did not succeed")
	}
	h.writeJSON(w, statusFor(err), toOutcomeView(outcome, err))
}

// makeup signs a candidate of the last pending decision of this run
func (h *signHandler) makeup(w http.ResponseWriter, r *http.Request) {
	token, run, ok := h.currentRun(r)
	if !ok {
		h.writeError(w, services.ErrNotAuthenticated)
		return
	}
	scheduleID := chi.URLParam(r, "scheduleID")
	entry, ok := h.runs.candidate(token, scheduleID)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorView{Error: "schedule " + scheduleID + " is not a makeup candidate"})
		return
	}

	outcome, err := h.orchestrator.SignMakeup(r.Context(), run.run, entry)
	if err == nil {
		h.runs.setCandidates(token, nil)
	}
	h.writeJSON(w, statusFor(err), toOutcomeView(outcome, err))
}

func (h *signHandler) logout(w http.ResponseWriter, r *http.Request) {
	token, _, _ := h.currentRun(r)
	h.runs.remove(token)
	if r.FormValue("forget") != "" && h.store != nil {
		if err := h.store.Delete(); err != nil {
			h.writeError(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:   RunCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}
