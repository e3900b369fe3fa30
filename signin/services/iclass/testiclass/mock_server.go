package testiclass

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/Pjt727/autosign/signin/services/iclass"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	ssoCookie     = "CASTGC"
	landingPath   = "/iclass/"
	loginPath     = "/sso/login"
	TimeLayout    = "2006-01-02 15:04:05"
	defaultExec   = "e1s1-mock-execution-token"
	defaultUserID = 52013
)

// Detail is what the schedule detail endpoint answers for one course.
type Detail struct {
	Status string
	Result []map[string]any
}

// Fixture is the state the mock portal serves. Values are plain maps so tests can
// send the loosely typed json the real portal does.
type Fixture struct {
	Username      string
	Password      string
	Execution     string
	OmitExecution bool
	LoginName     string
	// nil answers with an empty result
	Profile map[string]any
	Terms   []map[string]any
	Courses []map[string]any
	// keyed by course id
	Details map[string]Detail
	// keyed by dateStr e.i. 20240101
	ByDate map[string][]map[string]any
	// nil answers {"STATUS":"0"}
	SignResponse map[string]any
}

func DefaultFixture() Fixture {
	return Fixture{
		Username:  "20373001",
		Password:  "hunter2",
		Execution: defaultExec,
		LoginName: "ABCDEF123456",
		Profile: map[string]any{
			"id":       defaultUserID,
			"realName": "张三",
			"userUUID": "20373001",
		},
		Terms: []map[string]any{
			{"code": "2023-20242", "name": "2023-2024学年第二学期", "yearStatus": "0"},
			{"code": "2024-20251", "name": "2024-2025学年第一学期", "yearStatus": "1"},
		},
		Courses: []map[string]any{
			{"course_id": 101, "course_name": "Operating Systems"},
			{"course_id": "102", "course_name": "Compilers"},
		},
		Details: map[string]Detail{},
		ByDate:  map[string][]map[string]any{},
	}
}

// ScheduleEntry renders an entry the way the detail endpoint sends it.
func ScheduleEntry(schedID any, begin time.Time, end time.Time, signed bool) map[string]any {
	status := "0"
	if signed {
		status = "1"
	}
	return map[string]any{
		"courseSchedId":  schedID,
		"classBeginTime": begin.Format(TimeLayout),
		"classEndTime":   end.Format(TimeLayout),
		"signStatus":     status,
	}
}

// DayEntry renders an entry the way the by date endpoint sends it.
func DayEntry(id any, courseID any, begin time.Time, end time.Time) map[string]any {
	return map[string]any{
		"id":             id,
		"courseId":       courseID,
		"classBeginTime": begin.Format(TimeLayout),
		"classEndTime":   end.Format(TimeLayout),
		"signStatus":     "0",
	}
}

type SignRequest struct {
	ScheduleID string
	Timestamp  string
	UserID     string
}

type MockServer struct {
	*httptest.Server
	logger *log.Entry

	mu           sync.RWMutex
	fixture      Fixture
	sessions     map[string]bool
	signRequests []SignRequest
}

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<body>
<form id="loginForm" method="post">
  <input type="text" name="username"/>
  <input type="password" name="password"/>
  {{if not .OmitExecution}}<input type="hidden" name="execution" value="{{.Execution}}"/>{{end}}
  <input type="hidden" name="_eventId" value="submit"/>
  {{if .Error}}<div class="error_txt">{{.Error}}</div>{{end}}
</form>
</body>
</html>`))

type loginPageData struct {
	Execution     string
	OmitExecution bool
	Error         string
}

// requireSession middleware checks for a valid SSO cookie.
func (m *MockServer) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(ssoCookie)
		if err != nil || cookie.Value == "" {
			m.logger.Error("SSO cookie not set")
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}
		m.mu.RLock()
		ok := m.sessions[cookie.Value]
		m.mu.RUnlock()
		if !ok {
			m.logger.WithField(ssoCookie, cookie.Value).Error("cookie value not found in the sessions")
			http.Error(w, "invalid session", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (m *MockServer) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	data := loginPageData{Execution: m.fixture.Execution, OmitExecution: m.fixture.OmitExecution}
	m.mu.RUnlock()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	loginPage.Execute(w, data)
}

func (m *MockServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request: Could not parse form", http.StatusBadRequest)
		return
	}
	m.mu.RLock()
	fixture := m.fixture
	m.mu.RUnlock()

	data := loginPageData{Execution: fixture.Execution}
	switch {
	case r.FormValue("execution") != fixture.Execution:
		data.Error = "登录已过期，请重新登录"
	case r.FormValue("_eventId") != "submit" || r.FormValue("type") != "username_password":
		data.Error = "非法请求"
	case r.FormValue("username") != fixture.Username || r.FormValue("password") != fixture.Password:
		data.Error = "用户名或密码错误"
	}
	if data.Error != "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		loginPage.Execute(w, data)
		return
	}

	sessionID := uuid.New().String()
	m.mu.Lock()
	m.sessions[sessionID] = true
	m.mu.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:     ssoCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
	})
	http.Redirect(w, r, landingPath, http.StatusFound)
}

// the landing page bounces to itself with the loginName of the student
func (m *MockServer) handleLanding(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("loginName") == "" {
		m.mu.RLock()
		loginName := m.fixture.LoginName
		m.mu.RUnlock()
		if loginName != "" {
			http.Redirect(w, r, landingPath+"?loginName="+url.QueryEscape(loginName), http.StatusFound)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body>iClass</body></html>")
}

func (m *MockServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.WithError(err).Error("could not encode response")
	}
}

func (m *MockServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r.URL.Query().Get("phone") != m.fixture.LoginName || m.fixture.Profile == nil {
		m.writeJSON(w, map[string]any{"result": map[string]any{}})
		return
	}
	m.writeJSON(w, map[string]any{"result": m.fixture.Profile})
}

func (m *MockServer) handleTerms(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.writeJSON(w, map[string]any{"result": m.fixture.Terms})
}

func (m *MockServer) handleCourses(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r.URL.Query().Get("xq_code") == "" {
		http.Error(w, "Bad Request: 'xq_code' is required", http.StatusBadRequest)
		return
	}
	m.writeJSON(w, map[string]any{"result": m.fixture.Courses})
}

func (m *MockServer) handleDetail(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	detail, ok := m.fixture.Details[r.URL.Query().Get("courseId")]
	if !ok {
		m.writeJSON(w, map[string]any{"STATUS": "0", "result": []any{}})
		return
	}
	m.writeJSON(w, map[string]any{"STATUS": detail.Status, "result": detail.Result})
}

func (m *MockServer) handleByDate(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.fixture.ByDate[r.URL.Query().Get("dateStr")]
	if entries == nil {
		entries = []map[string]any{}
	}
	m.writeJSON(w, map[string]any{"STATUS": "0", "result": entries})
}

func (m *MockServer) handleSign(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request: Could not parse form", http.StatusBadRequest)
		return
	}
	request := SignRequest{
		ScheduleID: r.URL.Query().Get("courseSchedId"),
		Timestamp:  r.URL.Query().Get("timestamp"),
		UserID:     r.PostForm.Get("id"),
	}
	m.mu.Lock()
	m.signRequests = append(m.signRequests, request)
	response := m.fixture.SignResponse
	m.mu.Unlock()
	if response == nil {
		response = map[string]any{"STATUS": "0"}
	}
	m.writeJSON(w, response)
}

// Update changes the served fixture under the lock.
func (m *MockServer) Update(change func(f *Fixture)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	change(&m.fixture)
}

func (m *MockServer) SignRequests() []SignRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SignRequest(nil), m.signRequests...)
}

// Endpoints point every root of the portal at the mock server.
func (m *MockServer) Endpoints() iclass.Endpoints {
	return iclass.Endpoints{
		LoginURL: m.URL + loginPath + "?service=" + url.QueryEscape(m.URL+landingPath),
		BaseURL:  m.URL + landingPath,
		APIURL:   m.URL,
		SignURL:  m.URL,
	}
}

// returns a new server which will be closed once the context ends
func NewMockServer(ctx context.Context, logger *log.Entry, fixture Fixture) *MockServer {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	m := &MockServer{
		logger:   logger.WithField("service", "mockIclass"),
		fixture:  fixture,
		sessions: make(map[string]bool),
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+loginPath, m.handleLoginPage)
	mux.HandleFunc("POST "+loginPath, m.handleLogin)
	mux.HandleFunc("GET "+landingPath, m.requireSession(m.handleLanding))
	mux.HandleFunc("GET /app/user/login.action", m.requireSession(m.handleProfile))
	mux.HandleFunc("GET /app/course/get_base_school_year.action", m.requireSession(m.handleTerms))
	mux.HandleFunc("GET /app/choosecourse/get_myall_course.action", m.requireSession(m.handleCourses))
	mux.HandleFunc("POST /app/my/get_my_course_sign_detail.action", m.requireSession(m.handleDetail))
	mux.HandleFunc("GET /app/course/get_stu_course_sched.action", m.requireSession(m.handleByDate))
	mux.HandleFunc("POST /app/course/stu_scan_sign.action", m.requireSession(m.handleSign))

	m.Server = httptest.NewServer(mux)
	// close server once the context finishes
	go func() {
		<-ctx.Done()
		m.Server.Close()
	}()

	return m
}
