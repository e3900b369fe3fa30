package iclass_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/Pjt727/autosign/signin/services"
	"github.com/Pjt727/autosign/signin/services/iclass"
	"github.com/Pjt727/autosign/signin/services/iclass/testiclass"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var beijing = time.FixedZone("CST", 8*60*60)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	return log.NewEntry(logger)
}

func setup(t *testing.T, change func(f *testiclass.Fixture)) (*iclass.Portal, *testiclass.MockServer, testiclass.Fixture) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	fixture := testiclass.DefaultFixture()
	if change != nil {
		change(&fixture)
	}
	mock := testiclass.NewMockServer(ctx, testLogger(), fixture)
	portal := iclass.New(mock.Endpoints(), testLogger(), iclass.Options{Location: beijing})
	return portal, mock, fixture
}

func login(t *testing.T, portal *iclass.Portal, fixture testiclass.Fixture) *services.Session {
	t.Helper()
	session, err := portal.Authenticate(context.Background(), services.Credentials{
		Username: fixture.Username,
		Password: fixture.Password,
	})
	require.NoError(t, err)
	return session
}

func TestAuthenticate(t *testing.T) {
	portal, mock, fixture := setup(t, nil)
	ctx := context.Background()

	session := login(t, portal, fixture)
	assert.True(t, session.Authenticated())
	cookies := session.Cookies(mustURL(t, mock.URL+"/"))
	require.NotEmpty(t, cookies)
	assert.Equal(t, "CASTGC", cookies[0].Name)

	// every login gets its own jar
	other := login(t, portal, fixture)
	assert.NotEqual(t, cookies[0].Value, other.Cookies(mustURL(t, mock.URL+"/"))[0].Value)

	_, err := portal.Authenticate(ctx, services.Credentials{Username: fixture.Username, Password: "wrong"})
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	assert.True(t, services.ShouldInvalidateCredentials(err))
	assert.Contains(t, err.Error(), "用户名或密码错误")

	_, err = portal.Authenticate(ctx, services.Credentials{Username: fixture.Username})
	assert.ErrorIs(t, err, services.ErrMissingCredentials)
	assert.False(t, services.ShouldInvalidateCredentials(err))
}

func TestAuthenticateMissingExecution(t *testing.T) {
	portal, _, fixture := setup(t, func(f *testiclass.Fixture) {
		f.OmitExecution = true
	})

	_, err := portal.Authenticate(context.Background(), services.Credentials{
		Username: fixture.Username,
		Password: fixture.Password,
	})
	assert.ErrorIs(t, err, services.ErrTokenNotFound)
	assert.True(t, services.ShouldInvalidateCredentials(err))
}

func TestAuthenticateNetworkFailure(t *testing.T) {
	portal, mock, fixture := setup(t, nil)
	mock.Close()

	_, err := portal.Authenticate(context.Background(), services.Credentials{
		Username: fixture.Username,
		Password: fixture.Password,
	})
	assert.ErrorIs(t, err, services.ErrNetwork)
	assert.False(t, services.ShouldInvalidateCredentials(err))
}

func TestUnauthenticatedSession(t *testing.T) {
	portal, _, fixture := setup(t, nil)
	ctx := context.Background()
	session := services.NewSession(http.DefaultClient)

	_, err := portal.ResolveProfile(ctx, session)
	assert.ErrorIs(t, err, services.ErrNotAuthenticated)
	_, err = portal.ActiveTerm(ctx, session, "1")
	assert.ErrorIs(t, err, services.ErrNotAuthenticated)
	_, err = portal.Courses(ctx, session, "1", "2024-20251")
	assert.ErrorIs(t, err, services.ErrNotAuthenticated)
	_, err = portal.ScheduleDetail(ctx, session, "1", "101")
	assert.ErrorIs(t, err, services.ErrNotAuthenticated)
	_, err = portal.SubmitSign(ctx, session, "1", "9", 0)
	assert.ErrorIs(t, err, services.ErrNotAuthenticated)

	// a discarded session is no longer usable
	session = login(t, portal, fixture)
	session.Discard()
	_, err = portal.ResolveProfile(ctx, session)
	assert.ErrorIs(t, err, services.ErrNotAuthenticated)
}

func TestResolveProfile(t *testing.T) {
	portal, _, fixture := setup(t, nil)
	ctx := context.Background()
	session := login(t, portal, fixture)

	profile, err := portal.ResolveProfile(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, services.Profile{
		ID:            "52013",
		DisplayName:   "张三",
		StudentNumber: "20373001",
	}, profile)
}

func TestResolveProfileFailures(t *testing.T) {
	ctx := context.Background()

	portal, _, fixture := setup(t, func(f *testiclass.Fixture) {
		f.LoginName = ""
	})
	_, err := portal.ResolveProfile(ctx, login(t, portal, fixture))
	assert.ErrorIs(t, err, services.ErrMissingIdentityToken)

	portal, _, fixture = setup(t, func(f *testiclass.Fixture) {
		f.Profile = nil
	})
	_, err = portal.ResolveProfile(ctx, login(t, portal, fixture))
	assert.ErrorIs(t, err, services.ErrProfileNotFound)

	portal, _, fixture = setup(t, func(f *testiclass.Fixture) {
		f.Profile = map[string]any{"realName": "张三"}
	})
	_, err = portal.ResolveProfile(ctx, login(t, portal, fixture))
	assert.ErrorIs(t, err, services.ErrProfileNotFound)
}

func TestActiveTerm(t *testing.T) {
	portal, mock, fixture := setup(t, nil)
	ctx := context.Background()
	session := login(t, portal, fixture)

	expected := services.Term{Code: "2024-20251", Name: "2024-2025学年第一学期", Active: true}
	term, err := portal.ActiveTerm(ctx, session, "52013")
	require.NoError(t, err)
	assert.Equal(t, expected, term)

	// asking twice gives the same answer
	term, err = portal.ActiveTerm(ctx, session, "52013")
	require.NoError(t, err)
	assert.Equal(t, expected, term)

	// the first flagged term wins
	mock.Update(func(f *testiclass.Fixture) {
		f.Terms = append(f.Terms, map[string]any{"code": "2025-20262", "name": "later", "yearStatus": 1})
	})
	term, err = portal.ActiveTerm(ctx, session, "52013")
	require.NoError(t, err)
	assert.Equal(t, expected, term)

	mock.Update(func(f *testiclass.Fixture) {
		f.Terms = []map[string]any{{"code": "2023-20242", "name": "old", "yearStatus": "0"}}
	})
	_, err = portal.ActiveTerm(ctx, session, "52013")
	assert.ErrorIs(t, err, services.ErrNoActiveTerm)
}

func TestCourses(t *testing.T) {
	portal, mock, fixture := setup(t, nil)
	ctx := context.Background()
	session := login(t, portal, fixture)

	courses, err := portal.Courses(ctx, session, "52013", "2024-20251")
	require.NoError(t, err)
	assert.Equal(t, []services.Course{
		{ID: "101", Name: "Operating Systems"},
		{ID: "102", Name: "Compilers"},
	}, courses)

	mock.Update(func(f *testiclass.Fixture) { f.Courses = nil })
	_, err = portal.Courses(ctx, session, "52013", "2024-20251")
	assert.ErrorIs(t, err, services.ErrNoCourses)
}

func TestScheduleDetail(t *testing.T) {
	begin := time.Date(2024, 10, 8, 8, 0, 0, 0, beijing)
	portal, mock, fixture := setup(t, func(f *testiclass.Fixture) {
		f.Details["101"] = testiclass.Detail{
			Status: "0",
			Result: []map[string]any{
				testiclass.ScheduleEntry(9001, begin, begin.Add(95*time.Minute), true),
				testiclass.ScheduleEntry("9002", begin.AddDate(0, 0, 7), begin.AddDate(0, 0, 7).Add(95*time.Minute), false),
			},
		}
		f.Details["102"] = testiclass.Detail{Status: "2"}
		f.Details["103"] = testiclass.Detail{Status: "7"}
	})
	ctx := context.Background()
	session := login(t, portal, fixture)

	entries, err := portal.ScheduleDetail(ctx, session, "52013", "101")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, services.ScheduleEntry{
		ScheduleID: "9001",
		CourseID:   "101",
		Begin:      begin,
		End:        begin.Add(95 * time.Minute),
		Status:     services.SignStatusSigned,
	}, entries[0])
	assert.Equal(t, "9002", entries[1].ScheduleID)
	assert.False(t, entries[1].Signed())
	assert.True(t, entries[1].Begin.Equal(begin.AddDate(0, 0, 7)))

	_, err = portal.ScheduleDetail(ctx, session, "52013", "102")
	assert.ErrorIs(t, err, services.ErrCourseNotStarted)

	_, err = portal.ScheduleDetail(ctx, session, "52013", "103")
	assert.ErrorIs(t, err, services.ErrUnknownCourseStatus)
	assert.Contains(t, err.Error(), "7")

	_, err = portal.ScheduleDetail(ctx, session, "52013", "999")
	assert.ErrorIs(t, err, services.ErrNoScheduleData)

	mock.Update(func(f *testiclass.Fixture) {
		f.Details["101"] = testiclass.Detail{Result: []map[string]any{{
			"courseSchedId":  1,
			"classBeginTime": "2024/10/08 08:00",
			"classEndTime":   "2024/10/08 09:35",
		}}}
	})
	_, err = portal.ScheduleDetail(ctx, session, "52013", "101")
	assert.ErrorIs(t, err, services.ErrUnexpectedResponse)
}

func TestScheduleByDate(t *testing.T) {
	begin := time.Date(2024, 10, 8, 10, 0, 0, 0, beijing)
	portal, _, fixture := setup(t, func(f *testiclass.Fixture) {
		f.ByDate["20241008"] = []map[string]any{
			testiclass.DayEntry(7001, 101, begin, begin.Add(95*time.Minute)),
		}
	})
	ctx := context.Background()
	session := login(t, portal, fixture)

	entries, err := portal.ScheduleByDate(ctx, session, "52013", begin.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "7001", entries[0].ScheduleID)
	assert.Equal(t, "101", entries[0].CourseID)
	assert.True(t, entries[0].Begin.Equal(begin))

	// the date is taken in the portal's zone, 20:00 UTC is already the 9th in Beijing
	_, err = portal.ScheduleByDate(ctx, session, "52013", time.Date(2024, 10, 8, 20, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, services.ErrNoScheduleData)
}

func TestSubmitSign(t *testing.T) {
	portal, mock, fixture := setup(t, nil)
	ctx := context.Background()
	session := login(t, portal, fixture)

	result, err := portal.SubmitSign(ctx, session, "52013", "9002", 1728352805000)
	require.NoError(t, err)
	assert.True(t, result.Signed())
	assert.Equal(t, []testiclass.SignRequest{{
		ScheduleID: "9002",
		Timestamp:  "1728352805000",
		UserID:     "52013",
	}}, mock.SignRequests())

	mock.Update(func(f *testiclass.Fixture) {
		f.SignResponse = map[string]any{"STATUS": "1", "ERRCODE": 40001, "ERRMSG": "签到时间未到"}
	})
	result, err = portal.SubmitSign(ctx, session, "52013", "9002", 1728352805000)
	assert.ErrorIs(t, err, services.ErrSignRejected)
	var rejected *services.SignRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "40001", rejected.Code)
	assert.Equal(t, "签到时间未到", rejected.Message)
	assert.Equal(t, services.SignResult{StatusCode: "1", ErrorCode: "40001", ErrorMessage: "签到时间未到"}, result)
	assert.Equal(t, "sign-in rejected (code 40001): 签到时间未到", services.Describe(err))
	assert.Len(t, mock.SignRequests(), 2)
}

func TestEndpointsFor(t *testing.T) {
	direct, err := iclass.EndpointsFor(iclass.NetworkDirect)
	require.NoError(t, err)
	assert.Equal(t, iclass.DirectEndpoints(), direct)
	assert.Contains(t, direct.LoginURL, "sso.buaa.edu.cn")

	vpn, err := iclass.EndpointsFor(iclass.NetworkVPN)
	require.NoError(t, err)
	assert.Contains(t, vpn.LoginURL, "d.buaa.edu.cn")
	assert.Equal(t, direct.APIURL, vpn.APIURL)

	_, err = iclass.EndpointsFor("satellite")
	assert.Error(t, err)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
