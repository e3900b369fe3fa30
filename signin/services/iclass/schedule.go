package iclass

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Pjt727/autosign/signin/services"
	log "github.com/sirupsen/logrus"
)

const (
	courseStatusOk         = "0"
	courseStatusNotStarted = "2"
)

type termResponse struct {
	Result []termEntry `json:"result"`
}

type termEntry struct {
	Code       looseString `json:"code"`
	Name       string      `json:"name"`
	YearStatus looseString `json:"yearStatus"`
}

type courseResponse struct {
	Result []courseEntry `json:"result"`
}

type courseEntry struct {
	CourseID   looseString `json:"course_id"`
	CourseName string      `json:"course_name"`
}

type scheduleResponse struct {
	Status looseString     `json:"STATUS"`
	Result []scheduleEntry `json:"result"`
}

type scheduleEntry struct {
	CourseSchedID  looseString `json:"courseSchedId"`
	ID             looseString `json:"id"`
	CourseID       looseString `json:"courseId"`
	ClassBeginTime string      `json:"classBeginTime"`
	ClassEndTime   string      `json:"classEndTime"`
	SignStatus     looseString `json:"signStatus"`
}

// ActiveTerm returns the first term flagged as the current one. Several flagged
// terms are not expected, list order breaks the tie.
func (p *Portal) ActiveTerm(ctx context.Context, session *services.Session, profileID string) (services.Term, error) {
	var term services.Term
	logger := p.logger.WithField("job", "activeTerm")
	if err := session.RequireAuthenticated(); err != nil {
		return term, err
	}

	logger.Info("Getting term information")
	query := url.Values{
		"userId": {profileID},
		"type":   {"2"},
	}
	var body termResponse
	if err := p.getJSON(ctx, session, logger, p.apiURL("app/course/get_base_school_year.action", query), &body); err != nil {
		return term, err
	}

	// example terms:
	// {
	//   "code": "2024-20251",
	//   "name": "2024-2025学年第一学期",
	//   "yearStatus": "1"
	// }
	for _, entry := range body.Result {
		if entry.YearStatus == "1" {
			term = services.Term{
				Code:   entry.Code.String(),
				Name:   entry.Name,
				Active: true,
			}
			logger.WithFields(log.Fields{"term": term.Name, "code": term.Code}).Info("Got current term")
			return term, nil
		}
	}

	logger.Error("No current term found")
	return term, services.ErrNoActiveTerm
}

func (p *Portal) Courses(
	ctx context.Context,
	session *services.Session,
	profileID string,
	termCode string,
) ([]services.Course, error) {
	logger := p.logger.WithFields(log.Fields{"job": "courses", "term": termCode})
	if err := session.RequireAuthenticated(); err != nil {
		return nil, err
	}

	logger.Info("Getting course list")
	query := url.Values{
		"user_type": {"1"},
		"id":        {profileID},
		"xq_code":   {termCode},
	}
	var body courseResponse
	if err := p.getJSON(ctx, session, logger, p.apiURL("app/choosecourse/get_myall_course.action", query), &body); err != nil {
		return nil, err
	}
	if len(body.Result) == 0 {
		logger.Error("No courses found")
		return nil, services.ErrNoCourses
	}

	courses := make([]services.Course, len(body.Result))
	for i, entry := range body.Result {
		courses[i] = services.Course{ID: entry.CourseID.String(), Name: entry.CourseName}
	}
	logger.WithField("courses", len(courses)).Info("Got courses")
	return courses, nil
}

// ScheduleDetail lists every schedule entry of a course in the order the portal
// returns them, the last being the most recent.
func (p *Portal) ScheduleDetail(
	ctx context.Context,
	session *services.Session,
	profileID string,
	courseID string,
) ([]services.ScheduleEntry, error) {
	logger := p.logger.WithFields(log.Fields{"job": "scheduleDetail", "course": courseID})
	if err := session.RequireAuthenticated(); err != nil {
		return nil, err
	}

	logger.Info("Getting course schedule")
	query := url.Values{
		"id":       {profileID},
		"courseId": {courseID},
	}
	var body scheduleResponse
	if err := p.postJSON(ctx, session, logger, p.apiURL("app/my/get_my_course_sign_detail.action", query), nil, &body); err != nil {
		return nil, err
	}

	switch body.Status {
	case "", courseStatusOk:
	case courseStatusNotStarted:
		logger.Error("Course has not started")
		return nil, services.ErrCourseNotStarted
	default:
		logger.WithField("status", body.Status).Warn("Unknown course status")
		return nil, fmt.Errorf("%w `%s`", services.ErrUnknownCourseStatus, body.Status)
	}
	if len(body.Result) == 0 {
		logger.Error("No schedule found")
		return nil, services.ErrNoScheduleData
	}

	entries, err := p.toScheduleEntries(body.Result, courseID, false)
	if err != nil {
		logger.WithError(err).Error("Error reading schedule")
		return nil, err
	}
	return entries, nil
}

// ScheduleByDate lists the student's schedule of every course on the given day.
func (p *Portal) ScheduleByDate(
	ctx context.Context,
	session *services.Session,
	profileID string,
	date time.Time,
) ([]services.ScheduleEntry, error) {
	dateStr := date.In(p.location).Format("20060102")
	logger := p.logger.WithFields(log.Fields{"job": "scheduleByDate", "date": dateStr})
	if err := session.RequireAuthenticated(); err != nil {
		return nil, err
	}

	logger.Info("Getting schedule for the day")
	query := url.Values{
		"id":      {profileID},
		"dateStr": {dateStr},
	}
	var body scheduleResponse
	if err := p.getJSON(ctx, session, logger, p.apiURL("app/course/get_stu_course_sched.action", query), &body); err != nil {
		return nil, err
	}
	if len(body.Result) == 0 {
		logger.Info("Nothing scheduled for the day")
		return nil, services.ErrNoScheduleData
	}
	return p.toScheduleEntries(body.Result, "", true)
}

// the detail endpoint calls the schedule id courseSchedId while the
// by date endpoint calls it id
func (p *Portal) toScheduleEntries(
	raw []scheduleEntry,
	courseID string,
	preferID bool,
) ([]services.ScheduleEntry, error) {
	entries := make([]services.ScheduleEntry, 0, len(raw))
	for _, r := range raw {
		scheduleID := r.CourseSchedID
		if preferID || scheduleID == "" {
			if r.ID != "" {
				scheduleID = r.ID
			}
		}
		begin, err := p.parseTime(r.ClassBeginTime)
		if err != nil {
			return nil, err
		}
		end, err := p.parseTime(r.ClassEndTime)
		if err != nil {
			return nil, err
		}
		entryCourse := r.CourseID.String()
		if entryCourse == "" {
			entryCourse = courseID
		}
		entries = append(entries, services.ScheduleEntry{
			ScheduleID: scheduleID.String(),
			CourseID:   entryCourse,
			Begin:      begin,
			End:        end,
			Status:     services.SignStatus(r.SignStatus),
		})
	}
	return entries, nil
}
