package services

import (
	"fmt"
	"time"
)

// layout of every timestamp the portal sends
const TimeLayout = "2006-01-02 15:04:05"

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

type Profile struct {
	ID            string
	DisplayName   string
	StudentNumber string
}

type Term struct {
	Code   string
	Name   string
	Active bool
}

type Course struct {
	ID   string
	Name string
}

type SignStatus string

const (
	SignStatusUnsigned SignStatus = "0"
	SignStatusSigned   SignStatus = "1"
)

type ScheduleEntry struct {
	ScheduleID string
	CourseID   string
	Begin      time.Time
	End        time.Time
	Status     SignStatus
}

func (e ScheduleEntry) Signed() bool {
	return e.Status == SignStatusSigned
}

func (e ScheduleEntry) String() string {
	return fmt.Sprintf("%s - %s", e.Begin.Format(TimeLayout), e.End.Format(TimeLayout))
}

type SignResult struct {
	StatusCode   string
	ErrorCode    string
	ErrorMessage string
}

func (r SignResult) Signed() bool {
	return r.StatusCode == "0"
}
