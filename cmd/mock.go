package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pjt727/autosign/signin/services/iclass/testiclass"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// mockCmd runs a fake portal to try the cli and the web front-end against
var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Runs a fake iClass portal",
	Long: `Runs a fake SSO and iClass portal on a local port and prints the settings to
point autosign at it. Operating Systems has a class in progress, Compilers has
classes to make up and Databases has a class about to begin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		mock := testiclass.NewMockServer(ctx, log.WithField("app", "mock"), demoFixture(time.Now().In(loc)))
		endpoints := mock.Endpoints()
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "# log in with student id 20373001 and password hunter2")
		fmt.Fprintf(out, "AUTOSIGN_LOGIN_URL=%s\n", endpoints.LoginURL)
		fmt.Fprintf(out, "AUTOSIGN_BASE_URL=%s\n", endpoints.BaseURL)
		fmt.Fprintf(out, "AUTOSIGN_API_URL=%s\n", endpoints.APIURL)
		fmt.Fprintf(out, "AUTOSIGN_SIGN_URL=%s\n", endpoints.SignURL)
		fmt.Fprintf(out, "AUTOSIGN_TIMEZONE=%s\n", cfg.Timezone)

		<-ctx.Done()
		return nil
	},
}

func demoFixture(now time.Time) testiclass.Fixture {
	const lesson = 95 * time.Minute
	fixture := testiclass.DefaultFixture()
	fixture.Courses = append(fixture.Courses, map[string]any{"course_id": 103, "course_name": "Databases"})

	inProgress := now.Add(-20 * time.Minute)
	fixture.Details["101"] = testiclass.Detail{Status: "0", Result: []map[string]any{
		testiclass.ScheduleEntry(10001, inProgress.AddDate(0, 0, -7), inProgress.AddDate(0, 0, -7).Add(lesson), true),
		testiclass.ScheduleEntry(10002, inProgress, inProgress.Add(lesson), false),
	}}

	var missed []map[string]any
	for week := 3; week > 0; week-- {
		begin := now.AddDate(0, 0, -7*week).Add(-3 * time.Hour)
		missed = append(missed, testiclass.ScheduleEntry(10100+week, begin, begin.Add(lesson), week == 2))
	}
	fixture.Details["102"] = testiclass.Detail{Status: "0", Result: missed}

	soon := now.Add(6 * time.Minute)
	lastWeek := soon.AddDate(0, 0, -7)
	fixture.Details["103"] = testiclass.Detail{Status: "0", Result: []map[string]any{
		testiclass.ScheduleEntry(10201, lastWeek, lastWeek.Add(lesson), true),
	}}
	fixture.ByDate[now.Format("20060102")] = []map[string]any{
		testiclass.DayEntry(10202, 103, soon, soon.Add(lesson)),
	}
	return fixture
}

func init() {
	appCmd.AddCommand(mockCmd)
}
