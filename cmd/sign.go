package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/Pjt727/autosign/signin"
	"github.com/Pjt727/autosign/signin/services"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	courseFlag   string
	makeupFlag   int
	noMakeupFlag bool
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Signs in to the class in progress",
	Long: `Logs in, picks the course (asking when --course is not given) and signs in to
the class that is in progress or begins within the next 10 minutes. When there is
none the classes not signed in to are offered as makeups.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		logger := log.WithField("app", "cli")
		out := cmd.OutOrStdout()

		orchestrator, err := newOrchestrator(logger)
		if err != nil {
			return err
		}
		store, err := newStore(logger)
		if err != nil {
			return err
		}
		p := newPrompter()
		p.out = out

		run, err := startRun(ctx, orchestrator, store, p, logger)
		if err != nil {
			return err
		}
		defer run.Close()
		fmt.Fprintf(out, "Logged in as %s, %s\n", run.Profile.DisplayName, run.Term.Name)

		var course services.Course
		if courseFlag != "" {
			found, ok := run.FindCourse(courseFlag)
			if !ok {
				return fmt.Errorf("no course `%s` this term", courseFlag)
			}
			course = found
		} else {
			choice, err := p.choose("Course", courseNames(run.Courses))
			if err != nil {
				return err
			}
			course = run.Courses[choice]
		}

		outcome, err := orchestrator.Sign(ctx, run, course.ID)
		if err != nil {
			return err
		}
		if outcome.State == signin.StateSigned {
			fmt.Fprintf(out, "Signed in to %s (%s)\n", course.Name, outcome.Decision.Target)
			return nil
		}

		candidates := outcome.Decision.Candidates
		fmt.Fprintf(out, "No class of %s to sign in to, %d can be made up\n", course.Name, len(candidates))
		if noMakeupFlag {
			for _, name := range entryNames(candidates) {
				fmt.Fprintln(out, "  "+name)
			}
			return nil
		}
		var choice int
		if makeupFlag > 0 {
			if makeupFlag > len(candidates) {
				return fmt.Errorf("--makeup %d but there are only %d classes to make up", makeupFlag, len(candidates))
			}
			choice = makeupFlag - 1
		} else {
			choice, err = p.choose("Make up", entryNames(candidates))
			if err != nil {
				return err
			}
		}

		outcome, err = orchestrator.SignMakeup(ctx, run, candidates[choice])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Made up %s (%s)\n", course.Name, outcome.Decision.Target)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVarP(&courseFlag, "course", "c", "", "id or name of the course")
	signCmd.Flags().IntVarP(&makeupFlag, "makeup", "m", 0, "number of the class to make up when there is no class to sign in to")
	signCmd.Flags().BoolVar(&noMakeupFlag, "no-makeup", false, "only list the classes that could be made up")
	signCmd.MarkFlagsMutuallyExclusive("makeup", "no-makeup")
}
