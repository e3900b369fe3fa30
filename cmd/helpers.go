package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/Pjt727/autosign/data/credentials"
	"github.com/Pjt727/autosign/signin"
	"github.com/Pjt727/autosign/signin/services"
	"github.com/Pjt727/autosign/signin/services/iclass"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var errCancelled = errors.New("cancelled")

func newPortal(logger *log.Entry) (*iclass.Portal, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clientOptions := cfg.ClientOptions()
	return iclass.New(cfg.Endpoints(), logger, iclass.Options{
		NewClient: func() *http.Client {
			return services.NewClient(clientOptions, logger)
		},
		Location: loc,
	}), nil
}

func newOrchestrator(logger *log.Entry) (*signin.Orchestrator, error) {
	portal, err := newPortal(logger)
	if err != nil {
		return nil, err
	}
	return signin.NewOrchestrator(portal, logger), nil
}

func newStore(logger *log.Entry) (*credentials.FileStore, error) {
	path := cfg.CredentialsFile
	if path == "" {
		defaultPath, err := credentials.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("no credentials_file set and no user config directory: %w", err)
		}
		path = defaultPath
	}
	return credentials.NewFileStore(path, logger), nil
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
	// passwords are read without echo when this is a terminal
	fd int
}

func newPrompter() *prompter {
	return &prompter{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
		fd:  int(os.Stdin.Fd()),
	}
}

func (p *prompter) readLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) readPassword(prompt string) (string, error) {
	if !term.IsTerminal(p.fd) {
		return p.readLine(prompt)
	}
	fmt.Fprint(p.out, prompt)
	bytePassword, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out) // New line after password input
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

// credentials prompts for whatever is missing from creds
func (p *prompter) credentials(creds services.Credentials) (services.Credentials, error) {
	for creds.Username == "" {
		username, err := p.readLine("Enter student id: ")
		if err != nil {
			return creds, fmt.Errorf("failed to read student id: %w", err)
		}
		if username == "" {
			fmt.Fprintln(p.out, "Student id cannot be empty. Please try again.")
		}
		creds.Username = username
	}
	for creds.Password == "" {
		password, err := p.readPassword("Enter password: ")
		if err != nil {
			return creds, fmt.Errorf("failed to read password: %w", err)
		}
		if password == "" {
			fmt.Fprintln(p.out, "Password cannot be empty. Please try again.")
		}
		creds.Password = password
	}
	return creds, nil
}

// choose lists the options numbered from 1 and returns the index picked,
// q returns errCancelled
func (p *prompter) choose(prompt string, options []string) (int, error) {
	for i, option := range options {
		fmt.Fprintf(p.out, "%3d. %s\n", i+1, option)
	}
	for {
		answer, err := p.readLine(prompt + " [1-" + strconv.Itoa(len(options)) + ", q to quit]: ")
		if err != nil {
			return 0, err
		}
		if strings.EqualFold(answer, "q") {
			return 0, errCancelled
		}
		choice, err := strconv.Atoi(answer)
		if err != nil || choice < 1 || choice > len(options) {
			fmt.Fprintln(p.out, "Not a valid choice. Please try again.")
			continue
		}
		return choice - 1, nil
	}
}

// startRun logs in with the stored credentials or prompts for new ones. Credentials
// the portal rejects are removed, prompted ones are saved once they work.
func startRun(
	ctx context.Context,
	orchestrator *signin.Orchestrator,
	store *credentials.FileStore,
	p *prompter,
	logger *log.Entry,
) (*signin.Run, error) {
	creds, err := store.Load()
	prompted := false
	if errors.Is(err, credentials.ErrNoCredentials) || errors.Is(err, credentials.ErrCorruptCredentials) {
		creds, err = p.credentials(services.Credentials{})
		prompted = true
	}
	if err != nil {
		return nil, err
	}

	run, err := orchestrator.Start(ctx, creds)
	if err != nil {
		if services.ShouldInvalidateCredentials(err) {
			logger.Warn("Removing the stored credentials")
			if delErr := store.Delete(); delErr != nil {
				logger.WithError(delErr).Error("Could not delete stored credentials")
			}
		}
		return nil, err
	}
	if prompted {
		if err := store.Save(creds); err != nil {
			logger.WithError(err).Error("Could not save credentials")
		}
	}
	return run, nil
}

func courseNames(courses []services.Course) []string {
	names := make([]string, len(courses))
	for i, course := range courses {
		names[i] = course.Name
	}
	return names
}

func entryNames(entries []services.ScheduleEntry) []string {
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.String()
	}
	return names
}
