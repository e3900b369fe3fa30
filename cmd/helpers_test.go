package cmd

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Pjt727/autosign/data/credentials"
	"github.com/Pjt727/autosign/signin"
	"github.com/Pjt727/autosign/signin/services"
	"github.com/Pjt727/autosign/signin/services/iclass"
	"github.com/Pjt727/autosign/signin/services/iclass/testiclass"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrompter(input string) (*prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return &prompter{
		in:  bufio.NewReader(strings.NewReader(input)),
		out: &out,
		fd:  -1,
	}, &out
}

func TestPrompterChoose(t *testing.T) {
	p, out := testPrompter("0\nabc\n2\n")
	choice, err := p.choose("Course", []string{"Operating Systems", "Compilers"})
	require.NoError(t, err)
	assert.Equal(t, 1, choice)
	assert.Contains(t, out.String(), "  2. Compilers")
	assert.Equal(t, 2, strings.Count(out.String(), "Not a valid choice"))

	p, _ = testPrompter("q\n")
	_, err = p.choose("Course", []string{"Operating Systems"})
	assert.ErrorIs(t, err, errCancelled)

	p, _ = testPrompter("")
	_, err = p.choose("Course", []string{"Operating Systems"})
	assert.Error(t, err)
}

func TestPrompterCredentials(t *testing.T) {
	p, out := testPrompter("\n20373001\n\nhunter2")
	creds, err := p.credentials(services.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, services.Credentials{Username: "20373001", Password: "hunter2"}, creds)
	assert.Contains(t, out.String(), "Student id cannot be empty")
	assert.Contains(t, out.String(), "Password cannot be empty")

	// only what is missing is asked for
	p, out = testPrompter("hunter2\n")
	creds, err = p.credentials(services.Credentials{Username: "20373001"})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", creds.Password)
	assert.NotContains(t, out.String(), "student id")
}

func setupStart(t *testing.T) (*signin.Orchestrator, *credentials.FileStore, testiclass.Fixture) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger, _ := test.NewNullLogger()
	entry := log.NewEntry(logger)

	fixture := demoFixture(time.Now())
	mock := testiclass.NewMockServer(ctx, entry, fixture)
	portal := iclass.New(mock.Endpoints(), entry, iclass.Options{})
	store := credentials.NewFileStore(filepath.Join(t.TempDir(), "config.json"), entry)
	return signin.NewOrchestrator(portal, entry), store, fixture
}

func TestStartRunSavesPromptedCredentials(t *testing.T) {
	orchestrator, store, fixture := setupStart(t)
	p, _ := testPrompter(fixture.Username + "\n" + fixture.Password + "\n")

	run, err := startRun(context.Background(), orchestrator, store, p, log.NewEntry(log.StandardLogger()))
	require.NoError(t, err)
	defer run.Close()
	assert.Len(t, run.Courses, 3)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, fixture.Username, stored.Username)
}

func TestStartRunRemovesRejectedCredentials(t *testing.T) {
	orchestrator, store, fixture := setupStart(t)
	require.NoError(t, store.Save(services.Credentials{Username: fixture.Username, Password: "stale"}))
	p, _ := testPrompter("")

	_, err := startRun(context.Background(), orchestrator, store, p, log.NewEntry(log.StandardLogger()))
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, err = store.Load()
	assert.ErrorIs(t, err, credentials.ErrNoCredentials)
}

func TestDemoFixture(t *testing.T) {
	orchestrator, store, fixture := setupStart(t)
	require.NoError(t, store.Save(services.Credentials{Username: fixture.Username, Password: fixture.Password}))
	ctx := context.Background()
	p, _ := testPrompter("")

	run, err := startRun(ctx, orchestrator, store, p, log.NewEntry(log.StandardLogger()))
	require.NoError(t, err)
	defer run.Close()

	outcome, err := orchestrator.Sign(ctx, run, "101")
	require.NoError(t, err)
	assert.Equal(t, signin.StateSigned, outcome.State)

	outcome, err = orchestrator.Sign(ctx, run, "102")
	require.NoError(t, err)
	assert.Equal(t, signin.StatePendingManualMakeup, outcome.State)
	assert.Len(t, outcome.Decision.Candidates, 2)
	assert.Equal(t, entryNames(outcome.Decision.Candidates)[0], outcome.Decision.Candidates[0].String())

	outcome, err = orchestrator.Sign(ctx, run, "103")
	require.NoError(t, err)
	assert.Equal(t, signin.StateImminent, outcome.Decision.State)
}
