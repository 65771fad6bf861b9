package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/ottermatch/config"
	"github.com/otherjamesbrown/ottermatch/credentials"
	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/fathom"
	"github.com/otherjamesbrown/ottermatch/pkg/ingest/meeting"
)

func sampleMeetings() []fathom.Meeting {
	return []fathom.Meeting{
		{
			ID:             "101",
			Title:          "Weekly Sync",
			CreatedAt:      "2025-09-01T10:00:00Z",
			ShareURL:       "https://fathom.video/share/101",
			DefaultSummary: "Roadmap review",
			Transcript: []fathom.TranscriptEntry{
				{Speaker: "Ana", Text: "Morning all", Start: 1.5},
			},
		},
		{
			ID:        "102",
			Title:     "Budget Review",
			CreatedAt: "2025-09-02T15:00:00Z",
		},
	}
}

func newFathomHarness(t *testing.T, lister *fakeLister) (*FathomCommandDeps, *config.CLIConfig, *bytes.Buffer) {
	t.Helper()
	setupCredentialEnv(t)
	cfg := testConfig()
	var out bytes.Buffer
	return &FathomCommandDeps{
		LoadConfig: loaderFor(cfg),
		NewLogger:  nopLogger,
		NewStore:   credentials.NewStore,
		NewClient:  lister.factory(),
		Stdout:     &out,
	}, cfg, &out
}

func TestFathomCommand_Subcommands(t *testing.T) {
	cmd := NewFathomCommand(DefaultFathomDeps(loaderFor(testConfig())))

	export, _, err := cmd.Find([]string{"export"})
	require.NoError(t, err)
	assert.NotNil(t, export.Flags().Lookup("dry-run"))
	assert.NotNil(t, export.Flags().Lookup("overwrite"))
	assert.NotNil(t, export.InheritedFlags().Lookup("api-key"))
	assert.NotNil(t, export.InheritedFlags().Lookup("limit"))

	_, _, err = cmd.Find([]string{"list"})
	require.NoError(t, err)
}

func TestResolveFathomKey(t *testing.T) {
	deps, _, _ := newFathomHarness(t, &fakeLister{})

	_, err := resolveFathomKey(deps, "")
	assert.ErrorIs(t, err, pferrors.ErrUnauthorized)

	store, err := credentials.NewStore()
	require.NoError(t, err)
	require.NoError(t, store.Save(&credentials.Credentials{APIKey: "stored-key-123"}))

	key, err := resolveFathomKey(deps, "")
	require.NoError(t, err)
	assert.Equal(t, "stored-key-123", key)

	t.Setenv(credentials.EnvAPIKey, "env-key-123")
	key, err = resolveFathomKey(deps, "")
	require.NoError(t, err)
	assert.Equal(t, "env-key-123", key)

	key, err = resolveFathomKey(deps, " flag-key-123 ")
	require.NoError(t, err)
	assert.Equal(t, "flag-key-123", key)
}

func TestRunFathomList(t *testing.T) {
	lister := &fakeLister{meetings: sampleMeetings()}
	deps, cfg, out := newFathomHarness(t, lister)

	require.NoError(t, runFathomList(context.Background(), deps, fathomFlags{apiKey: "flag-key-123", limit: 1}))
	assert.Equal(t, "flag-key-123", lister.apiKey)
	assert.Contains(t, out.String(), "Weekly Sync")
	assert.Contains(t, out.String(), "1 meetings")

	cfg.OutputFormat = config.OutputFormatJSON
	out.Reset()
	require.NoError(t, runFathomList(context.Background(), deps, fathomFlags{apiKey: "flag-key-123"}))
	var meetings []fathom.Meeting
	require.NoError(t, json.Unmarshal(out.Bytes(), &meetings))
	assert.Len(t, meetings, 2)
}

func TestRunFathomList_ClassifiesErrors(t *testing.T) {
	lister := &fakeLister{err: pferrors.ErrUnauthorized}
	deps, _, _ := newFathomHarness(t, lister)

	err := runFathomList(context.Background(), deps, fathomFlags{apiKey: "flag-key-123"})
	var se *pferrors.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, pferrors.ErrAuthFailed, se.Code)
}

func TestRunFathomExport(t *testing.T) {
	lister := &fakeLister{meetings: sampleMeetings()}
	deps, _, out := newFathomHarness(t, lister)
	dir := filepath.Join(t.TempDir(), "fathom")

	report, err := runFathomExport(context.Background(), deps, dir, fathomFlags{apiKey: "flag-key-123"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Successful)
	assert.Contains(t, out.String(), "Written: 2")
	assert.FileExists(t, filepath.Join(dir, fathom.ReportFile))

	idx, err := meeting.BuildFileIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.ArtifactCount(), "exported transcripts are indexable")

	report, err = runFathomExport(context.Background(), deps, dir, fathomFlags{apiKey: "flag-key-123"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Skipped)

	report, err = runFathomExport(context.Background(), deps, dir, fathomFlags{apiKey: "flag-key-123", overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Successful)
}

func TestRunFathomExport_DryRun(t *testing.T) {
	lister := &fakeLister{meetings: sampleMeetings()}
	deps, _, out := newFathomHarness(t, lister)
	dir := filepath.Join(t.TempDir(), "fathom")

	report, err := runFathomExport(context.Background(), deps, dir, fathomFlags{apiKey: "flag-key-123", dryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Contains(t, out.String(), "Dry run")

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "dry run must not create the directory")
}

func TestRunFathomExport_OutputDir(t *testing.T) {
	lister := &fakeLister{meetings: sampleMeetings()}
	deps, cfg, _ := newFathomHarness(t, lister)

	_, err := runFathomExport(context.Background(), deps, "", fathomFlags{apiKey: "flag-key-123"})
	assert.ErrorIs(t, err, pferrors.ErrValidation)

	cfg.Fathom.OutputDir = filepath.Join(t.TempDir(), "configured")
	_, err = runFathomExport(context.Background(), deps, "", fathomFlags{apiKey: "flag-key-123"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.Fathom.OutputDir, fathom.ReportFile))
}
