package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/ottermatch/config"
	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/ingest/storage"
	"github.com/otherjamesbrown/ottermatch/pkg/matching"
)

func seededStore(t *testing.T) (*memStore, *matching.Run) {
	t.Helper()
	s := newMemStore()
	run := matching.NewRun("/tmp/listing.html", "/tmp/recordings")
	records := sampleRecords()
	run.Finish(matching.ComputeStats(records))
	run.FinishedAt = run.StartedAt.Add(1500 * time.Millisecond)
	require.NoError(t, s.SaveRun(context.Background(), run, records))
	return s, run
}

func TestRunsCommand_Subcommands(t *testing.T) {
	cmd := NewRunsCommand(DefaultRunsDeps(loaderFor(testConfig())))

	list, _, err := cmd.Find([]string{"list"})
	require.NoError(t, err)
	assert.NotNil(t, list.Flags().Lookup("limit"))

	show, _, err := cmd.Find([]string{"show"})
	require.NoError(t, err)
	assert.Error(t, show.Args(show, nil))
}

func TestRunRunsList(t *testing.T) {
	s, run := seededStore(t)
	var out bytes.Buffer
	deps := &RunsCommandDeps{
		LoadConfig: loaderFor(testConfig()),
		NewLogger:  nopLogger,
		OpenStore:  storeOpener(s, nil),
		Stdout:     &out,
	}

	require.NoError(t, runRunsList(context.Background(), deps, 10))
	assert.Contains(t, out.String(), run.ID)
	assert.Contains(t, out.String(), "1.5s")
	assert.True(t, s.closed)
}

func TestRunRunsList_Empty(t *testing.T) {
	var out bytes.Buffer
	deps := &RunsCommandDeps{
		LoadConfig: loaderFor(testConfig()),
		NewLogger:  nopLogger,
		OpenStore:  storeOpener(newMemStore(), nil),
		Stdout:     &out,
	}
	require.NoError(t, runRunsList(context.Background(), deps, 0))
	assert.Contains(t, out.String(), "No stored runs.")
}

func TestRunRunsShow(t *testing.T) {
	s, run := seededStore(t)
	cfg := testConfig()
	cfg.OutputFormat = config.OutputFormatJSON
	var out bytes.Buffer
	deps := &RunsCommandDeps{
		LoadConfig: loaderFor(cfg),
		NewLogger:  nopLogger,
		OpenStore:  storeOpener(s, nil),
		Stdout:     &out,
	}

	require.NoError(t, runRunsShow(context.Background(), deps, run.ID))

	var stored storage.StoredRun
	require.NoError(t, json.Unmarshal(out.Bytes(), &stored))
	assert.Equal(t, run.ID, stored.Run.ID)
	assert.Len(t, stored.Records, 3)
	assert.Equal(t, 2, stored.Run.Stats.WithRecording)
}

func TestRunRunsShow_Text(t *testing.T) {
	s, run := seededStore(t)
	var out bytes.Buffer
	deps := &RunsCommandDeps{
		LoadConfig: loaderFor(testConfig()),
		NewLogger:  nopLogger,
		OpenStore:  storeOpener(s, nil),
		Stdout:     &out,
	}

	require.NoError(t, runRunsShow(context.Background(), deps, run.ID))
	assert.Contains(t, out.String(), "Directory: /tmp/recordings")
	assert.Contains(t, out.String(), "sequential")
}

func TestRunRunsShow_Errors(t *testing.T) {
	deps := &RunsCommandDeps{
		LoadConfig: loaderFor(testConfig()),
		NewLogger:  nopLogger,
		OpenStore:  storeOpener(newMemStore(), nil),
		Stdout:     &bytes.Buffer{},
	}
	err := runRunsShow(context.Background(), deps, "missing")
	assert.True(t, pferrors.IsNotFound(err))

	deps.OpenStore = storeOpener(nil, errBoom)
	assert.ErrorIs(t, runRunsList(context.Background(), deps, 0), errBoom)
}

func TestRunRunsList_SQLite(t *testing.T) {
	t.Setenv("OTTERMATCH_CONFIG_DIR", t.TempDir())
	cfg := testConfig()
	var out bytes.Buffer
	deps := &RunsCommandDeps{
		LoadConfig: loaderFor(cfg),
		NewLogger:  nopLogger,
		OpenStore:  openRunStore,
		Stdout:     &out,
	}

	ctx := context.Background()
	store, err := openRunStore(ctx, cfg, nopLogger(cfg))
	require.NoError(t, err)
	run := matching.NewRun("listing.html", "recordings")
	records := sampleRecords()
	run.Finish(matching.ComputeStats(records))
	require.NoError(t, store.SaveRun(ctx, run, records))
	require.NoError(t, store.Close())

	require.NoError(t, runRunsList(ctx, deps, 5))
	assert.Contains(t, out.String(), run.ID)
}
