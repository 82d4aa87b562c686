package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "github.com/iudanet/routesync/internal/client/api"
	"github.com/iudanet/routesync/internal/client/auth"
	"github.com/iudanet/routesync/internal/client/diag"
	"github.com/iudanet/routesync/internal/client/executor"
	"github.com/iudanet/routesync/internal/client/iocli"
	"github.com/iudanet/routesync/internal/client/protection"
	"github.com/iudanet/routesync/internal/client/record"
	"github.com/iudanet/routesync/internal/client/sequence"
	"github.com/iudanet/routesync/internal/client/storage"
	"github.com/iudanet/routesync/internal/client/storage/boltdb"
	syncsvc "github.com/iudanet/routesync/internal/client/sync"
	"github.com/iudanet/routesync/internal/models"
	"github.com/iudanet/routesync/pkg/api"
)

type fixture struct {
	cli       *Cli
	apiMock   *httpapi.ServiceMock
	syncMock  *syncsvc.ServiceMock
	store     *boltdb.Storage
	coord     *protection.Coordinator
	submitter *fakeSubmitter
	out       *strings.Builder
	inputs    []string
	passwords []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		apiMock:  &httpapi.ServiceMock{},
		syncMock: &syncsvc.ServiceMock{},
		store:    store,
		out:      &strings.Builder{},
	}

	ioMock := &iocli.IOMock{
		PrintlnFunc: func(a ...any) {
			fmt.Fprintln(f.out, a...)
		},
		PrintfFunc: func(format string, a ...any) {
			fmt.Fprintf(f.out, format, a...)
		},
		ReadInputFunc: func(prompt string) (string, error) {
			require.NotEmpty(t, f.inputs, "unexpected ReadInput call")
			input := f.inputs[0]
			f.inputs = f.inputs[1:]
			return input, nil
		},
		ReadPasswordFunc: func(prompt string) (string, error) {
			require.NotEmpty(t, f.passwords, "unexpected ReadPassword call")
			password := f.passwords[0]
			f.passwords = f.passwords[1:]
			return password, nil
		},
	}

	authService := auth.NewService(f.apiMock, store, store, logger)
	f.coord = protection.NewCoordinator(store, logger)
	remote := diag.RemoteSequencerFunc(func(ctx context.Context) (int64, error) {
		return 0, nil
	})
	diagService := diag.NewService(store, store, remote, nil, nil, logger)

	f.submitter = &fakeSubmitter{}
	exec := executor.NewExecutor(store, store, store, f.submitter, nil, logger)
	counter := sequence.NewCounter(store)
	clientID := func(context.Context) (string, error) { return "client-1", nil }
	recordService := record.NewService(exec, store, counter, f.coord, clientID, logger)

	f.cli = New(ioMock, authService, f.syncMock, diagService, recordService, f.coord)
	return f
}

// fakeSubmitter принимает все отправки; ошибка настраивается на тест
type fakeSubmitter struct {
	err error
}

func (s *fakeSubmitter) Submit(context.Context, *models.Operation) error {
	return s.err
}

func (f *fixture) saveSession(t *testing.T, expiresAt int64) {
	t.Helper()
	require.NoError(t, f.store.SaveAuth(context.Background(), &storage.AuthData{
		Username:     "worker_1",
		UserID:       "user-1",
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    expiresAt,
	}))
}

func TestRun_UnknownCommand(t *testing.T) {
	f := newFixture(t)

	err := f.cli.Run(context.Background(), "bogus", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: bogus")
	assert.Contains(t, f.out.String(), "Usage:")
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	f.inputs = []string{"worker_1"}
	f.passwords = []string{"secret123456", "secret123456"}
	f.apiMock.RegisterFunc = func(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
		return &api.RegisterResponse{UserID: "user-1", Message: "created"}, nil
	}

	err := f.cli.Run(context.Background(), "register", nil)

	require.NoError(t, err)
	require.Len(t, f.apiMock.RegisterCalls(), 1)
	assert.Equal(t, "worker_1", f.apiMock.RegisterCalls()[0].Req.Username)
	assert.Contains(t, f.out.String(), "Registration successful")
	assert.Contains(t, f.out.String(), "User ID: user-1")
}

func TestRegister_PasswordMismatch(t *testing.T) {
	f := newFixture(t)
	f.inputs = []string{"worker_1"}
	f.passwords = []string{"secret123456", "different1234"}

	err := f.cli.Run(context.Background(), "register", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "passwords do not match")
	assert.Empty(t, f.apiMock.RegisterCalls())
}

func TestLogin_SavesSession(t *testing.T) {
	f := newFixture(t)
	f.inputs = []string{"worker_1"}
	f.passwords = []string{"secret123456"}
	f.apiMock.LoginFunc = func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
		return &api.TokenResponse{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			UserID:       "user-1",
			ExpiresIn:    900,
		}, nil
	}

	err := f.cli.Run(context.Background(), "login", nil)

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Login successful")

	saved, err := f.store.GetAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-token", saved.AccessToken)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, time.Now().Unix()+900)

	err := f.cli.Run(context.Background(), "logout", nil)

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Logout successful")

	_, err = f.store.GetAuth(context.Background())
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)
}

func TestStatus_NotAuthenticated(t *testing.T) {
	f := newFixture(t)

	err := f.cli.Run(context.Background(), "status", nil)

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Not authenticated")
}

func TestStatus_Authenticated(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, time.Now().Unix()+900)
	f.syncMock.GetPendingSyncCountFunc = func(ctx context.Context) (int, error) {
		return 2, nil
	}

	ok, err := f.coord.Set(context.Background(), models.FlagActiveDaySession)
	require.NoError(t, err)
	require.True(t, ok)

	err = f.cli.Run(context.Background(), "status", nil)

	require.NoError(t, err)
	output := f.out.String()
	assert.Contains(t, output, "Status: Authenticated")
	assert.Contains(t, output, "Username: worker_1")
	assert.Contains(t, output, "Pending sync: 2 operation(s)")
	assert.Contains(t, output, "active_day_session (until cleared)")
}

func TestStatus_AllSynced(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, time.Now().Unix()+900)
	f.syncMock.GetPendingSyncCountFunc = func(ctx context.Context) (int, error) {
		return 0, nil
	}

	err := f.cli.Run(context.Background(), "status", nil)

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "All operations synchronized")
	assert.NotContains(t, f.out.String(), "Active protection flags")
}

func TestSync_Success(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, time.Now().Unix()+900)
	f.syncMock.SyncFunc = func(ctx context.Context, accessToken string) (*syncsvc.SyncResult, error) {
		return &syncsvc.SyncResult{Pushed: 3, Pulled: 5, Merged: 5}, nil
	}

	err := f.cli.Run(context.Background(), "sync", nil)

	require.NoError(t, err)
	require.Len(t, f.syncMock.SyncCalls(), 1)
	assert.Equal(t, "access-token", f.syncMock.SyncCalls()[0].AccessToken)
	output := f.out.String()
	assert.Contains(t, output, "Pushed to server:   3 operation(s)")
	assert.Contains(t, output, "Pulled from server: 5 operation(s)")
	assert.NotContains(t, output, "deferred")
}

func TestSync_Deferred(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, time.Now().Unix()+900)
	f.syncMock.SyncFunc = func(ctx context.Context, accessToken string) (*syncsvc.SyncResult, error) {
		return &syncsvc.SyncResult{Pushed: 1, Deferred: true}, nil
	}

	err := f.cli.Run(context.Background(), "sync", nil)

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Merge was deferred")
}

func TestSync_NotAuthenticated(t *testing.T) {
	f := newFixture(t)

	err := f.cli.Run(context.Background(), "sync", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authenticated")
	assert.Empty(t, f.syncMock.SyncCalls())
}

func TestDiagnose_Healthy(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, time.Now().Unix()+900)

	err := f.cli.Run(context.Background(), "diagnose", nil)

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "User:               user-1")
	assert.Contains(t, f.out.String(), "Recommendation: sync state is healthy")
}

func TestRepair_NothingToDo(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, time.Now().Unix()+900)

	err := f.cli.Run(context.Background(), "repair", nil)

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "nothing to repair")
}

func TestClearFailed_Confirmed(t *testing.T) {
	f := newFixture(t)
	f.inputs = []string{"yes"}

	op := &models.Operation{
		ID:        "op-1",
		ClientID:  "client-1",
		Type:      models.OpCompletionCreate,
		Timestamp: time.Now().UTC(),
		Sequence:  1,
		Payload: models.CompletionCreatePayload{
			Completion: models.Completion{
				Timestamp:   time.Now().UTC(),
				Index:       0,
				Outcome:     "done",
				ListVersion: 1,
			},
		},
	}
	require.NoError(t, f.store.Enqueue(context.Background(), storage.QueueDeadLetter, op))

	err := f.cli.Run(context.Background(), "clear-failed", nil)

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Dropped 1 operation(s)")

	count, err := f.store.Count(context.Background(), storage.QueueDeadLetter)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestClearFailed_Aborted(t *testing.T) {
	f := newFixture(t)
	f.inputs = []string{"no"}

	err := f.cli.Run(context.Background(), "clear-failed", nil)

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Aborted")
}

func TestStartDayAndEndDay(t *testing.T) {
	f := newFixture(t)

	err := f.cli.Run(context.Background(), "start-day", nil)
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Work session started")

	// Повтор в тот же день не ошибка, но и не вторая сессия
	err = f.cli.Run(context.Background(), "start-day", nil)
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "already exists")

	err = f.cli.Run(context.Background(), "end-day", nil)
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Work session closed")
}

func TestEndDayWithoutSession(t *testing.T) {
	f := newFixture(t)

	err := f.cli.Run(context.Background(), "end-day", nil)

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "No open work session")
}

func TestComplete(t *testing.T) {
	f := newFixture(t)

	err := f.cli.Run(context.Background(), "complete", []string{"0", "PIF", "25.50"})

	require.NoError(t, err)
	output := f.out.String()
	assert.Contains(t, output, "Completion recorded: address 0, outcome PIF")
	assert.Contains(t, output, "Amount: 25.50")
}

func TestComplete_InvalidArgs(t *testing.T) {
	f := newFixture(t)

	err := f.cli.Run(context.Background(), "complete", []string{"0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: complete")

	err = f.cli.Run(context.Background(), "complete", []string{"x", "PIF"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid address index")
}

func TestAddAddress(t *testing.T) {
	f := newFixture(t)

	err := f.cli.Run(context.Background(), "add-address", []string{"221B", "Baker", "Street"})

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Address added: 221B Baker Street")
}

func TestImport(t *testing.T) {
	f := newFixture(t)

	path := filepath.Join(t.TempDir(), "route.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 Main St\n2 High St\n\n"), 0o600))

	err := f.cli.Run(context.Background(), "import", []string{path})

	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Imported 2 address(es)")
}

func TestImport_MissingFile(t *testing.T) {
	f := newFixture(t)

	err := f.cli.Run(context.Background(), "import", []string{"/nonexistent/route.txt"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}
