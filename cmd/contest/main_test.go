package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	authdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/domain"
	authjwt "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/infrastructure/jwt"
	consensusservice "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/application"
	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	ledgerservice "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
	ledgerhandlers "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/handlers"
	ledgerdb "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/repositories"
	ledgerrouter "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/router"
	"github.com/Black-And-White-Club/beauty-contest/app/observability"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	pterm.DisableOutput()
	os.Exit(m.Run())
}

// run executes the CLI without letting exit codes terminate the test binary.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	var out bytes.Buffer
	a.Writer = &out
	a.ErrWriter = io.Discard
	a.ExitErrHandler = func(*cli.Context, error) {}
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	err := a.Run(append([]string{"contest", "--config", missing}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func newLedger(t *testing.T) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := ledgerservice.NewLedgerService(
		ledgerdb.NewMemoryRepository(), nil, clock.Real{}, ledgerdomain.Schedule{},
		logger, observability.NoOpMetrics{}, observability.NopTracer(), nil,
	)
	r := chi.NewRouter()
	ledgerrouter.Register(r, ledgerhandlers.NewLedgerHandlers(svc, logger, observability.NopTracer()), ledgerrouter.Options{})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL + ledgerrouter.BasePath
}

func TestCommitWritesReceipt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")

	_, err := run(t, "commit", "--id", "s1", "--number", "50", "--nonce", "abc", "--receipt", path)
	require.NoError(t, err)

	r, err := readReceipt(path)
	require.NoError(t, err)
	assert.Equal(t, Receipt{
		UniID:    "s1",
		Number:   50,
		Nonce:    "abc",
		Preimage: "s1|50|abc",
		Commit:   consensusdomain.Commit("s1", 50, "abc"),
	}, r)
}

func TestCommitGeneratesNonce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")

	_, err := run(t, "commit", "--id", "s1", "--number", "7", "--receipt", path)
	require.NoError(t, err)

	r, err := readReceipt(path)
	require.NoError(t, err)
	assert.Len(t, r.Nonce, 32)
}

func TestReadReceipt_Tampered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")
	r := NewReceipt("s1", 50, "abc")
	r.Number = 51
	require.NoError(t, writeReceipt(path, r))

	_, err := readReceipt(path)
	require.Error(t, err)
}

func TestPreimage(t *testing.T) {
	digest := consensusdomain.Commit("s1", 50, "abc")

	_, err := run(t, "preimage", "--id", "s1", "--number", "50", "--nonce", "abc", "--digest", digest)
	require.NoError(t, err)

	_, err = run(t, "preimage", "--id", "s1", "--number", "51", "--nonce", "abc", "--digest", digest)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))

	_, err = run(t, "preimage", "--id", "s1", "--number", "fifty", "--digest", digest)
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestSubmitAndConsensus(t *testing.T) {
	ledgerURL := newLedger(t)
	dir := t.TempDir()

	for _, p := range []struct {
		id     string
		number string
	}{{"ann", "20"}, {"bo", "40"}, {"cy", "90"}} {
		receipt := filepath.Join(dir, p.id+".json")
		_, err := run(t, "commit", "--id", p.id, "--number", p.number, "--receipt", receipt, "--submit", "--ledger", ledgerURL)
		require.NoError(t, err)
		_, err = run(t, "reveal", "--receipt", receipt, "--ledger", ledgerURL)
		require.NoError(t, err)
	}

	out := filepath.Join(dir, "bundle")
	_, err := run(t, "consensus", "--ledger", ledgerURL, "--out", out, "--quiet")
	require.NoError(t, err)

	for _, name := range []string{
		consensusservice.FileCommits,
		consensusservice.FileReveals,
		consensusservice.FileLeaderboard,
		consensusservice.FileResults,
		consensusservice.FileWorkbook,
		consensusservice.FileChart,
	} {
		require.FileExists(t, filepath.Join(out, name))
	}
	results, err := os.ReadFile(filepath.Join(out, consensusservice.FileResults))
	require.NoError(t, err)
	assert.Contains(t, string(results), "  - bo with 40 (distance 6.666667)")
}

func TestReveal_NeedsInput(t *testing.T) {
	_, err := run(t, "reveal", "--ledger", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestConsensus_NoLedger(t *testing.T) {
	t.Setenv("LEDGER_URL", "")
	_, err := run(t, "consensus", "--out", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestToken(t *testing.T) {
	const secret = "cli-test-secret-cli-test-secret-0123"
	t.Setenv("JWT_SECRET", secret)

	out, err := run(t, "token", "--subject", "prof", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := authjwt.NewProvider(secret).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "prof", claims.Subject)
	assert.Equal(t, authdomain.RoleInstructor, claims.Role)

	_, err = run(t, "token", "--subject", "prof", "--role", "dean")
	require.Error(t, err)
}

func TestReadSummary_CountsEveryFetchedRow(t *testing.T) {
	commits := []consensusdomain.Row{
		{"uni_id": "s1", "commit": consensusdomain.Commit("s1", 50, "abc"), "timestamp_utc": "2025-01-01T00:00:00Z"},
		{"uni_id": "s2", "commit": "", "timestamp_utc": "2025-01-01T00:00:00Z"},
		{"uni_id": "s3", "commit": consensusdomain.Commit("s3", 10, "x"), "timestamp_utc": "2025-01-01T00:00:00Z"},
	}
	reveals := []consensusdomain.Row{
		{"uni_id": "s1", "number": "50", "nonce": "abc", "timestamp_utc": "2025-01-01T01:00:00Z"},
		{"uni_id": "s3", "number": "11", "nonce": "x", "timestamp_utc": "2025-01-01T01:00:00Z"},
		{"uni_id": "", "number": "5", "nonce": "", "timestamp_utc": "2025-01-01T01:00:00Z"},
	}
	g := consensusdomain.RunConsensus(commits, reveals, consensusdomain.DefaultParams())
	exp := consensusservice.BuildExport(g)
	require.Len(t, exp.Reveals, 1)

	assert.Equal(t, "Read 3 commits and 3 reveals", readSummary(g.Stats))
}
