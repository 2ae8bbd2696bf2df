package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
)

func TestLoadConfig_FileWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
game:
  k_factor: "1/2"
  allowed_min: 1
  allowed_max: 10
  reveal_open: "2025-05-01T10:00:00Z"
ledger:
  url: "http://file.example/ledger"
postgres:
  dsn: "postgres://file"
`), 0o600))

	t.Setenv("LEDGER_URL", "http://env.example/ledger")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "1/2", cfg.Game.KFactor)
	require.Equal(t, 1, cfg.Game.AllowedMin)
	require.Equal(t, 10, cfg.Game.AllowedMax)
	require.Equal(t, "http://env.example/ledger", cfg.Ledger.URL)
	require.Equal(t, "postgres://file", cfg.Postgres.DSN)
	require.Equal(t, "text", cfg.Observability.LogFormat)
	require.Equal(t, 20*time.Second, cfg.Ledger.Timeout)
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Setenv("K_FACTOR", "0.5")
	t.Setenv("HTTP_ADDR", ":9999")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, "0.5", cfg.Game.KFactor)
	require.Equal(t, ":9999", cfg.HTTP.Addr)
	require.Equal(t, 0, cfg.Game.AllowedMin)
	require.Equal(t, 100, cfg.Game.AllowedMax)
}

func TestLoadConfig_BadEnv(t *testing.T) {
	t.Setenv("ALLOWED_MAX", "lots")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseKFactor(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "2/3", want: 2.0 / 3.0},
		{in: " 0.5 ", want: 0.5},
		{in: "1", want: 1},
		{in: "0", wantErr: true},
		{in: "-1/3", wantErr: true},
		{in: "two thirds", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKFactor(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestGameConfig_Windows(t *testing.T) {
	anchor := clock.NewAnchor(time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC))

	t.Run("absolute and relative", func(t *testing.T) {
		g := GameConfig{
			CommitDeadline: "2025-05-01T09:00:00Z",
			RevealOpen:     "in 2 hours",
			Timezone:       "UTC",
		}
		w, err := g.Windows(anchor)
		require.NoError(t, err)
		require.Equal(t, time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC), w.CommitDeadline)
		require.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC), w.RevealOpen)
		require.True(t, w.RevealClose.IsZero())
	})

	t.Run("close before open", func(t *testing.T) {
		g := GameConfig{RevealOpen: "2025-05-02T00:00:00Z", RevealClose: "2025-05-01T00:00:00Z"}
		_, err := g.Windows(anchor)
		require.Error(t, err)
	})

	t.Run("bad timezone", func(t *testing.T) {
		_, err := GameConfig{Timezone: "Mars/Olympus"}.Windows(anchor)
		require.Error(t, err)
	})
}

func TestGameConfig_Params(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults()

	p, err := cfg.Game.Params()
	require.NoError(t, err)
	require.Equal(t, consensusdomain.DefaultParams(), p)

	_, err = GameConfig{KFactor: "1", AllowedMin: 10, AllowedMax: 1}.Params()
	require.ErrorIs(t, err, consensusdomain.ErrInvalidParams)
}
