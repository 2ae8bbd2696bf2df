package ledgerclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
)

func TestClient_FetchTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("table") {
		case "commits":
			w.Write([]byte("\xEF\xBB\xBFtimestamp_utc, uni_id ,commit\r\n2025-01-01T00:00:00Z,s1,abc\r\n\r\n2025-01-01T00:00:01Z,s2\r\n"))
		case "reveals":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("sheet exploded"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/exec")
	require.NoError(t, err)

	rows, err := c.FetchTable(context.Background(), ledgerdomain.TableCommits)
	require.NoError(t, err)
	require.Equal(t, []consensusdomain.Row{
		{"timestamp_utc": "2025-01-01T00:00:00Z", "uni_id": "s1", "commit": "abc"},
		{"timestamp_utc": "2025-01-01T00:00:01Z", "uni_id": "s2", "commit": ""},
	}, rows)

	_, err = c.FetchTable(context.Background(), ledgerdomain.TableReveals)
	require.ErrorIs(t, err, ErrFetch)
	require.ErrorContains(t, err, "sheet exploded")
}

func TestClient_FetchTableTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.FetchTable(context.Background(), ledgerdomain.TableCommits)
	require.ErrorIs(t, err, ErrFetch)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.FetchTable(context.Background(), ledgerdomain.TableCommits)
	require.True(t, errors.Is(err, ErrFetch))
}

func TestClient_Submit(t *testing.T) {
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		got = append(got, m)
		if m["uni_id"] == "blocked" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"commit window is closed"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := c.SubmitCommit(ctx, "s1", "deadbeef")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	_, err = c.SubmitReveal(ctx, "s1", 42, "")
	require.NoError(t, err)

	res, err = c.SubmitCommit(ctx, "blocked", "deadbeef")
	require.ErrorIs(t, err, ErrSubmit)
	require.Equal(t, http.StatusForbidden, res.StatusCode)
	require.Contains(t, res.Body, "window")

	require.Equal(t, map[string]any{"kind": "commit", "uni_id": "s1", "commit": "deadbeef"}, got[0])
	// JSON numbers decode as float64; nonce must be present even when empty.
	require.Equal(t, map[string]any{"kind": "reveal", "uni_id": "s1", "number": float64(42), "nonce": ""}, got[1])
}

func TestDecodeCSV_Empty(t *testing.T) {
	rows, err := DecodeCSV([]byte("\xEF\xBB\xBF  \n"))
	require.NoError(t, err)
	require.Empty(t, rows)

	rows, err = DecodeCSV([]byte("timestamp_utc,uni_id,number,nonce\n"))
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("not a url")
	require.Error(t, err)
}
