package ledgerclient

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
)

const (
	defaultTimeout = 20 * time.Second
	maxRedirects   = 5
	maxBodyBytes   = 32 << 20
	userAgent      = "beauty-contest/1.0"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Client talks to a ledger at a base URL. GET base?table=<name> returns CSV
// and POST base accepts a JSON submission.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ledger url %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		http: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the ledger URL as configured.
func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) tableURL(table ledgerdomain.Table) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("table", string(table))
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchTable downloads one table and decodes it into loose rows keyed by the
// header. Rows come back in ledger order.
func (c *Client) FetchTable(ctx context.Context, table ledgerdomain.Table) ([]consensusdomain.Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(table), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, table, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/csv, */*")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, table, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: %s: %s", ErrFetch, table, resp.Status, snippet(body))
	}

	rows, err := DecodeCSV(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, table, err)
	}

	c.logger.DebugContext(ctx, "Fetched ledger table",
		attr.String("table", string(table)),
		attr.Int("rows", len(rows)),
		attr.Duration("duration", time.Since(start)),
	)
	return rows, nil
}

// DecodeCSV turns a header-first CSV document into rows. A leading BOM is
// ignored, header names are trimmed, short rows are padded with empty values
// and blank lines are skipped.
func DecodeCSV(data []byte) ([]consensusdomain.Row, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []consensusdomain.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		row := make(consensusdomain.Row, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SubmitResult is the ledger's answer to a POST.
type SubmitResult struct {
	StatusCode int
	Body       string
}

type commitPayload struct {
	Kind   string `json:"kind"`
	UniID  string `json:"uni_id"`
	Commit string `json:"commit"`
}

type revealPayload struct {
	Kind   string `json:"kind"`
	UniID  string `json:"uni_id"`
	Number int    `json:"number"`
	Nonce  string `json:"nonce"`
}

// SubmitCommit posts {kind: commit, uni_id, commit}.
func (c *Client) SubmitCommit(ctx context.Context, uniID, digest string) (SubmitResult, error) {
	return c.submit(ctx, commitPayload{Kind: string(ledgerdomain.KindCommit), UniID: uniID, Commit: digest})
}

// SubmitReveal posts {kind: reveal, uni_id, number, nonce}. The number goes
// out as a JSON integer.
func (c *Client) SubmitReveal(ctx context.Context, uniID string, number int, nonce string) (SubmitResult, error) {
	return c.submit(ctx, revealPayload{Kind: string(ledgerdomain.KindReveal), UniID: uniID, Number: number, Nonce: nonce})
}

func (c *Client) submit(ctx context.Context, payload any) (SubmitResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String(), bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if id := attr.CorrelationID(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	res := SubmitResult{StatusCode: resp.StatusCode, Body: string(respBody)}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("%w: %s: %s", ErrSubmit, resp.Status, snippet(respBody))
	}
	return res, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
