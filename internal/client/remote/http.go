package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/dmitrijs2005/promptvault/internal/logging"
)

// HTTPRemote implements Remote over the store's JSON API. The session is
// re-read on every request so a sign-in or sign-out made by another process
// (or by this one, after startup) takes effect without a restart.
type HTTPRemote struct {
	baseURL string
	client  *http.Client
	session func() models.Session
	log     logging.Logger
}

func NewHTTPRemote(baseURL string, session func() models.Session, log logging.Logger) *HTTPRemote {
	return &HTTPRemote{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		session: session,
		log:     log,
	}
}

func (r *HTTPRemote) sessionNow() models.Session {
	if r.session == nil {
		return models.Session{}
	}
	return r.session()
}

func (r *HTTPRemote) Ping(ctx context.Context) error {
	resp, err := r.doRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return r.checkStatus(resp)
}

func (r *HTTPRemote) Select(ctx context.Context, table models.Table, ownerID string) ([]models.Record, error) {
	path := fmt.Sprintf("/api/v1/%s?owner=%s&order=updated_at", table, url.QueryEscape(ownerID))
	resp, err := r.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := r.checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return decodeRecords(table, body)
}

func (r *HTTPRemote) Upsert(ctx context.Context, table models.Table, rec models.Record) error {
	return r.UpsertBatch(ctx, table, []models.Record{rec})
}

// UpsertBatch coalesces all same-direction writes for a table into one call;
// the server upserts on conflict by id.
func (r *HTTPRemote) UpsertBatch(ctx context.Context, table models.Table, recs []models.Record) error {
	if len(recs) == 0 {
		return nil
	}
	payload, err := encodeRecords(table, recs, r.sessionNow().UserID)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/api/v1/%s?on_conflict=id", table)
	resp, err := r.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return r.checkStatus(resp)
}

func (r *HTTPRemote) Delete(ctx context.Context, table models.Table, id string) error {
	path := fmt.Sprintf("/api/v1/%s/%s", table, url.PathEscape(id))
	resp, err := r.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return r.checkStatus(resp)
}

func (r *HTTPRemote) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := r.sessionNow().AccessToken; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// The caller cannot distinguish DNS failure from refused connection
		// and does not need to: everything maps to "defer and retry later".
		return nil, fmt.Errorf("%w: %v", common.ErrNotConnected, err)
	}
	return resp, nil
}

func (r *HTTPRemote) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return common.ErrNotAuthenticated
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", common.ErrNotConnected, resp.StatusCode)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", common.ErrRemoteRejected, resp.StatusCode, string(b))
	}
}
