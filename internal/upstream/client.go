package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/meracare/frontdesk/internal/queue"
	"github.com/meracare/frontdesk/internal/shared/config"
	"github.com/meracare/frontdesk/internal/shared/errors"
)

// Client talks to the HIS gateway. It is both the snapshot source for the
// reconciliation store and the command sink for operator actions. Snapshots
// are decoded through the normalization layer; commands carry an
// Idempotency-Key derived from the natural key so a retried request cannot
// double-apply on the HIS side.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a gateway client from configuration.
func New(cfg config.UpstreamConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

// FetchWaitingQueue retrieves today's clinic queue snapshot.
func (c *Client) FetchWaitingQueue(ctx context.Context) (queue.Snapshot, error) {
	body, err := c.get(ctx, "/api/v1/queue", url.Values{
		"type": {"clinic"},
		"date": {today()},
	})
	if err != nil {
		return queue.Snapshot{}, err
	}
	return queue.DecodeSnapshot(body)
}

// FetchImagingQueue retrieves today's imaging queue snapshot.
func (c *Client) FetchImagingQueue(ctx context.Context) (queue.Snapshot, error) {
	body, err := c.get(ctx, "/api/v1/queue", url.Values{
		"type": {"imaging"},
		"date": {today()},
	})
	if err != nil {
		return queue.Snapshot{}, err
	}
	return queue.DecodeSnapshot(body)
}

// SearchQueue retrieves a queue snapshot filtered server-side by a patient
// search term. Results are normalized but bypass the store: search is an
// on-demand view, not a cached domain.
func (c *Client) SearchQueue(ctx context.Context, queueType, search string) (queue.Snapshot, error) {
	body, err := c.get(ctx, "/api/v1/queue", url.Values{
		"type":   {queueType},
		"date":   {today()},
		"search": {search},
	})
	if err != nil {
		return queue.Snapshot{}, err
	}
	return queue.DecodeSnapshot(body)
}

// FetchStats retrieves the dashboard counters.
func (c *Client) FetchStats(ctx context.Context) (queue.DashboardStats, error) {
	body, err := c.get(ctx, "/api/v1/stats", nil)
	if err != nil {
		return queue.DashboardStats{}, err
	}
	return queue.DecodeStats(body)
}

// FetchRoster retrieves today's doctor roster.
func (c *Client) FetchRoster(ctx context.Context) ([]queue.DoctorRosterEntry, error) {
	body, err := c.get(ctx, "/api/v1/doctors", nil)
	if err != nil {
		return nil, err
	}
	return queue.DecodeRoster(body)
}

// FetchRadiologists retrieves today's radiologist roster.
func (c *Client) FetchRadiologists(ctx context.Context) ([]queue.DoctorRosterEntry, error) {
	body, err := c.get(ctx, "/api/v1/radiologists", nil)
	if err != nil {
		return nil, err
	}
	return queue.DecodeRoster(body)
}

// FetchAppRequests retrieves pending patient-app requests.
func (c *Client) FetchAppRequests(ctx context.Context) ([]queue.AppSyncRequest, error) {
	body, err := c.get(ctx, "/api/v1/app/requests", nil)
	if err != nil {
		return nil, err
	}
	return queue.DecodeAppRequests(body)
}

// FetchPendingOrders retrieves pending orders, optionally filtered by type.
// Callers group the result per patient on every call; the order list is
// never cached in the store.
func (c *Client) FetchPendingOrders(ctx context.Context, typ queue.OrderType) ([]queue.Order, error) {
	params := url.Values{}
	if typ != "" {
		params.Set("type", string(typ))
	}
	body, err := c.get(ctx, "/api/v1/orders/pending", params)
	if err != nil {
		return nil, err
	}
	return queue.DecodeOrders(body)
}

// ConfirmOrder asks the HIS to confirm a pending order.
func (c *Client) ConfirmOrder(ctx context.Context, orderID string) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/orders/%s/confirm", orderID), nil,
		ConfirmOrderKey(orderID))
}

// AssignDoctor asks the HIS to route an order to a doctor or radiologist.
func (c *Client) AssignDoctor(ctx context.Context, orderID, doctorID string) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/orders/%s/assign", orderID),
		map[string]string{"doctor_id": doctorID},
		AssignDoctorKey(orderID, doctorID))
}

// SetEncounterState requests a workflow state transition for an encounter.
// The HIS validates the transition; an illegal one comes back as a rejection.
func (c *Client) SetEncounterState(ctx context.Context, encounterID string, state queue.WorkflowState) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/encounters/%s/state", encounterID),
		map[string]string{"state": string(state)},
		SetStateKey(encounterID, state))
}

// SubmitMeasurements records vitals captured at the front desk.
func (c *Client) SubmitMeasurements(ctx context.Context, encounterID string, measurements map[string]any) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/encounters/%s/measurements", encounterID),
		measurements,
		MeasurementsKey(encounterID))
}

// CancelEncounter asks the HIS to cancel an encounter.
func (c *Client) CancelEncounter(ctx context.Context, encounterID, reason string) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/encounters/%s/cancel", encounterID),
		map[string]string{"reason": reason},
		CancelEncounterKey(encounterID))
}

// ApproveAppRequest approves a patient-app request.
func (c *Client) ApproveAppRequest(ctx context.Context, requestID string) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/app/requests/%s/approve", requestID), nil,
		ApproveRequestKey(requestID))
}

// RejectAppRequest rejects a patient-app request.
func (c *Client) RejectAppRequest(ctx context.Context, requestID, reason string) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/app/requests/%s/reject", requestID),
		map[string]string{"reason": reason},
		RejectRequestKey(requestID))
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Internal(err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Upstream(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Upstream(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Upstream(fmt.Errorf("GET %s: status %d", path, resp.StatusCode))
	}
	return body, nil
}

// post issues a command under the given idempotency key.
func (c *Client) post(ctx context.Context, path string, payload any, key string) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Internal(err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return errors.Internal(err)
	}
	c.setHeaders(req)
	req.Header.Set("Idempotency-Key", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Upstream(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return errors.CommandRejected(rejectionReason(respBody), resp.StatusCode)
	}
	return errors.Upstream(fmt.Errorf("POST %s: status %d", path, resp.StatusCode))
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// rejectionReason extracts the HIS rejection message so it can be shown to
// the operator verbatim.
func rejectionReason(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Reason != "":
		return payload.Reason
	default:
		return payload.Error
	}
}

func today() string {
	return time.Now().Format("2006-01-02")
}
