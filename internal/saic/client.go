// Package saic talks to the SAIC/MG iSmart cloud gateway.
package saic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Client is a session-holding iSmart gateway client. All operations
// are safe for concurrent use; the poller and the command API share
// one instance.
type Client struct {
	baseURL  string
	http     *http.Client
	username string
	password string
	cache    TokenCache
	log      zerolog.Logger

	mu           sync.Mutex
	token        *oauth2.Token
	cacheChecked bool
}

var _ oauth2.TokenSource = (*Client)(nil)

// NewClient builds a gateway client. cache may be nil; tokens are then
// held in memory only.
func NewClient(cfg Config, cache TokenCache, log zerolog.Logger) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("saic credentials are required")
	}
	base, err := cfg.endpoint()
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:  base,
		http:     &http.Client{Timeout: 30 * time.Second},
		username: cfg.Username,
		password: cfg.Password,
		cache:    cache,
		log:      log.With().Str("component", "saic").Logger(),
	}, nil
}

// VehicleList returns the cars registered on the account.
func (c *Client) VehicleList(ctx context.Context) ([]Vehicle, error) {
	var data VehicleListResponse
	if err := c.getJSON(ctx, "vehicle/list", nil, &data); err != nil {
		return nil, err
	}
	if len(data.VinList) == 0 {
		return nil, ErrNoVehicles
	}
	return data.VinList, nil
}

// VehicleStatus fetches the basic status and GPS way point.
func (c *Client) VehicleStatus(ctx context.Context, vin string) (*VehicleStatus, error) {
	var data VehicleStatus
	if err := c.getJSON(ctx, "vehicle/status", url.Values{"vin": {vin}}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ChargingStatus fetches the charging-management data.
func (c *Client) ChargingStatus(ctx context.Context, vin string) (*ChargingStatus, error) {
	var data ChargingStatus
	if err := c.getJSON(ctx, "vehicle/charging/mgmtData", url.Values{"vin": {vin}}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Lock locks the doors.
func (c *Client) Lock(ctx context.Context, vin string) error {
	return c.postJSON(ctx, "vehicle/control/lock", map[string]any{"vin": vin, "lock": true})
}

// Unlock unlocks the doors.
func (c *Client) Unlock(ctx context.Context, vin string) error {
	return c.postJSON(ctx, "vehicle/control/lock", map[string]any{"vin": vin, "lock": false})
}

// StartClimate starts the remote A/C.
func (c *Client) StartClimate(ctx context.Context, vin string) error {
	return c.postJSON(ctx, "vehicle/control/climate", map[string]any{"vin": vin, "action": "start"})
}

// StopClimate stops the remote A/C.
func (c *Client) StopClimate(ctx context.Context, vin string) error {
	return c.postJSON(ctx, "vehicle/control/climate", map[string]any{"vin": vin, "action": "stop"})
}

// ControlCharging starts or stops the charge session.
func (c *Client) ControlCharging(ctx context.Context, vin string, stop bool) error {
	return c.postJSON(ctx, "vehicle/charging/control", map[string]any{"vin": vin, "stopCharging": stop})
}

// SetTargetSOC sets the charge target and, optionally, the AC current
// limit. Pass CurrentIgnore to leave the current limit untouched.
func (c *Client) SetTargetSOC(ctx context.Context, vin string, target TargetBatteryCode, current ChargeCurrentLimitCode) error {
	body := map[string]any{"vin": vin, "targetSoc": int(target)}
	if current != CurrentIgnore {
		body["chargeCurrentLimit"] = int(current)
	}
	return c.postJSON(ctx, "vehicle/charging/targetSoc", body)
}

// ControlHeatedSeats sets both front seat heat levels (0..3). The
// gateway only accepts both sides together.
func (c *Client) ControlHeatedSeats(ctx context.Context, vin string, left, right int) error {
	return c.postJSON(ctx, "vehicle/control/heatedSeats", map[string]any{
		"vin": vin, "leftSideLevel": left, "rightSideLevel": right,
	})
}

// SetScheduledCharging configures the reservation window and mode.
func (c *Client) SetScheduledCharging(ctx context.Context, vin string, start, end string, mode ScheduledChargingMode) error {
	return c.postJSON(ctx, "vehicle/charging/schedule", map[string]any{
		"vin": vin, "startTime": start, "endTime": end, "mode": int(mode),
	})
}

// ControlBatteryHeating enables or disables pack preheating.
func (c *Client) ControlBatteryHeating(ctx context.Context, vin string, enable bool) error {
	return c.postJSON(ctx, "vehicle/charging/batteryHeating", map[string]any{"vin": vin, "enable": enable})
}

// ControlPortLock locks or unlocks the charging port.
func (c *Client) ControlPortLock(ctx context.Context, vin string, unlock bool) error {
	return c.postJSON(ctx, "vehicle/charging/portLock", map[string]any{"vin": vin, "unlock": unlock})
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.doAuthed(ctx, req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+strings.TrimPrefix(path, "/"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doAuthed(ctx, req, nil)
}

func (c *Client) doAuthed(ctx context.Context, req *http.Request, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	token.SetAuthHeader(req)
	return c.do(req, out)
}

// do executes a request and unwraps the gateway envelope. Every
// response, errors included, arrives as {code, message, data}.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return APIError{HTTPStatus: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Code != 0 {
		return APIError{HTTPStatus: resp.StatusCode, Code: envelope.Code, Message: envelope.Message}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
