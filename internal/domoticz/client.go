// Package domoticz is a client for the Domoticz JSON HTTP API
// (/json.htm). The bridge owns a set of virtual devices on a dummy
// hardware and pushes vehicle telemetry into them.
package domoticz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to a local Domoticz instance.
type Client struct {
	baseURL     string
	hardwareIdx int
	http        *http.Client
	log         zerolog.Logger
}

func NewClient(baseURL string, hardwareIdx int, log zerolog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		hardwareIdx: hardwareIdx,
		http:        &http.Client{Timeout: 10 * time.Second},
		log:         log.With().Str("component", "domoticz").Logger(),
	}
}

// apiResponse is the common JSON envelope.
type apiResponse struct {
	Status  string          `json:"status"`
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Idx     string          `json:"idx"`
	Result  json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, params url.Values) (*apiResponse, error) {
	reqURL := c.baseURL + "/json.htm?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("domoticz request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("domoticz http %d", resp.StatusCode)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode domoticz response: %w", err)
	}
	if out.Status != "OK" {
		msg := out.Message
		if msg == "" {
			msg = out.Status
		}
		op := params.Get("param")
		if op == "" {
			op = params.Get("type")
		}
		return nil, fmt.Errorf("domoticz api error for %q: %s", op, msg)
	}
	return &out, nil
}

func command(param string) url.Values {
	v := url.Values{}
	v.Set("type", "command")
	v.Set("param", param)
	return v
}

// UpdateDevice pushes nvalue/svalue into a device by idx.
func (c *Client) UpdateDevice(ctx context.Context, idx, nvalue int, svalue string) error {
	params := command("udevice")
	params.Set("idx", strconv.Itoa(idx))
	params.Set("nvalue", strconv.Itoa(nvalue))
	params.Set("svalue", svalue)
	_, err := c.call(ctx, params)
	return err
}

// DeviceInfo is the subset of getdevices output the bridge needs.
type DeviceInfo struct {
	Idx  int
	Name string
}

// Devices lists every device, used or not. Unused devices must stay
// discoverable by name or EnsureDevices would recreate them each poll.
func (c *Client) Devices(ctx context.Context) ([]DeviceInfo, error) {
	params := command("getdevices")
	params.Set("filter", "all")
	resp, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Idx  string `json:"idx"`
		Name string `json:"Name"`
	}
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &raw); err != nil {
			return nil, fmt.Errorf("decode devices: %w", err)
		}
	}

	devices := make([]DeviceInfo, 0, len(raw))
	for _, d := range raw {
		idx, err := strconv.Atoi(d.Idx)
		if err != nil {
			continue
		}
		devices = append(devices, DeviceInfo{Idx: idx, Name: d.Name})
	}
	return devices, nil
}

// CreateDevice creates a device on the bridge's dummy hardware and
// returns its idx.
func (c *Client) CreateDevice(ctx context.Context, name string, devType, subType int) (int, error) {
	params := url.Values{}
	params.Set("type", "createdevice")
	params.Set("idx", strconv.Itoa(c.hardwareIdx))
	params.Set("sensorname", name)
	params.Set("devicetype", strconv.Itoa(devType))
	params.Set("devicesubtype", strconv.Itoa(subType))
	resp, err := c.call(ctx, params)
	if err != nil {
		return 0, err
	}
	idx, err := strconv.Atoi(resp.Idx)
	if err != nil {
		return 0, fmt.Errorf("createdevice returned no idx for %q", name)
	}
	return idx, nil
}

// ConfigureDevice applies switch type, device options, and the used
// flag after creation (selector levels, axis units, dashboard
// visibility).
func (c *Client) ConfigureDevice(ctx context.Context, idx int, name string, switchType int, options string, used bool) error {
	params := command("setused")
	params.Set("idx", strconv.Itoa(idx))
	params.Set("name", name)
	params.Set("used", strconv.FormatBool(used))
	if switchType >= 0 {
		params.Set("switchtype", strconv.Itoa(switchType))
	}
	if options != "" {
		params.Set("deviceoptions", options)
	}
	_, err := c.call(ctx, params)
	return err
}

// SendNotification routes a message through the Domoticz notification
// subsystem (Telegram etc.).
func (c *Client) SendNotification(ctx context.Context, subject, body string) error {
	params := command("sendnotification")
	params.Set("subject", subject)
	params.Set("body", body)
	_, err := c.call(ctx, params)
	return err
}

// HomeLocation reads the configured home coordinates from the
// Domoticz settings. getsettings puts Location at the top level of
// the response, outside the usual result envelope.
func (c *Client) HomeLocation(ctx context.Context) (lat, lon float64, err error) {
	reqURL := c.baseURL + "/json.htm?" + command("getsettings").Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("domoticz request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("domoticz http %d", resp.StatusCode)
	}

	var settings struct {
		Status   string `json:"status"`
		Location struct {
			Latitude  string `json:"Latitude"`
			Longitude string `json:"Longitude"`
		} `json:"Location"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		return 0, 0, fmt.Errorf("decode settings: %w", err)
	}
	if settings.Status != "OK" {
		return 0, 0, fmt.Errorf("domoticz api error for \"getsettings\": %s", settings.Status)
	}

	lat, err = strconv.ParseFloat(settings.Location.Latitude, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse home latitude: %w", err)
	}
	lon, err = strconv.ParseFloat(settings.Location.Longitude, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse home longitude: %w", err)
	}
	return lat, lon, nil
}
