package domoticz

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Plan is a Domoticz room plan.
type Plan struct {
	Idx  int
	Name string
}

// Plans lists the configured room plans.
func (c *Client) Plans(ctx context.Context) ([]Plan, error) {
	params := command("getplans")
	params.Set("order", "name")
	params.Set("used", "true")
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
			return nil, fmt.Errorf("decode plans: %w", err)
		}
	}

	plans := make([]Plan, 0, len(raw))
	for _, p := range raw {
		idx, err := strconv.Atoi(p.Idx)
		if err != nil {
			continue
		}
		plans = append(plans, Plan{Idx: idx, Name: p.Name})
	}
	return plans, nil
}

// AddPlan creates a room plan.
func (c *Client) AddPlan(ctx context.Context, name string) error {
	params := command("addplan")
	params.Set("name", name)
	_, err := c.call(ctx, params)
	return err
}

// AddDeviceToPlan attaches a device to a room plan.
func (c *Client) AddDeviceToPlan(ctx context.Context, deviceIdx, planIdx int) error {
	params := command("addplanactivedevice")
	params.Set("idx", strconv.Itoa(planIdx))
	params.Set("activeidx", strconv.Itoa(deviceIdx))
	params.Set("activetype", "0")
	_, err := c.call(ctx, params)
	return err
}

// assignRoomPlan finds or creates the vehicle's plan and attaches all
// mapped devices to it.
func (c *Client) assignRoomPlan(ctx context.Context, vehicleName string, mapping DeviceMap) error {
	planName := strings.ReplaceAll(vehicleName, " ", "-")

	planIdx, err := c.findPlan(ctx, planName)
	if err != nil {
		return err
	}
	if planIdx == 0 {
		if err := c.AddPlan(ctx, planName); err != nil {
			return fmt.Errorf("add plan %q: %w", planName, err)
		}
		if planIdx, err = c.findPlan(ctx, planName); err != nil {
			return err
		}
		if planIdx == 0 {
			return fmt.Errorf("plan %q missing after creation", planName)
		}
	}

	for _, deviceIdx := range mapping {
		if err := c.AddDeviceToPlan(ctx, deviceIdx, planIdx); err != nil {
			c.log.Warn().Err(err).Int("device", deviceIdx).Msg("adding device to plan failed")
		}
	}
	return nil
}

func (c *Client) findPlan(ctx context.Context, name string) (int, error) {
	plans, err := c.Plans(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range plans {
		if p.Name == name {
			return p.Idx, nil
		}
	}
	return 0, nil
}
