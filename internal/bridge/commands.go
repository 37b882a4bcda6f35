package bridge

import (
	"context"
	"fmt"
	"sync"

	"mgbridge/internal/saic"
)

// Commander executes remote vehicle commands against the discovered
// VIN. It mirrors the selector level conventions of the Domoticz
// devices so the HTTP API and the dashboard speak the same units.
type Commander struct {
	client VehicleAPI

	mu  sync.RWMutex
	vin string

	// Seat levels track the last commanded state because the vendor
	// API only accepts both sides at once.
	seatLeft  int
	seatRight int
}

func NewCommander(client VehicleAPI) *Commander {
	return &Commander{client: client}
}

// SetVIN is called by the poller once vehicle discovery completes.
func (c *Commander) SetVIN(vin string) {
	c.mu.Lock()
	c.vin = vin
	c.mu.Unlock()
}

func (c *Commander) currentVIN() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vin == "" {
		return "", fmt.Errorf("no vehicle discovered yet")
	}
	return c.vin, nil
}

// Lock locks (true) or unlocks (false) the doors.
func (c *Commander) Lock(ctx context.Context, lock bool) error {
	vin, err := c.currentVIN()
	if err != nil {
		return err
	}
	if lock {
		return c.client.Lock(ctx, vin)
	}
	return c.client.Unlock(ctx, vin)
}

// Climate starts or stops the remote A/C.
func (c *Commander) Climate(ctx context.Context, on bool) error {
	vin, err := c.currentVIN()
	if err != nil {
		return err
	}
	if on {
		return c.client.StartClimate(ctx, vin)
	}
	return c.client.StopClimate(ctx, vin)
}

// Charging starts or stops an active charge.
func (c *Commander) Charging(ctx context.Context, start bool) error {
	vin, err := c.currentVIN()
	if err != nil {
		return err
	}
	return c.client.ControlCharging(ctx, vin, !start)
}

// SetChargeLimit sets the target SoC from a selector level (10..70,
// steps of 10, mapping to 40%..100%).
func (c *Commander) SetChargeLimit(ctx context.Context, level int) error {
	vin, err := c.currentVIN()
	if err != nil {
		return err
	}
	percent, ok := chargeLimitForLevel(level)
	if !ok {
		return fmt.Errorf("invalid charge limit level %d", level)
	}
	code, _ := saic.TargetBatteryCodeForPercent(percent)
	return c.client.SetTargetSOC(ctx, vin, code, saic.CurrentIgnore)
}

// SetChargeCurrentLimit sets the AC current ceiling from a selector
// level (10=6A, 20=8A, 30=16A, 40=MAX). The vendor call requires a
// target SoC alongside, so the current one is read back first and 80%
// used as fallback.
func (c *Commander) SetChargeCurrentLimit(ctx context.Context, level int) error {
	vin, err := c.currentVIN()
	if err != nil {
		return err
	}
	if level < 10 || level > 40 || level%10 != 0 {
		return fmt.Errorf("invalid charge current level %d", level)
	}
	current := saic.ChargeCurrentLimitCode(level / 10)

	target := saic.TargetSOC80
	if status, err := c.client.ChargingStatus(ctx, vin); err == nil {
		if code := saic.TargetBatteryCode(status.ChrgMgmtData.BmsOnBdChrgTrgtSOCDspCmd); code.Percent() > 0 {
			target = code
		}
	}
	return c.client.SetTargetSOC(ctx, vin, target, current)
}

// SetHeatedSeat sets one side's heat level (0..3). The other side is
// re-sent at its last known level.
func (c *Commander) SetHeatedSeat(ctx context.Context, side string, level int) error {
	vin, err := c.currentVIN()
	if err != nil {
		return err
	}
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid seat heat level %d", level)
	}

	c.mu.Lock()
	switch side {
	case "left":
		c.seatLeft = level
	case "right":
		c.seatRight = level
	default:
		c.mu.Unlock()
		return fmt.Errorf("invalid seat side %q", side)
	}
	left, right := c.seatLeft, c.seatRight
	c.mu.Unlock()

	return c.client.ControlHeatedSeats(ctx, vin, left, right)
}

// ObserveSeatLevels lets the poller refresh the cached seat state from
// telemetry so one-sided commands keep the other side unchanged.
func (c *Commander) ObserveSeatLevels(left, right int) {
	c.mu.Lock()
	c.seatLeft, c.seatRight = left, right
	c.mu.Unlock()
}

// Scheduled charging defaults when the mode is switched without an
// explicit window.
const (
	defaultScheduleStart = "20:00"
	defaultScheduleEnd   = "06:00"
)

// SetScheduledCharging sets the reservation mode from a selector level
// (0=disabled, 10=until time, 20=until SoC).
func (c *Commander) SetScheduledCharging(ctx context.Context, level int) error {
	vin, err := c.currentVIN()
	if err != nil {
		return err
	}

	var mode saic.ScheduledChargingMode
	switch level {
	case 0:
		mode = saic.ScheduleDisabled
	case 10:
		mode = saic.ScheduleUntilTime
	case 20:
		mode = saic.ScheduleUntilSOC
	default:
		return fmt.Errorf("invalid scheduled charging level %d", level)
	}
	return c.client.SetScheduledCharging(ctx, vin, defaultScheduleStart, defaultScheduleEnd, mode)
}

// BatteryHeating enables or disables pack preheating.
func (c *Commander) BatteryHeating(ctx context.Context, on bool) error {
	vin, err := c.currentVIN()
	if err != nil {
		return err
	}
	return c.client.ControlBatteryHeating(ctx, vin, on)
}

// PortLock locks (true) or unlocks (false) the charging port.
func (c *Commander) PortLock(ctx context.Context, lock bool) error {
	vin, err := c.currentVIN()
	if err != nil {
		return err
	}
	return c.client.ControlPortLock(ctx, vin, !lock)
}

func chargeLimitForLevel(level int) (int, bool) {
	switch level {
	case 10:
		return 40, true
	case 20:
		return 50, true
	case 30:
		return 60, true
	case 40:
		return 70, true
	case 50:
		return 80, true
	case 60:
		return 90, true
	case 70:
		return 100, true
	default:
		return 0, false
	}
}
