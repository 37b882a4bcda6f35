package bridge

import (
	"context"
	"testing"

	"mgbridge/internal/saic"
)

// fakeAPI records vendor calls and plays back canned responses.
type fakeAPI struct {
	vehicles []saic.Vehicle
	status   *saic.VehicleStatus
	charging *saic.ChargingStatus

	listErr     error
	statusErr   error
	chargingErr error

	calls       []string
	targetSOC   saic.TargetBatteryCode
	currentCode saic.ChargeCurrentLimitCode
	seatLeft    int
	seatRight   int
	scheduleArg saic.ScheduledChargingMode
	startArg    string
	endArg      string
	stopArg     bool
	unlockArg   bool
	enableArg   bool
	invalidated int
}

func (f *fakeAPI) VehicleList(context.Context) ([]saic.Vehicle, error) {
	f.calls = append(f.calls, "VehicleList")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.vehicles, nil
}

func (f *fakeAPI) VehicleStatus(context.Context, string) (*saic.VehicleStatus, error) {
	f.calls = append(f.calls, "VehicleStatus")
	return f.status, f.statusErr
}

func (f *fakeAPI) ChargingStatus(context.Context, string) (*saic.ChargingStatus, error) {
	f.calls = append(f.calls, "ChargingStatus")
	return f.charging, f.chargingErr
}

func (f *fakeAPI) Lock(context.Context, string) error {
	f.calls = append(f.calls, "Lock")
	return nil
}

func (f *fakeAPI) Unlock(context.Context, string) error {
	f.calls = append(f.calls, "Unlock")
	return nil
}

func (f *fakeAPI) StartClimate(context.Context, string) error {
	f.calls = append(f.calls, "StartClimate")
	return nil
}

func (f *fakeAPI) StopClimate(context.Context, string) error {
	f.calls = append(f.calls, "StopClimate")
	return nil
}

func (f *fakeAPI) ControlCharging(_ context.Context, _ string, stop bool) error {
	f.calls = append(f.calls, "ControlCharging")
	f.stopArg = stop
	return nil
}

func (f *fakeAPI) SetTargetSOC(_ context.Context, _ string, target saic.TargetBatteryCode, current saic.ChargeCurrentLimitCode) error {
	f.calls = append(f.calls, "SetTargetSOC")
	f.targetSOC = target
	f.currentCode = current
	return nil
}

func (f *fakeAPI) ControlHeatedSeats(_ context.Context, _ string, left, right int) error {
	f.calls = append(f.calls, "ControlHeatedSeats")
	f.seatLeft, f.seatRight = left, right
	return nil
}

func (f *fakeAPI) SetScheduledCharging(_ context.Context, _ string, start, end string, mode saic.ScheduledChargingMode) error {
	f.calls = append(f.calls, "SetScheduledCharging")
	f.startArg, f.endArg, f.scheduleArg = start, end, mode
	return nil
}

func (f *fakeAPI) ControlBatteryHeating(_ context.Context, _ string, enable bool) error {
	f.calls = append(f.calls, "ControlBatteryHeating")
	f.enableArg = enable
	return nil
}

func (f *fakeAPI) ControlPortLock(_ context.Context, _ string, unlock bool) error {
	f.calls = append(f.calls, "ControlPortLock")
	f.unlockArg = unlock
	return nil
}

func (f *fakeAPI) InvalidateToken(context.Context) {
	f.invalidated++
}

func (f *fakeAPI) lastCall() string {
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func newTestCommander(api *fakeAPI) *Commander {
	c := NewCommander(api)
	c.SetVIN("LSJW0000000000000")
	return c
}

func TestCommanderRequiresVIN(t *testing.T) {
	c := NewCommander(&fakeAPI{})
	if err := c.Lock(context.Background(), true); err == nil {
		t.Fatal("expected error before vehicle discovery")
	}
}

func TestCommanderLockUnlock(t *testing.T) {
	api := &fakeAPI{}
	c := newTestCommander(api)
	ctx := context.Background()

	if err := c.Lock(ctx, true); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if api.lastCall() != "Lock" {
		t.Errorf("last call = %s", api.lastCall())
	}
	if err := c.Lock(ctx, false); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if api.lastCall() != "Unlock" {
		t.Errorf("last call = %s", api.lastCall())
	}
}

func TestCommanderCharging(t *testing.T) {
	api := &fakeAPI{}
	c := newTestCommander(api)

	if err := c.Charging(context.Background(), false); err != nil {
		t.Fatalf("Charging: %v", err)
	}
	if !api.stopArg {
		t.Error("stop flag not set when stopping charge")
	}
}

func TestCommanderSetChargeLimit(t *testing.T) {
	api := &fakeAPI{}
	c := newTestCommander(api)
	ctx := context.Background()

	if err := c.SetChargeLimit(ctx, 50); err != nil {
		t.Fatalf("SetChargeLimit: %v", err)
	}
	if api.targetSOC != saic.TargetSOC80 {
		t.Errorf("target = %v, want P_80", api.targetSOC)
	}
	if api.currentCode != saic.CurrentIgnore {
		t.Errorf("current = %v, want ignore", api.currentCode)
	}

	if err := c.SetChargeLimit(ctx, 35); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestCommanderSetChargeCurrentLimitKeepsTarget(t *testing.T) {
	api := &fakeAPI{
		charging: &saic.ChargingStatus{
			ChrgMgmtData: saic.ChrgMgmtData{BmsOnBdChrgTrgtSOCDspCmd: 6}, // 90%
		},
	}
	c := newTestCommander(api)

	if err := c.SetChargeCurrentLimit(context.Background(), 30); err != nil {
		t.Fatalf("SetChargeCurrentLimit: %v", err)
	}
	if api.currentCode != saic.Current16A {
		t.Errorf("current = %v, want 16A", api.currentCode)
	}
	if api.targetSOC != saic.TargetSOC90 {
		t.Errorf("target = %v, want to keep 90%%", api.targetSOC)
	}
}

func TestCommanderSetChargeCurrentLimitFallsBackTo80(t *testing.T) {
	api := &fakeAPI{chargingErr: saic.ErrNoVehicles}
	c := newTestCommander(api)

	if err := c.SetChargeCurrentLimit(context.Background(), 40); err != nil {
		t.Fatalf("SetChargeCurrentLimit: %v", err)
	}
	if api.targetSOC != saic.TargetSOC80 {
		t.Errorf("target = %v, want default 80%%", api.targetSOC)
	}
	if api.currentCode != saic.CurrentMax {
		t.Errorf("current = %v, want MAX", api.currentCode)
	}
}

func TestCommanderHeatedSeatsPreserveOtherSide(t *testing.T) {
	api := &fakeAPI{}
	c := newTestCommander(api)
	c.ObserveSeatLevels(0, 2)

	if err := c.SetHeatedSeat(context.Background(), "left", 3); err != nil {
		t.Fatalf("SetHeatedSeat: %v", err)
	}
	if api.seatLeft != 3 || api.seatRight != 2 {
		t.Errorf("seats = %d/%d, want 3/2", api.seatLeft, api.seatRight)
	}

	if err := c.SetHeatedSeat(context.Background(), "middle", 1); err == nil {
		t.Error("expected error for invalid side")
	}
}

func TestCommanderScheduledCharging(t *testing.T) {
	api := &fakeAPI{}
	c := newTestCommander(api)

	if err := c.SetScheduledCharging(context.Background(), 20); err != nil {
		t.Fatalf("SetScheduledCharging: %v", err)
	}
	if api.scheduleArg != saic.ScheduleUntilSOC {
		t.Errorf("mode = %v, want until SOC", api.scheduleArg)
	}
	if api.startArg != "20:00" || api.endArg != "06:00" {
		t.Errorf("window = %s-%s, want default 20:00-06:00", api.startArg, api.endArg)
	}
}

func TestCommanderPortLock(t *testing.T) {
	api := &fakeAPI{}
	c := newTestCommander(api)

	if err := c.PortLock(context.Background(), false); err != nil {
		t.Fatalf("PortLock: %v", err)
	}
	if !api.unlockArg {
		t.Error("unlock flag not set")
	}
}
