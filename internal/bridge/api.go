package bridge

import (
	"context"

	"mgbridge/internal/saic"
)

// VehicleAPI is the slice of the iSmart client the bridge consumes.
type VehicleAPI interface {
	VehicleList(ctx context.Context) ([]saic.Vehicle, error)
	VehicleStatus(ctx context.Context, vin string) (*saic.VehicleStatus, error)
	ChargingStatus(ctx context.Context, vin string) (*saic.ChargingStatus, error)

	Lock(ctx context.Context, vin string) error
	Unlock(ctx context.Context, vin string) error
	StartClimate(ctx context.Context, vin string) error
	StopClimate(ctx context.Context, vin string) error
	ControlCharging(ctx context.Context, vin string, stop bool) error
	SetTargetSOC(ctx context.Context, vin string, target saic.TargetBatteryCode, current saic.ChargeCurrentLimitCode) error
	ControlHeatedSeats(ctx context.Context, vin string, left, right int) error
	SetScheduledCharging(ctx context.Context, vin string, start, end string, mode saic.ScheduledChargingMode) error
	ControlBatteryHeating(ctx context.Context, vin string, enable bool) error
	ControlPortLock(ctx context.Context, vin string, unlock bool) error

	InvalidateToken(ctx context.Context)
}

var _ VehicleAPI = (*saic.Client)(nil)
