// Package bridge maps iSmart telemetry onto Domoticz devices and runs
// the polling loop.
package bridge

import (
	"fmt"
	"strconv"

	"mgbridge/internal/domoticz"
	"mgbridge/internal/saic"
)

// Update is one pending device write.
type Update struct {
	Unit   int
	NValue int
	SValue string
}

// Reading bundles one poll's raw data plus caller-resolved context.
type Reading struct {
	Status   *saic.VehicleStatus
	Charging *saic.ChargingStatus

	// Position context, only meaningful when HasPosition is true.
	HasPosition bool
	AtHome      bool
	Address     string
}

// Summary carries the derived values the poller needs beyond the
// device updates themselves.
type Summary struct {
	IsCharging         bool
	SoCPercent         float64
	ChargeLimitPercent int
	RangeKm            int
	PowerW             float64
	OdometerKm         int
	AuxVoltage         *float64
	ExteriorTemp       *int
	InteriorTemp       *int
	SleepSignals       int
	Lat, Lon           float64
}

// Translate converts a reading into device updates, dropping every
// field that carries a sentinel or implausible value. Pure function;
// all poller state (sessions, notifications) stays with the caller.
func Translate(r Reading) ([]Update, Summary) {
	var updates []Update
	var sum Summary

	push := func(unit, nvalue int, svalue string) {
		updates = append(updates, Update{Unit: unit, NValue: nvalue, SValue: svalue})
	}
	pushBool := func(unit int, on bool) {
		if on {
			push(unit, 1, "On")
		} else {
			push(unit, 0, "Off")
		}
	}

	if r.Charging != nil {
		mgmt := r.Charging.ChrgMgmtData
		rvs := r.Charging.RvsChargeStatus

		sum.IsCharging = mgmt.BmsChrgSts == 1 && rvs.ChargingGunState == 1
		if mgmt.BmsPackSOCDsp >= 0 && mgmt.BmsPackSOCDsp <= saic.MaxValidSoCTenths {
			sum.SoCPercent = float64(mgmt.BmsPackSOCDsp) / 10
		}
		sum.ChargeLimitPercent = saic.TargetBatteryCode(mgmt.BmsOnBdChrgTrgtSOCDspCmd).Percent()

		if sum.SoCPercent > 0 {
			push(domoticz.UnitBatteryLevel, int(sum.SoCPercent), formatFloat(sum.SoCPercent))
		}
		pushBool(domoticz.UnitChargingSwitch, sum.IsCharging)
		pushBool(domoticz.UnitCableConnected, rvs.ChargingGunState == 1)

		if code := mgmt.BmsOnBdChrgTrgtSOCDspCmd; code >= int(saic.TargetSOCIgnore) && code <= int(saic.TargetSOC100) {
			level := code * 10
			push(domoticz.UnitChargeLimit, level, strconv.Itoa(level))
		}
		if code := mgmt.BmsAltngChrgCrntDspCmd; code >= int(saic.CurrentIgnore) && code <= int(saic.CurrentMax) {
			level := code * 10
			push(domoticz.UnitChargeCurrentLimit, level, strconv.Itoa(level))
		}
		level := scheduleSelectorLevel(saic.ScheduledChargingMode(mgmt.BmsReserCtrlDspCmd))
		push(domoticz.UnitScheduledCharging, level, strconv.Itoa(level))
		pushBool(domoticz.UnitBatteryHeating, mgmt.BmsPTCHeatReqDspCmd == 1)
		pushBool(domoticz.UnitChargingPortLock, mgmt.CcuEleccLckCtrlDspCmd == 1)

		if sum.IsCharging && rvs.WorkingCurrent > 0 {
			// Three-phase estimate from the reported per-phase current.
			amps := float64(rvs.WorkingCurrent) / 1000
			sum.PowerW = 3 * 0.86 * amps * 220
			push(domoticz.UnitChargingPower, 0, formatFloat(sum.PowerW)+";0")
		} else {
			push(domoticz.UnitChargingPower, 0, "0;0")
		}

		if kwh := float64(rvs.RealtimePower) / 10; kwh > 0 {
			push(domoticz.UnitBatteryCapacity, 0, formatFloat(kwh))
		}
		push(domoticz.UnitPowerUsage, 0, strconv.Itoa(rvs.PowerUsageOfDay))

		if sum.IsCharging && mgmt.ChrgngRmnngTimeV == 0 {
			push(domoticz.UnitTimeToFull, 0, strconv.Itoa(mgmt.ChrgngRmnngTime))
		} else {
			push(domoticz.UnitTimeToFull, 0, "0")
		}

		if rng := mgmt.ClstrElecRngToEPT; rng > 0 && rng < saic.MaxValidRangeKm {
			sum.RangeKm = rng
			push(domoticz.UnitRange, 0, strconv.Itoa(rng))
		}
		if rng := mgmt.BmsEstdElecRng; rng > 0 && rng < saic.MaxValidRangeKm {
			push(domoticz.UnitMaxRange, 0, strconv.Itoa(rng))
		}
		if rvs.Mileage > 0 {
			sum.OdometerKm = rvs.Mileage / 10
			push(domoticz.UnitOdometer, 0, strconv.Itoa(sum.OdometerKm))
		}
	}

	if r.Status != nil {
		bvs := r.Status.BasicVehicleStatus
		sum.SleepSignals = sleepSignals(bvs)

		pushBool(domoticz.UnitLockStatus, bvs.LockStatus == 1)
		pushBool(domoticz.UnitClimateActive, bvs.RemoteClimateStatus > 0)
		pushBool(domoticz.UnitEngineStatus, bvs.EngineRunning())
		pushBool(domoticz.UnitHandBrake, bvs.HandBrake == 1)

		if t := bvs.ExteriorTemperature; t > saic.MinValidTempC && t != saic.SentinelByte {
			sum.ExteriorTemp = &bvs.ExteriorTemperature
			push(domoticz.UnitExteriorTemp, 0, strconv.Itoa(t))
		}
		if t := bvs.InteriorTemperature; t > saic.MinValidTempC && t != saic.SentinelByte {
			sum.InteriorTemp = &bvs.InteriorTemperature
			push(domoticz.UnitInteriorTemp, 0, strconv.Itoa(t))
		}

		if bvs.BatteryVoltage > saic.MinValidVoltage10 {
			volts := float64(bvs.BatteryVoltage) / 10
			sum.AuxVoltage = &volts
			push(domoticz.UnitAuxBattery, 0, formatFloat(volts))
		}

		push(domoticz.UnitHeatedSeatLeft, bvs.FrontLeftSeatHeatLevel*10, strconv.Itoa(bvs.FrontLeftSeatHeatLevel*10))
		push(domoticz.UnitHeatedSeatRight, bvs.FrontRightSeatHeatLevel*10, strconv.Itoa(bvs.FrontRightSeatHeatLevel*10))

		pushTyre(&updates, domoticz.UnitTyreFrontLeft, bvs.FrontLeftTyrePressure)
		pushTyre(&updates, domoticz.UnitTyreFrontRight, bvs.FrontRightTyrePressure)
		pushTyre(&updates, domoticz.UnitTyreRearLeft, bvs.RearLeftTyrePressure)
		pushTyre(&updates, domoticz.UnitTyreRearRight, bvs.RearRightTyrePressure)

		sleeping := bvs.ExtendedData1 == saic.SentinelByte
		if sleeping {
			push(domoticz.UnitCarStatus, 0, "Sleeping")
		} else {
			push(domoticz.UnitCarStatus, 1, "Online")
		}

		if gps := r.Status.GPSPosition; gps != nil && gps.WayPoint != nil {
			pos := gps.WayPoint.Position
			sum.Lat, sum.Lon = pos.Lat(), pos.Lon()
			push(domoticz.UnitGPSLocation, 0, fmt.Sprintf("%.6f,%.6f", sum.Lat, sum.Lon))

			if speed := gps.WayPoint.Speed; speed > 0 {
				push(domoticz.UnitSpeed, 0, formatFloat(float64(speed)/10))
			} else {
				push(domoticz.UnitSpeed, 0, "0")
			}
		}
	}

	if r.HasPosition {
		pushBool(domoticz.UnitCarAtHome, r.AtHome)
		if r.Address != "" {
			push(domoticz.UnitAddress, 0, r.Address)
		}
	}

	return updates, sum
}

// sleepSignals counts the telemetry fields stuck at the byte sentinel.
// Two or more on one poll means the car has stopped reporting.
func sleepSignals(bvs saic.BasicVehicleStatus) int {
	n := 0
	if bvs.ExtendedData1 == saic.SentinelByte {
		n++
	}
	if bvs.Mileage == saic.SentinelByte {
		n++
	}
	if bvs.ExteriorTemperature == saic.SentinelByte {
		n++
	}
	return n
}

// pushTyre converts raw tyre pressure to bar. The gateway reports
// bar*20 on most firmwares, PSI on some; anything over 6 bar is
// reinterpreted as PSI.
func pushTyre(updates *[]Update, unit, raw int) {
	if raw <= 0 || raw == saic.SentinelByte {
		return
	}
	bar := float64(raw) / 20
	if bar > saic.MaxPlausiblePressu {
		bar = float64(raw) * 0.0689476
	}
	*updates = append(*updates, Update{Unit: unit, NValue: 0, SValue: strconv.FormatFloat(bar, 'f', 2, 64)})
}

// scheduleSelectorLevel maps the BMS reservation mode to the selector
// level. Unknown modes fall back to Off.
func scheduleSelectorLevel(mode saic.ScheduledChargingMode) int {
	switch mode {
	case saic.ScheduleUntilTime:
		return 10
	case saic.ScheduleUntilSOC:
		return 20
	default:
		return 0
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
