package domoticz

import (
	"context"
	"fmt"
	"strings"
)

// Logical device units. The numbers double as stable identifiers in
// the history database and the command API.
const (
	UnitBatteryLevel       = 1
	UnitRange              = 2
	UnitChargingSwitch     = 3
	UnitGPSLocation        = 4
	UnitLockStatus         = 5
	UnitClimateActive      = 6
	UnitChargingControl    = 7
	UnitChargeLimit        = 8
	UnitChargeCurrentLimit = 9
	UnitLockControl        = 10
	UnitCableConnected     = 11
	UnitOdometer           = 12
	UnitMaxRange           = 14
	UnitChargingPower      = 15
	UnitBatteryCapacity    = 16
	UnitAddress            = 17
	UnitSpeed              = 18
	UnitPowerUsage         = 19
	UnitHeatedSeatLeft     = 20
	UnitHeatedSeatRight    = 21
	UnitAuxBattery         = 22
	UnitTyreFrontLeft      = 25
	UnitTyreFrontRight     = 27
	UnitTyreRearLeft       = 28
	UnitTyreRearRight      = 29
	UnitTimeToFull         = 30
	UnitEngineStatus       = 31
	UnitHandBrake          = 32
	UnitExteriorTemp       = 33
	UnitInteriorTemp       = 34
	UnitCarStatus          = 35
	UnitCarAtHome          = 36
	UnitScheduledCharging  = 37
	UnitBatteryHeating     = 38
	UnitChargingPortLock   = 39
)

// Domoticz type/subtype pairs used by the table below.
const (
	typeGeneral  = 243
	typeSwitch   = 244
	typeCounter  = 113
	typeTemp     = 80
	typeUsage    = 248
	subPercent   = 6
	subCustom    = 31
	subOnOff     = 73
	subSelector  = 62
	subText      = 19
	subVoltage   = 8
	subPressure  = 9
	subTempBasic = 5
	subEnergy    = 1

	switchTypeSelector = 18
	switchTypeCounter  = 3
)

// Definition describes one virtual device the bridge owns.
type Definition struct {
	Unit       int
	Suffix     string
	Type       int
	SubType    int
	SwitchType int    // -1 when not applicable
	Options    string // setused deviceoptions
	Unused     bool   // created but hidden from the dashboard
}

// Definitions is the full device table, in unit order.
func Definitions() []Definition {
	selector := func(levelNames string, offHidden bool) string {
		actions := strings.Repeat("|", strings.Count(levelNames, "|"))
		return fmt.Sprintf("LevelActions:%s;LevelNames:%s;LevelOffHidden:%t;SelectorStyle:0",
			actions, levelNames, offHidden)
	}

	return []Definition{
		{Unit: UnitBatteryLevel, Suffix: "Battery Level", Type: typeGeneral, SubType: subPercent, SwitchType: -1},
		{Unit: UnitRange, Suffix: "Range", Type: typeGeneral, SubType: subCustom, SwitchType: -1, Options: "Custom:1;km"},
		{Unit: UnitChargingSwitch, Suffix: "Charging", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
		{Unit: UnitGPSLocation, Suffix: "GPS Location", Type: typeGeneral, SubType: subText, SwitchType: -1},
		{Unit: UnitLockStatus, Suffix: "Lock Status", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
		{Unit: UnitClimateActive, Suffix: "Climate Active", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
		{Unit: UnitChargingControl, Suffix: "Start/Stop Charging", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
		{Unit: UnitChargeLimit, Suffix: "Set Charge Limit", Type: typeSwitch, SubType: subSelector,
			SwitchType: switchTypeSelector, Options: selector("Off|40%|50%|60%|70%|80%|90%|100%", true)},
		{Unit: UnitChargeCurrentLimit, Suffix: "Charge Current Limit", Type: typeSwitch, SubType: subSelector,
			SwitchType: switchTypeSelector, Options: selector("Off|6A|8A|16A|MAX", true)},
		{Unit: UnitLockControl, Suffix: "Lock Control", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
		{Unit: UnitCableConnected, Suffix: "Cable Connected", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
		{Unit: UnitOdometer, Suffix: "Odometer", Type: typeCounter, SubType: 0, SwitchType: switchTypeCounter},
		{Unit: UnitMaxRange, Suffix: "Max Range", Type: typeGeneral, SubType: subCustom, SwitchType: -1, Options: "Custom:1;km", Unused: true},
		{Unit: UnitChargingPower, Suffix: "Charging Power", Type: typeUsage, SubType: subEnergy, SwitchType: -1, Options: "EnergyMeterMode:1"},
		{Unit: UnitBatteryCapacity, Suffix: "Battery Cap.", Type: typeGeneral, SubType: subCustom, SwitchType: -1, Options: "Custom:1;kWh"},
		{Unit: UnitAddress, Suffix: "Address", Type: typeGeneral, SubType: subText, SwitchType: -1},
		{Unit: UnitSpeed, Suffix: "Speed", Type: typeGeneral, SubType: subCustom, SwitchType: -1, Options: "Custom:1;km/h"},
		{Unit: UnitPowerUsage, Suffix: "Power Usage", Type: typeCounter, SubType: 0, SwitchType: 0, Options: "ValueQuantity:Custom;ValueUnits:Wh"},
		{Unit: UnitHeatedSeatLeft, Suffix: "Heated Seat Left", Type: typeSwitch, SubType: subSelector,
			SwitchType: switchTypeSelector, Options: selector("Off|Low|Medium|High", false)},
		{Unit: UnitHeatedSeatRight, Suffix: "Heated Seat Right", Type: typeSwitch, SubType: subSelector,
			SwitchType: switchTypeSelector, Options: selector("Off|Low|Medium|High", false)},
		{Unit: UnitAuxBattery, Suffix: "12V Battery", Type: typeGeneral, SubType: subVoltage, SwitchType: -1},
		{Unit: UnitTyreFrontLeft, Suffix: "Tyre FL", Type: typeGeneral, SubType: subPressure, SwitchType: -1},
		{Unit: UnitTyreFrontRight, Suffix: "Tyre FR", Type: typeGeneral, SubType: subPressure, SwitchType: -1},
		{Unit: UnitTyreRearLeft, Suffix: "Tyre RL", Type: typeGeneral, SubType: subPressure, SwitchType: -1},
		{Unit: UnitTyreRearRight, Suffix: "Tyre RR", Type: typeGeneral, SubType: subPressure, SwitchType: -1},
		{Unit: UnitTimeToFull, Suffix: "Time to Full", Type: typeGeneral, SubType: subCustom, SwitchType: -1, Options: "Custom:1;min"},
		{Unit: UnitEngineStatus, Suffix: "Engine Status", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
		{Unit: UnitHandBrake, Suffix: "Hand Brake", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
		{Unit: UnitExteriorTemp, Suffix: "Exterior Temp.", Type: typeTemp, SubType: subTempBasic, SwitchType: -1},
		{Unit: UnitInteriorTemp, Suffix: "Interior Temp.", Type: typeTemp, SubType: subTempBasic, SwitchType: -1},
		{Unit: UnitCarStatus, Suffix: "Status", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
		{Unit: UnitCarAtHome, Suffix: "Car at Home", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
		{Unit: UnitScheduledCharging, Suffix: "Scheduled Charging", Type: typeSwitch, SubType: subSelector,
			SwitchType: switchTypeSelector, Options: selector("Off|Until Time|Until SOC", false)},
		{Unit: UnitBatteryHeating, Suffix: "Battery Heating", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
		{Unit: UnitChargingPortLock, Suffix: "Charging Port Lock", Type: typeSwitch, SubType: subOnOff, SwitchType: -1},
	}
}

// DeviceMap resolves logical units to Domoticz device idx values.
type DeviceMap map[int]int

// EnsureDevices creates any missing devices for the vehicle, groups
// them in a room plan named after the vehicle, and returns the
// unit-to-idx mapping. Existing devices are matched by name.
func (c *Client) EnsureDevices(ctx context.Context, vehicleName string) (DeviceMap, error) {
	existing, err := c.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	byName := make(map[string]int, len(existing))
	for _, d := range existing {
		byName[d.Name] = d.Idx
	}

	mapping := make(DeviceMap)
	created := 0
	for _, def := range Definitions() {
		name := vehicleName + " " + def.Suffix
		if idx, ok := byName[name]; ok {
			mapping[def.Unit] = idx
			continue
		}

		idx, err := c.CreateDevice(ctx, name, def.Type, def.SubType)
		if err != nil {
			return nil, fmt.Errorf("create %q: %w", name, err)
		}
		if err := c.ConfigureDevice(ctx, idx, name, def.SwitchType, def.Options, !def.Unused); err != nil {
			return nil, fmt.Errorf("configure %q: %w", name, err)
		}
		c.log.Info().Str("name", name).Int("idx", idx).Msg("created device")
		mapping[def.Unit] = idx
		created++
	}

	if created > 0 {
		if err := c.assignRoomPlan(ctx, vehicleName, mapping); err != nil {
			c.log.Warn().Err(err).Msg("room plan assignment failed")
		}
	}
	return mapping, nil
}
