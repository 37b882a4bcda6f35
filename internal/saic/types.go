package saic

// Vendor DTOs. Field names follow the iSmart gateway JSON, quirks
// included (SOC scaled by 10, byte sentinels of -128 for fields the
// car did not report).

// Sentinel values used by the gateway for missing or stale data.
const (
	SentinelByte       = -128 // int8 fields the car did not report
	SentinelRemaining  = 1023 // chrgngRmnngTime when invalid
	MaxValidSoCTenths  = 1000 // bmsPackSOCDsp is percent*10
	MaxValidRangeKm    = 1000 // clstrElecRngToEPT / bmsEstdElecRng ceiling
	MinValidTempC      = -100 // exterior/interior temperature floor
	MinValidVoltage10  = 50   // batteryVoltage is volts*10; below 5 V is noise
	MaxPlausiblePressu = 6    // tyre pressure in bar above which the raw unit is PSI
)

// VehicleListResponse is the account's registered vehicles.
type VehicleListResponse struct {
	VinList []Vehicle `json:"vinList"`
}

// Vehicle identifies one car on the account.
type Vehicle struct {
	VIN       string `json:"vin"`
	BrandName string `json:"brandName"`
	ModelName string `json:"modelName"`
	Series    string `json:"series"`
	ColorName string `json:"colorName"`
}

// VehicleStatus is the full status poll result.
type VehicleStatus struct {
	BasicVehicleStatus BasicVehicleStatus `json:"basicVehicleStatus"`
	GPSPosition        *GPSPosition       `json:"gpsPosition"`
	StatusTime         int64              `json:"statusTime"`
}

// BasicVehicleStatus carries the raw telemetry bytes.
type BasicVehicleStatus struct {
	BatteryVoltage          int `json:"batteryVoltage"`
	BonnetStatus            int `json:"bonnetStatus"`
	BootStatus              int `json:"bootStatus"`
	EngineStatus            int `json:"engineStatus"`
	ExtendedData1           int `json:"extendedData1"`
	ExtendedData2           int `json:"extendedData2"`
	ExteriorTemperature     int `json:"exteriorTemperature"`
	InteriorTemperature     int `json:"interiorTemperature"`
	FrontLeftSeatHeatLevel  int `json:"frontLeftSeatHeatLevel"`
	FrontRightSeatHeatLevel int `json:"frontRightSeatHeatLevel"`
	FrontLeftTyrePressure   int `json:"frontLeftTyrePressure"`
	FrontRightTyrePressure  int `json:"frontRightTyrePressure"`
	RearLeftTyrePressure    int `json:"rearLeftTyrePressure"`
	RearRightTyrePressure   int `json:"rearRightTyrePressure"`
	FuelRangeElec           int `json:"fuelRangeElec"`
	HandBrake               int `json:"handBrake"`
	LockStatus              int `json:"lockStatus"`
	Mileage                 int `json:"mileage"`
	PowerMode               int `json:"powerMode"`
	RemoteClimateStatus     int `json:"remoteClimateStatus"`
	SideLightStatus         int `json:"sideLightStatus"`
	DippedBeamStatus        int `json:"dippedBeamStatus"`
	VehicleAlarmStatus      int `json:"vehicleAlarmStatus"`
}

// EngineRunning reports whether the drivetrain is live.
func (b BasicVehicleStatus) EngineRunning() bool {
	return b.EngineStatus == 1
}

// Parked mirrors the vendor app's definition.
func (b BasicVehicleStatus) Parked() bool {
	return b.EngineStatus != 1 || b.HandBrake == 1
}

// GPSPosition wraps the way point the gateway reports.
type GPSPosition struct {
	WayPoint *WayPoint `json:"wayPoint"`
	GPSTime  int64     `json:"gpsTime"`
}

// WayPoint holds position and speed (speed is km/h*10).
type WayPoint struct {
	Position Position `json:"position"`
	Heading  int      `json:"heading"`
	Speed    int      `json:"speed"`
}

// Position is in millionths of a degree.
type Position struct {
	Latitude  int64 `json:"latitude"`
	Longitude int64 `json:"longitude"`
	Altitude  int   `json:"altitude"`
}

// Lat converts to decimal degrees.
func (p Position) Lat() float64 { return float64(p.Latitude) / 1e6 }

// Lon converts to decimal degrees.
func (p Position) Lon() float64 { return float64(p.Longitude) / 1e6 }

// ChargingStatus is the charging-management poll result.
type ChargingStatus struct {
	ChrgMgmtData    ChrgMgmtData    `json:"chrgMgmtData"`
	RvsChargeStatus RvsChargeStatus `json:"rvsChargeStatus"`
}

// ChrgMgmtData is the BMS view of the charge session.
type ChrgMgmtData struct {
	BmsChrgSts               int `json:"bmsChrgSts"`
	BmsPackSOCDsp            int `json:"bmsPackSOCDsp"`
	BmsOnBdChrgTrgtSOCDspCmd int `json:"bmsOnBdChrgTrgtSOCDspCmd"`
	BmsAltngChrgCrntDspCmd   int `json:"bmsAltngChrgCrntDspCmd"`
	BmsReserCtrlDspCmd       int `json:"bmsReserCtrlDspCmd"`
	BmsPTCHeatReqDspCmd      int `json:"bmsPTCHeatReqDspCmd"`
	CcuEleccLckCtrlDspCmd    int `json:"ccuEleccLckCtrlDspCmd"`
	BmsEstdElecRng           int `json:"bmsEstdElecRng"`
	ClstrElecRngToEPT        int `json:"clstrElecRngToEPT"`
	ChrgngRmnngTime          int `json:"chrgngRmnngTime"`
	ChrgngRmnngTimeV         int `json:"chrgngRmnngTimeV"`
}

// RvsChargeStatus is the vehicle-side view of the charge session.
type RvsChargeStatus struct {
	ChargingGunState int `json:"chargingGunState"`
	WorkingCurrent   int `json:"workingCurrent"` // milliamps
	WorkingVoltage   int `json:"workingVoltage"`
	Mileage          int `json:"mileage"` // km*10
	RealtimePower    int `json:"realtimePower"`
	PowerUsageOfDay  int `json:"powerUsageOfDay"` // Wh
	ChargingDuration int `json:"chargingDuration"`
}

// TargetBatteryCode is the vendor enum for the target SoC selector.
type TargetBatteryCode int

const (
	TargetSOCIgnore TargetBatteryCode = 0
	TargetSOC40     TargetBatteryCode = 1
	TargetSOC50     TargetBatteryCode = 2
	TargetSOC60     TargetBatteryCode = 3
	TargetSOC70     TargetBatteryCode = 4
	TargetSOC80     TargetBatteryCode = 5
	TargetSOC90     TargetBatteryCode = 6
	TargetSOC100    TargetBatteryCode = 7
)

// Percent returns the SoC percentage the code stands for, 0 if unknown.
func (t TargetBatteryCode) Percent() int {
	switch t {
	case TargetSOC40:
		return 40
	case TargetSOC50:
		return 50
	case TargetSOC60:
		return 60
	case TargetSOC70:
		return 70
	case TargetSOC80:
		return 80
	case TargetSOC90:
		return 90
	case TargetSOC100:
		return 100
	default:
		return 0
	}
}

// TargetBatteryCodeForPercent maps a percentage to the vendor code.
func TargetBatteryCodeForPercent(percent int) (TargetBatteryCode, bool) {
	switch percent {
	case 40:
		return TargetSOC40, true
	case 50:
		return TargetSOC50, true
	case 60:
		return TargetSOC60, true
	case 70:
		return TargetSOC70, true
	case 80:
		return TargetSOC80, true
	case 90:
		return TargetSOC90, true
	case 100:
		return TargetSOC100, true
	default:
		return TargetSOCIgnore, false
	}
}

// ChargeCurrentLimitCode is the vendor enum for the AC current limit.
type ChargeCurrentLimitCode int

const (
	CurrentIgnore ChargeCurrentLimitCode = 0
	Current6A     ChargeCurrentLimitCode = 1
	Current8A     ChargeCurrentLimitCode = 2
	Current16A    ChargeCurrentLimitCode = 3
	CurrentMax    ChargeCurrentLimitCode = 4
)

func (c ChargeCurrentLimitCode) String() string {
	switch c {
	case Current6A:
		return "6A"
	case Current8A:
		return "8A"
	case Current16A:
		return "16A"
	case CurrentMax:
		return "MAX"
	default:
		return "Off"
	}
}

// ScheduledChargingMode is the vendor enum for reservation control.
type ScheduledChargingMode int

const (
	ScheduleUntilTime ScheduledChargingMode = 1
	ScheduleDisabled  ScheduledChargingMode = 2
	ScheduleUntilSOC  ScheduledChargingMode = 3
)

func (m ScheduledChargingMode) String() string {
	switch m {
	case ScheduleUntilTime:
		return "Until Time"
	case ScheduleUntilSOC:
		return "Until SOC"
	default:
		return "Disabled"
	}
}
