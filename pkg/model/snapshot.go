package model

// Snapshot is one telemetry record as published by the game in shared memory.
// Field order and widths match the producer's packed layout, see
// https://wiki.xaseco.org/wiki/Telemetry_interface
//
// Reserved blocks are read along with the rest but carry no meaning.
type Snapshot struct {
	Header       Header
	UpdateNumber uint32
	Game         GameState
	Race         RaceState
	Object       ObjectState
	Vehicle      VehicleState
	Device       DeviceState
}

// Bool is the producer's 32 bit boolean. Any non-zero value is true.
type Bool uint32

func (b Bool) Value() bool { return b != 0 }

func BoolOf(v bool) Bool {
	if v {
		return 1
	}
	return 0
}

type Vec3 struct {
	X float32
	Y float32
	Z float32
}

type Quat struct {
	W float32
	X float32
	Y float32
	Z float32
}

type Header struct {
	Magic   [32]byte // "ManiaPlanet_Telemetry"
	Version uint32
	Size    uint32 // declared size of the whole record
}

type GameState struct {
	State           GameStatus
	GameplayVariant [64]byte // player model 'StadiumCar', 'CanyonCar', ...
	MapID           [64]byte
	MapName         [256]byte
	Reserved        [128]byte
}

type RaceState struct {
	State           RaceStatus
	Time            uint32 `unit:"ms"`
	NbRespawns      uint32
	NbCheckpoints   uint32
	CheckpointTimes [MaxCheckpoints]uint32 `unit:"ms"`
	// the next two are only filled by producers with Header.Version >= 2
	NbCheckpointsPerLap uint32 `tm:"minVersion=2"`
	NbLaps              uint32 `tm:"minVersion=2"`
	Reserved            [24]byte
}

type ObjectState struct {
	Timestamp uint32 `unit:"ms"`
	// changes every time the object is moved non-continuously (teleported)
	DiscontinuityCount uint32
	Rotation           Quat
	Translation        Vec3 // +x is "left", +y is "up", +z is "front"
	Velocity           Vec3 `unit:"m/s"` // world frame

	LatestStableGroundContactTime uint32 `unit:"ms"`
	Reserved                      [32]byte
}

type VehicleState struct {
	Timestamp uint32 `unit:"ms"`

	InputSteer     float32
	InputGasPedal  float32
	InputIsBraking Bool
	InputIsHorn    Bool

	EngineRpm          float32 `unit:"rpm"`
	EngineCurGear      int32
	EngineTurboRatio   float32 // 1 turbo starting/full .... 0 -> finished
	EngineFreeWheeling Bool

	WheelsIsGroundContact [4]Bool
	WheelsIsSliping       [4]Bool
	WheelsDamperLen       [4]float32
	WheelsDamperRangeMin  float32
	WheelsDamperRangeMax  float32

	RumbleIntensity float32
	SpeedMeter      uint32 `unit:"km/h"`
	IsInWater       Bool
	IsSparkling     Bool
	IsLightTrails   Bool
	IsLightsOn      Bool
	IsFlying        Bool // long time since touching ground
	Reserved        [32]byte
}

type DeviceState struct {
	// raw euler angles in radians. Y is used as pitch, Z as roll.
	Euler            Vec3    `unit:"rad"`
	CenteredYaw      float32 // yaw accumulated + recentered to apply onto the device
	CenteredAltitude float32 // altitude accumulated + recentered
	Reserved         [32]byte
}

const MaxCheckpoints = 125
