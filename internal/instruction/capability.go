package instruction

import (
	"strings"

	"github.com/KevinKickass/OpenGCodeCore/internal/state"
)

// Modal instructions change how later instructions are interpreted.
type Modal interface {
	ModalGroup() string
}

// Immediate instructions may be dispatched ahead of queued motion.
type Immediate interface {
	Immediate()
}

// Blocking instructions return only after the physical action completes.
type Blocking interface {
	BlocksExecution()
}

// Acknowledger instructions wait for a response and check it.
type Acknowledger interface {
	ExpectedAck() string
	ValidateResponse(response string) bool
}

type NetworkExtractor interface {
	ExtractNetwork(response string) (state.NetworkInfo, bool)
}

type TemperatureExtractor interface {
	ExtractTemperatures(response string) (Temperatures, bool)
}

type PositionExtractor interface {
	ExtractPosition(response string) (map[string]float64, bool)
}

type FirmwareExtractor interface {
	ExtractFirmware(response string) (state.FirmwareInfo, bool)
}

// Modal groups.
const (
	GroupMotion      = "motion"
	GroupDistance    = "distance"
	GroupExtrusion   = "extrusion"
	GroupUnits       = "units"
	GroupPlane       = "plane"
	GroupCoordinates = "coordinate_system"
)

// DefaultAck is the token most firmwares send after each accepted line.
const DefaultAck = "ok"

// Ack implements Acknowledger: a response is accepted when it contains the
// token, ignoring case. An empty token means DefaultAck.
type Ack struct {
	Token string
}

func (a Ack) ExpectedAck() string {
	if a.Token == "" {
		return DefaultAck
	}
	return a.Token
}

func (a Ack) ValidateResponse(response string) bool {
	return strings.Contains(strings.ToLower(response), strings.ToLower(a.ExpectedAck()))
}

// AnyAck waits for a response but accepts whatever arrives.
type AnyAck struct{}

func (AnyAck) ExpectedAck() string          { return "" }
func (AnyAck) ValidateResponse(string) bool { return true }

type modal string

func (m modal) ModalGroup() string { return string(m) }

type immediate struct{}

func (immediate) Immediate() {}

type blocking struct{}

func (blocking) BlocksExecution() {}

// Capabilities lists the capability names an instruction declares.
func Capabilities(instr Instruction) []string {
	var out []string
	if m, ok := instr.(Modal); ok {
		out = append(out, "modal:"+m.ModalGroup())
	}
	if _, ok := instr.(Immediate); ok {
		out = append(out, "immediate")
	}
	if _, ok := instr.(Blocking); ok {
		out = append(out, "blocks_execution")
	}
	if _, ok := instr.(Acknowledger); ok {
		out = append(out, "expects_ack")
	}
	if _, ok := instr.(NetworkExtractor); ok {
		out = append(out, "extract:network")
	}
	if _, ok := instr.(TemperatureExtractor); ok {
		out = append(out, "extract:temperature")
	}
	if _, ok := instr.(PositionExtractor); ok {
		out = append(out, "extract:position")
	}
	if _, ok := instr.(FirmwareExtractor); ok {
		out = append(out, "extract:firmware")
	}
	return out
}
