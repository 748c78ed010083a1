package plugin

import (
	"errors"
	"fmt"
)

// CtrlCode selects the command carried by a Ctrl call.
type CtrlCode int

const (
	CtrlStart CtrlCode = iota
	CtrlStop
	CtrlSpeed // Speed or *Speed

	CtrlSetState // reserved, always a no-op
	CtrlGetState // *bool
)

func (c CtrlCode) String() string {
	switch c {
	case CtrlStart:
		return "start"
	case CtrlStop:
		return "stop"
	case CtrlSpeed:
		return "speed"
	case CtrlSetState:
		return "set-state"
	case CtrlGetState:
		return "get-state"
	default:
		return fmt.Sprintf("ctrl(%d)", int(c))
	}
}

// Option names a backend-wide setting reachable through Info.SetGlobal
// and Info.GetGlobal. The comment on each gives the parameter type.
type Option int

const (
	OptionInit        Option = iota // get/set, bool
	OptionSetting                   // get/set, backend specific settings value
	OptionSpeedLimit                // get/set, Speed or *Speed
	OptionSpeed                     // get, *Speed
	OptionErrorCode                 // get, *int
	OptionErrorString               // get, *string
	OptionMatch                     // get, string URL; OK when the backend claims it

	// OptionDerived is the first value available to backend specific options.
	OptionDerived Option = 10000
)

func (o Option) String() string {
	switch o {
	case OptionInit:
		return "init"
	case OptionSetting:
		return "setting"
	case OptionSpeedLimit:
		return "speed-limit"
	case OptionSpeed:
		return "speed"
	case OptionErrorCode:
		return "error-code"
	case OptionErrorString:
		return "error-string"
	case OptionMatch:
		return "match"
	}
	if o >= OptionDerived {
		return fmt.Sprintf("derived(%d)", int(o-OptionDerived))
	}
	return fmt.Sprintf("option(%d)", int(o))
}

// Result is the outcome of a global set/get call. It is deliberately not
// an error: ResultUnsupported is an answer, not a fault.
type Result int

const (
	ResultOK Result = iota
	ResultError
	ResultFailed
	ResultUnsupported
)

var (
	ErrResultError  = errors.New("plugin: error")
	ErrResultFailed = errors.New("plugin: operation failed")
	ErrUnsupported  = errors.New("plugin: option not supported")
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultError:
		return "error"
	case ResultFailed:
		return "failed"
	case ResultUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Err converts r for callers that prefer error values. ResultOK maps to nil.
func (r Result) Err() error {
	switch r {
	case ResultOK:
		return nil
	case ResultFailed:
		return ErrResultFailed
	case ResultUnsupported:
		return ErrUnsupported
	default:
		return ErrResultError
	}
}

// Speed is a pair of rate limits or rates in bytes per second.
// Zero means unlimited when used as a limit.
type Speed struct {
	Download int
	Upload   int
}

// SpeedParam extracts a Speed from a Ctrl or global option payload.
func SpeedParam(data any) (Speed, bool) {
	switch s := data.(type) {
	case Speed:
		return s, true
	case *Speed:
		if s == nil {
			return Speed{}, false
		}
		return *s, true
	case [2]int:
		return Speed{Download: s[0], Upload: s[1]}, true
	}
	return Speed{}, false
}

