package model

import "github.com/san-kum/mindstone/internal/state"

// PID parameter names.
const (
	ParamKp       = "kp"
	ParamKi       = "ki"
	ParamKd       = "kd"
	ParamSetpoint = "setpoint"
)

const (
	memIntegral = "integral"
	memPrevErr  = "prev_err"
	memPrevT    = "prev_t"
)

// PID drives Measured towards the setpoint parameter by commanding Output.
// The integral and previous error live in Memory, not in the law.
type PID struct {
	Measured string
	Output   string
}

func NewPID(measured, output string) *PID {
	return &PID{Measured: measured, Output: output}
}

// PIDParams builds a parameter vector for a PID law.
func PIDParams(kp, ki, kd, setpoint float64) Params {
	return Params{ParamKp: kp, ParamKi: ki, ParamKd: kd, ParamSetpoint: setpoint}
}

func (p *PID) Name() string       { return "pid" }
func (p *PID) Required() []string { return []string{p.Measured} }
func (p *PID) Outputs() []string  { return []string{p.Output} }

func (p *PID) Compute(snap state.Snapshot, mem Memory, params Params) (state.Output, Memory, error) {
	t := snap.Time()
	err := params[ParamSetpoint] - snap.Value(p.Measured)

	if len(mem) == 0 {
		return p.out(t, params[ParamKp]*err), Memory{memIntegral: 0, memPrevErr: err, memPrevT: t}, nil
	}

	dt := t - mem[memPrevT]
	if dt <= 0 {
		return p.out(t, params[ParamKp]*err), mem.Clone(), nil
	}

	integral := mem[memIntegral] + err*dt
	derivative := (err - mem[memPrevErr]) / dt
	u := params[ParamKp]*err + params[ParamKi]*integral + params[ParamKd]*derivative

	return p.out(t, u), Memory{memIntegral: integral, memPrevErr: err, memPrevT: t}, nil
}

func (p *PID) out(t, u float64) state.Output {
	return state.NewOutput(t, map[string]float64{p.Output: u})
}
