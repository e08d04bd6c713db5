package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/rs/zerolog"
)

// Sink receives the devices and measurements a scenario produces.
type Sink interface {
	AddDevice(id int, x, y, z float64) error
	AddMeasurement(from, to int, distance float64, timestampMs int64) error
}

// Stats counts what a scenario has fed into its sink.
type Stats struct {
	Devices      int
	Measurements int
	Rejected     int
}

// Runner drives a tengo scenario script. The script must define
// setup(engine, state) and tick(engine, state, now).
type Runner struct {
	name     string
	compiled *tengo.Compiled
	state    *tengo.Map
	sink     Sink
	log      zerolog.Logger
	engine   *tengo.ImmutableMap
	ready    bool
	stats    Stats
}

const dispatchScript = `
if __phase == "setup" {
	setup(__engine, __state)
} else if __phase == "tick" {
	tick(__engine, __state, __now)
}
`

// Load compiles the named script, see LoadScript.
func Load(name string, sink Sink, log zerolog.Logger) (*Runner, error) {
	src, err := LoadScript(name)
	if err != nil {
		return nil, fmt.Errorf("scenario: load %s: %w", name, err)
	}
	return New(name, src, sink, log)
}

// New compiles src. name is only used in logs and errors.
func New(name string, src []byte, sink Sink, log zerolog.Logger) (*Runner, error) {
	if sink == nil {
		return nil, errors.New("scenario: nil sink")
	}

	script := tengo.NewScript([]byte(string(src) + "\n" + dispatchScript))
	_ = script.Add("__phase", "")
	_ = script.Add("__engine", map[string]any{})
	_ = script.Add("__state", map[string]any{})
	_ = script.Add("__now", 0)

	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("scenario: compile %s: %w", name, err)
	}

	r := &Runner{
		name:     name,
		compiled: compiled,
		state:    &tengo.Map{Value: map[string]tengo.Object{}},
		sink:     sink,
		log:      log.With().Str("scenario", name).Logger(),
	}
	r.engine = r.buildEngine()
	return r, nil
}

// Setup runs the script's setup phase once. Later calls are no-ops.
func (r *Runner) Setup() error {
	if r.ready {
		return nil
	}
	if err := r.run("setup", 0); err != nil {
		return err
	}
	r.ready = true
	return nil
}

// Tick runs the script's tick phase at nowMs, running setup first if needed.
func (r *Runner) Tick(nowMs int64) error {
	if err := r.Setup(); err != nil {
		return err
	}
	return r.run("tick", nowMs)
}

// Stats returns the counts so far.
func (r *Runner) Stats() Stats {
	return r.stats
}

func (r *Runner) run(phase string, nowMs int64) error {
	if err := r.compiled.Set("__phase", phase); err != nil {
		return err
	}
	if err := r.compiled.Set("__engine", r.engine); err != nil {
		return err
	}
	if err := r.compiled.Set("__state", r.state); err != nil {
		return err
	}
	if err := r.compiled.Set("__now", nowMs); err != nil {
		return err
	}
	if err := r.compiled.Run(); err != nil {
		return fmt.Errorf("scenario: %s %s: %w", r.name, phase, err)
	}
	return nil
}

func (r *Runner) buildEngine() *tengo.ImmutableMap {
	values := map[string]tengo.Object{}

	values["add_device"] = &tengo.UserFunction{Name: "add_device", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 3 {
			return nil, tengo.ErrWrongNumArguments
		}
		id, ok := objectToInt(args[0])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "id", Expected: "int", Found: args[0].TypeName()}
		}
		coords, err := floatArgs(args[1:], "x", "y", "z")
		if err != nil {
			return nil, err
		}
		if err := r.sink.AddDevice(id, coords[0], coords[1], coords[2]); err != nil {
			r.stats.Rejected++
			r.log.Warn().Err(err).Int("device", id).Msg("add_device rejected")
			return tengo.FalseValue, nil
		}
		r.stats.Devices++
		return tengo.TrueValue, nil
	}}

	values["add_measurement"] = &tengo.UserFunction{Name: "add_measurement", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 4 {
			return nil, tengo.ErrWrongNumArguments
		}
		from, ok := objectToInt(args[0])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "from", Expected: "int", Found: args[0].TypeName()}
		}
		to, ok := objectToInt(args[1])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "to", Expected: "int", Found: args[1].TypeName()}
		}
		vals, err := floatArgs(args[2:], "distance", "timestamp")
		if err != nil {
			return nil, err
		}
		if err := r.sink.AddMeasurement(from, to, vals[0], int64(vals[1])); err != nil {
			r.stats.Rejected++
			r.log.Warn().Err(err).Int("from", from).Int("to", to).Msg("add_measurement rejected")
			return tengo.FalseValue, nil
		}
		r.stats.Measurements++
		return tengo.TrueValue, nil
	}}

	values["log"] = &tengo.UserFunction{Name: "log", Value: func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]string, 0, len(args))
		for _, a := range args {
			parts = append(parts, objectAsString(a))
		}
		r.log.Info().Msg(strings.Join(parts, " "))
		return tengo.UndefinedValue, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}

// floatArgs converts numeric arguments; missing trailing ones become 0.
func floatArgs(args []tengo.Object, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		if i >= len(args) {
			break
		}
		v, ok := objectToFloat(args[i])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: name, Expected: "int/float", Found: args[i].TypeName()}
		}
		out[i] = v
	}
	return out, nil
}

func objectToFloat(obj tengo.Object) (float64, bool) {
	switch v := obj.(type) {
	case *tengo.Int:
		return float64(v.Value), true
	case *tengo.Float:
		return v.Value, true
	default:
		return 0, false
	}
}

func objectToInt(obj tengo.Object) (int, bool) {
	switch v := obj.(type) {
	case *tengo.Int:
		return int(v.Value), true
	case *tengo.Float:
		if v.Value != float64(int(v.Value)) {
			return 0, false
		}
		return int(v.Value), true
	default:
		return 0, false
	}
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}
