// Package plugins loads user-supplied extensions interpreted at run time.
// Failure models can be written as plain Go source files and evaluated with
// yaegi, so new hazard functions need no rebuild.
package plugins

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/kingrea/acta/internal/failure"
	"github.com/kingrea/acta/internal/params"
)

const (
	probabilityFuncName = "Probability"
	cumulativeFuncName  = "Cumulative"
	configureFuncName   = "Configure"
)

// ScriptParams configures the script failure model.
type ScriptParams struct {
	// Path is the Go source file, relative to the scenario file.
	Path string `yaml:"path"`
	// Vars is passed to an optional Configure(map[string]float64) function.
	Vars map[string]float64 `yaml:"vars,omitempty"`
}

// ScriptModel is a failure.Model backed by interpreted Go functions. The
// script must define
//
//	func Probability(h, dh float64) float64
//
// and may define Cumulative(h float64) float64. Without Cumulative the model
// uses Probability(0, h).
type ScriptModel struct {
	probability reflect.Value
	cumulative  reflect.Value
}

// LoadFailureScript interprets the script at path.
func LoadFailureScript(path string, vars map[string]float64) (*ScriptModel, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("plugin: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("plugin: load stdlib: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}
	m := &ScriptModel{}
	m.probability, err = lookupFunc(i, probabilityFuncName, 2)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s must define %s(h, dh float64) float64: %w", path, probabilityFuncName, err)
	}
	if fn, err := lookupFunc(i, cumulativeFuncName, 1); err == nil {
		m.cumulative = fn
	}
	if fn, err := i.Eval(configureFuncName); err == nil && fn.Kind() == reflect.Func {
		if err := configure(fn, vars); err != nil {
			return nil, fmt.Errorf("plugin: %s: %w", path, err)
		}
	}
	return m, nil
}

// Probability implements failure.Model.
func (m *ScriptModel) Probability(h, dh float64) float64 {
	if dh <= 0 {
		return 0
	}
	return call(m.probability, h, dh)
}

// Cumulative implements failure.Model.
func (m *ScriptModel) Cumulative(h float64) float64 {
	if m.cumulative.IsValid() {
		return call(m.cumulative, h)
	}
	return m.Probability(0, h)
}

// RegisterFailureScript installs the "script" failure class.
func RegisterFailureScript(reg *failure.Registry) {
	reg.MustRegister("script", func(raw params.Map, baseDir string) (failure.Model, error) {
		var p ScriptParams
		if err := params.Decode(raw, &p); err != nil {
			return nil, err
		}
		path := strings.TrimSpace(p.Path)
		if path == "" {
			return nil, fmt.Errorf("plugin: script failure model requires path")
		}
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		return LoadFailureScript(filepath.Clean(path), p.Vars)
	})
}

func lookupFunc(i *interp.Interpreter, name string, arity int) (reflect.Value, error) {
	fn, err := i.Eval(name)
	if err != nil {
		return reflect.Value{}, err
	}
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("%s is not a function", name)
	}
	t := fn.Type()
	if t.NumIn() != arity || t.NumOut() != 1 || t.Out(0).Kind() != reflect.Float64 {
		return reflect.Value{}, fmt.Errorf("%s has signature %s", name, t)
	}
	for k := range arity {
		if t.In(k).Kind() != reflect.Float64 {
			return reflect.Value{}, fmt.Errorf("%s has signature %s", name, t)
		}
	}
	return fn, nil
}

func configure(fn reflect.Value, vars map[string]float64) error {
	if vars == nil {
		vars = map[string]float64{}
	}
	t := fn.Type()
	if t.NumIn() != 1 || !reflect.TypeOf(vars).AssignableTo(t.In(0)) {
		return fmt.Errorf("%s must take map[string]float64", configureFuncName)
	}
	results := fn.Call([]reflect.Value{reflect.ValueOf(vars)})
	if len(results) == 1 && !results[0].IsNil() {
		if e, ok := results[0].Interface().(error); ok && e != nil {
			return e
		}
	}
	return nil
}

func call(fn reflect.Value, args ...float64) float64 {
	in := make([]reflect.Value, len(args))
	for k, a := range args {
		in[k] = reflect.ValueOf(a)
	}
	v := fn.Call(in)[0].Float()
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
