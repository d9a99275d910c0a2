package engine

import (
	"errors"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("backend: chipmunk\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Backend != "chipmunk" {
		t.Errorf("backend = %q", cfg.Backend)
	}
	if cfg.StepTime != DefaultStepTime {
		t.Errorf("step time = %g, want default %g", cfg.StepTime, DefaultStepTime)
	}
	if cfg.Gravity.Y != DefaultGravityY {
		t.Errorf("gravity y = %g, want default %g", cfg.Gravity.Y, DefaultGravityY)
	}
	if cfg.Solver.Iters != DefaultSolverIters {
		t.Errorf("solver iters = %d, want default %d", cfg.Solver.Iters, DefaultSolverIters)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	data := []byte(`
backend: box2d
step_time: 0.004
gravity: {x: 0, y: -1.62, z: 0}
solver:
  iters: 15
  erp: 0.8
  auto_disable: true
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.StepTime != 0.004 {
		t.Errorf("step time = %g", cfg.StepTime)
	}
	if cfg.Gravity.Y != -1.62 {
		t.Errorf("gravity y = %g", cfg.Gravity.Y)
	}
	if cfg.Solver.Iters != 15 || cfg.Solver.ERP != 0.8 || !cfg.Solver.AutoDisable {
		t.Errorf("solver overrides not applied: %+v", cfg.Solver)
	}
	// defaults survive partial solver blocks
	if cfg.Solver.MaxContacts != DefaultMaxContacts {
		t.Errorf("max contacts = %d, want default", cfg.Solver.MaxContacts)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"zero step time", "step_time: 0\n"},
		{"negative step time", "step_time: -0.01\n"},
		{"negative iters", "solver: {iters: -1}\n"},
		{"malformed yaml", "step_time: [oops\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.data)); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("ParseConfig error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
