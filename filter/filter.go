package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/chakmidlot/vabaclient/vaba"
)

// SlotFilter is a compiled expr expression evaluated against available slots.
type SlotFilter struct {
	program *vm.Program
	expr    string
}

// Compile compiles a slot filter expression.
func Compile(expression string) (*SlotFilter, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("empty filter expression")
	}

	program, err := expr.Compile(expression,
		expr.Env(buildEnv(vaba.Slot{})),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter expression: %w", err)
	}

	return &SlotFilter{
		program: program,
		expr:    expression,
	}, nil
}

// buildEnv creates the evaluation environment for one slot.
func buildEnv(slot vaba.Slot) map[string]interface{} {
	minuteOfDay := slot.Timestamp.Hour()*60 + slot.Timestamp.Minute()

	return map[string]interface{}{
		// Slot data
		"Slot":      slot,
		"Timestamp": slot.Timestamp,
		"Count":     slot.Count,
		"Hour":      slot.Timestamp.Hour(),
		"Minute":    slot.Timestamp.Minute(),
		"Weekday":   slot.Timestamp.Weekday().String(),
		"Date":      slot.Timestamp.Format("2006-01-02"),

		// Time-of-day helpers
		"before": func(clock string) bool {
			t, err := time.Parse("15:04", clock)
			if err != nil {
				return false
			}
			return minuteOfDay < t.Hour()*60+t.Minute()
		},
		"after": func(clock string) bool {
			t, err := time.Parse("15:04", clock)
			if err != nil {
				return false
			}
			return minuteOfDay >= t.Hour()*60+t.Minute()
		},

		// Date helpers
		"onDate": func(date string) bool {
			return slot.Timestamp.Format("2006-01-02") == date
		},
		"parseDate": func(date string) time.Time {
			t, _ := time.Parse("2006-01-02", date)
			return t
		},
		"daysUntil": func(t time.Time) int {
			return int(time.Until(t).Hours() / 24)
		},

		// Current time
		"now": time.Now,
	}
}

// Evaluate evaluates the filter against a slot.
func (f *SlotFilter) Evaluate(slot vaba.Slot) bool {
	result, err := expr.Run(f.program, buildEnv(slot))
	if err != nil {
		// Skip slots the expression cannot evaluate
		return false
	}

	if boolResult, ok := result.(bool); ok {
		return boolResult
	}

	return false
}

// String returns the original expression
func (f *SlotFilter) String() string {
	return f.expr
}

// CreateFilter creates a predicate function from an expression.
func CreateFilter(expression string) (func(vaba.Slot) bool, error) {
	f, err := Compile(expression)
	if err != nil {
		return nil, err
	}

	return f.Evaluate, nil
}
