// internal/room/criteria.go
package room

import (
	"fmt"
	"math"

	"github.com/okimu/okimu/internal/cytoid"
)

// Condition names a numeric metric extracted from a play record.
type Condition int

const (
	ConditionScore Condition = iota
	ConditionMaxCombo
	ConditionAccuracy
)

// Conditions lists every selectable condition, in presentation order.
var Conditions = []Condition{ConditionScore, ConditionMaxCombo, ConditionAccuracy}

func (c Condition) String() string {
	switch c {
	case ConditionScore:
		return "Score"
	case ConditionMaxCombo:
		return "Max Combo"
	case ConditionAccuracy:
		return "Accuracy"
	}
	return "Unknown"
}

// Extract pulls the condition's metric out of a play. Accuracy is reported
// as a percentage, matching how thresholds are entered.
func (c Condition) Extract(rec *cytoid.ScoreRecord) float64 {
	switch c {
	case ConditionScore:
		return float64(rec.Score)
	case ConditionMaxCombo:
		return float64(rec.Details.MaxCombo)
	case ConditionAccuracy:
		return rec.Accuracy * 100
	}
	return 0
}

// Operator compares a condition's value against a threshold.
type Operator int

const (
	OperatorGreater Operator = iota
	OperatorLess
	OperatorEqual
)

// Operators lists every selectable operator, in presentation order.
var Operators = []Operator{OperatorGreater, OperatorLess, OperatorEqual}

// equalTolerance is the absolute window within which OperatorEqual matches.
const equalTolerance = 0.001

func (o Operator) String() string {
	switch o {
	case OperatorGreater:
		return ">"
	case OperatorLess:
		return "<"
	case OperatorEqual:
		return "="
	}
	return "?"
}

// Compare applies the operator between a value and the threshold.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OperatorGreater:
		return value > threshold
	case OperatorLess:
		return value < threshold
	case OperatorEqual:
		return math.Abs(value-threshold) < equalTolerance
	}
	return false
}

// Criteria is a complete win condition: metric, comparison and threshold.
type Criteria struct {
	Condition Condition
	Operator  Operator
	Threshold float64
}

// Satisfied reports whether a play meets the criteria.
func (c Criteria) Satisfied(rec *cytoid.ScoreRecord) bool {
	return c.Operator.Compare(c.Condition.Extract(rec), c.Threshold)
}

func (c Criteria) String() string {
	return fmt.Sprintf("%s %s %v", c.Condition, c.Operator, c.Threshold)
}
