package repos

import (
	"database/sql/driver"
	"math"

	"modernc.org/sqlite"

	"shopindex/internal/domain"
)

// safe_real(x) is the numeric reading of x with the same rules the document
// model applies, NULL when x is not a whole number.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("safe_real", 1, safeReal)
}

func safeReal(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case int64:
		return float64(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil
		}
		return v, nil
	case string:
		if f, ok := domain.ParseNumber(v); ok {
			return f, nil
		}
	case []byte:
		if f, ok := domain.ParseNumber(string(v)); ok {
			return f, nil
		}
	}
	return nil, nil
}
