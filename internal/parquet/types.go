package parquet

import (
	"database/sql/driver"
	"fmt"
	"math"
	"math/big"
	"strings"
)

const secondsPerDay = 24 * 60 * 60

// DecimalStringToInt returns the unscaled integer of a decimal string at the
// given scale. Digits past the scale are truncated toward zero. Exponent forms
// such as 1e21 or 1.5E-3 are accepted. A precision above zero bounds the
// number of digits of the unscaled value.
func DecimalStringToInt(decimalStr string, precision int, scale int) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(decimalStr))
	if !ok {
		return nil, fmt.Errorf("invalid number format: %q", decimalStr)
	}

	shift := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
	num := new(big.Int).Mul(r.Num(), shift)
	unscaled := num.Quo(num, r.Denom())

	if precision > 0 {
		digits := len(new(big.Int).Abs(unscaled).String())
		if digits > precision {
			return nil, fmt.Errorf("%s has %d digits at scale %d, precision is %d", decimalStr, digits, scale, precision)
		}
	}

	return unscaled, nil
}

// decimalString renders a driver value the way DecimalStringToInt reads it.
// Driver numerics such as pgtype.Numeric render through their driver.Value.
func decimalString(v any) (string, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return "", err
		}
		v = dv
	}
	if bs, ok := v.([]byte); ok {
		return string(bs), nil
	}
	return fmt.Sprint(v), nil
}

// unscaledToPhysical narrows an unscaled decimal to the physical parquet type.
func unscaledToPhysical(unscaled *big.Int, physical string) (any, error) {
	if !unscaled.IsInt64() {
		return nil, fmt.Errorf("decimal %s overflows %s", unscaled, physical)
	}

	n := unscaled.Int64()
	if physical == "INT32" {
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("decimal %s overflows %s", unscaled, physical)
		}
		return int32(n), nil
	}
	return n, nil
}

// daysSinceEpoch floors toward the past, so instants before 1970 that are not
// at midnight land on their own day.
func daysSinceEpoch(unix int64) int32 {
	days := unix / secondsPerDay
	if unix%secondsPerDay < 0 {
		days--
	}
	return int32(days)
}
