package postgres

import "math/big"

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
