package price

import (
	"math/big"
	"strconv"
	"strings"
)

// TimeProgress returns how far a vault is through its lock period, in percent.
func TimeProgress(startTime, unlockTime, now int64) float64 {
	if startTime <= 0 || unlockTime <= 0 || unlockTime <= startTime {
		return 0
	}
	elapsed := now
	if elapsed > unlockTime {
		elapsed = unlockTime
	}
	total := float64(unlockTime - startTime)
	return clamp(float64(elapsed-startTime)/total*100, 0, 100)
}

// SecondsUntilUnlock returns the remaining lock time, never negative.
func SecondsUntilUnlock(unlockTime, now int64) int64 {
	if unlockTime <= now {
		return 0
	}
	return unlockTime - now
}

// FormatCountdown renders a duration in seconds as "1d 2h 3m"; seconds are only
// shown once less than a minute remains.
func FormatCountdown(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}

	d := seconds / 86400
	seconds %= 86400
	h := seconds / 3600
	seconds %= 3600
	m := seconds / 60
	s := seconds % 60

	parts := make([]string, 0, 3)
	if d > 0 {
		parts = append(parts, strconv.FormatInt(d, 10)+"d")
	}
	if h > 0 {
		parts = append(parts, strconv.FormatInt(h, 10)+"h")
	}
	if m > 0 {
		parts = append(parts, strconv.FormatInt(m, 10)+"m")
	}
	if len(parts) == 0 {
		parts = append(parts, strconv.FormatInt(s, 10)+"s")
	}
	return strings.Join(parts, " ")
}

// FormatTokenAmount renders a base-unit amount as an exact decimal string.
func FormatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	text := new(big.Rat).SetFrac(abs, denom).FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}
