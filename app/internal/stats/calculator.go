package stats

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"pingit/app/internal/models"
)

// Prune drops every record older than cutoff (ms since epoch) and keeps the
// rest in their original order. The common case of an ordered log is a
// reslice of the input; an out-of-order log is filtered into a new slice.
func Prune(records []models.ProbeRecord, cutoff int64) []models.ProbeRecord {
	i := 0
	for i < len(records) && records[i].Timestamp < cutoff {
		i++
	}
	rest := records[i:]
	for _, r := range rest {
		if r.Timestamp < cutoff {
			return filter(rest, func(r models.ProbeRecord) bool { return r.Timestamp >= cutoff })
		}
	}
	return rest
}

// FailedOnly returns the failed probes of records in order
func FailedOnly(records []models.ProbeRecord) []models.ProbeRecord {
	return filter(records, func(r models.ProbeRecord) bool { return !r.Success })
}

func filter(records []models.ProbeRecord, keep func(models.ProbeRecord) bool) []models.ProbeRecord {
	out := make([]models.ProbeRecord, 0)
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// ComputeWindow aggregates every record with Timestamp >= since.
//
// Averages divide by the total count, so probes without a ttl or time
// value pull the mean toward zero. Existing consumers rely on these
// numbers; keep it that way.
func ComputeWindow(records []models.ProbeRecord, since int64) models.WindowAggregate {
	var count, success int
	var ttlSum, timeSum float64
	for _, r := range records {
		if r.Timestamp < since {
			continue
		}
		count++
		if r.Success {
			success++
		}
		if r.TTL != nil {
			ttlSum += float64(*r.TTL)
		}
		if r.Time != nil {
			timeSum += *r.Time
		}
	}

	agg := models.WindowAggregate{
		Count:   count,
		Success: success,
		Fail:    count - success,
	}
	if count == 0 {
		return agg
	}
	n := float64(count)
	agg.AvgTTL = RoundFixed(ttlSum/n, 3)
	agg.AvgTime = RoundFixed(timeSum/n, 3)
	agg.PacketLoss = float64(agg.Fail) / n * 100
	return agg
}

// ComputeWindows recomputes all windows relative to now, each by its own scan
func ComputeWindows(records []models.ProbeRecord, now time.Time) models.Summary {
	out := make(models.Summary, len(Windows))
	for _, w := range Windows {
		out[w.Name] = ComputeWindow(records, now.Add(-w.Span).UnixMilli())
	}
	return out
}

// View adds the derived uptime and downtime percentages
func View(agg models.WindowAggregate) models.WindowView {
	v := models.WindowView{WindowAggregate: agg}
	if agg.Count == 0 {
		return v
	}
	n := float64(agg.Count)
	v.Uptime = RoundFixed(float64(agg.Success)/n*100, 2)
	v.Downtime = RoundFixed(float64(agg.Fail)/n*100, 2)
	return v
}

var (
	bigOne  = big.NewInt(1)
	bigHalf = big.NewFloat(0.5)
)

// RoundFixed rounds x to the given number of decimal places using the exact
// binary value of x, resolving ties upward (the toFixed convention), and
// returns the closest float64 to the decimal result.
func RoundFixed(x float64, places int) float64 {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}

	const prec = 256
	scaled := new(big.Float).SetPrec(prec).SetFloat64(x)
	scaled.Mul(scaled, new(big.Float).SetPrec(prec).SetFloat64(math.Pow10(places)))

	n, _ := scaled.Int(nil) // toward zero
	frac := new(big.Float).SetPrec(prec).Sub(scaled, new(big.Float).SetPrec(prec).SetInt(n))
	if frac.Sign() < 0 {
		n.Sub(n, bigOne)
		frac.Add(frac, big.NewFloat(1))
	}
	if frac.Cmp(bigHalf) >= 0 {
		n.Add(n, bigOne)
	}

	v, err := strconv.ParseFloat(decimalString(n, places), 64)
	if err != nil {
		return x
	}
	return v
}

// decimalString renders n / 10^places
func decimalString(n *big.Int, places int) string {
	neg := n.Sign() < 0
	digits := new(big.Int).Abs(n).String()
	if len(digits) <= places {
		digits = strings.Repeat("0", places-len(digits)+1) + digits
	}
	cut := len(digits) - places
	s := digits[:cut]
	if places > 0 {
		s += "." + digits[cut:]
	}
	if neg {
		s = "-" + s
	}
	return s
}
