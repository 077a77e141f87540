package strategy

import (
	"math"
)

// rsiOversold is the oscillator level below which a dip is treated as a
// confirmed buy setup rather than the start of a decline.
const rsiOversold = 39.5

const (
	buyImpulse  = -0.9
	sellImpulse = 0.9
)

// NewRSI builds the reference calibration: a moving average paired with
// a bounded RSI oscillator.
//
// The strategy buys when the price dips a fixed percentage below the
// moving average while the RSI confirms the market is oversold, and
// sells once the price rises a fixed percentage above the average. It
// is suited for sideways markets with regular swings; in a sustained
// decline it buys and then holds, which is its primary risk.
//
// Parameters: buy_limit, sell_limit (fractions of the moving average),
// moving_average_window, rsi_window.
func NewRSI(p Params) (Strategy, error) {
	buyLimit, err := p.Float("buy_limit")
	if err != nil {
		return nil, err
	}
	sellLimit, err := p.Float("sell_limit")
	if err != nil {
		return nil, err
	}
	maWindow, err := p.Window("moving_average_window")
	if err != nil {
		return nil, err
	}
	rsiWindow, err := p.Window("rsi_window")
	if err != nil {
		return nil, err
	}

	return func(trend []float64) float64 {
		avg := movingAverage(trend, maWindow)
		oscillator := rsi(trend, rsiWindow)
		if math.IsNaN(avg) || math.IsNaN(oscillator) {
			// Insufficient warm-up history: no action, never NaN out.
			return 0
		}
		price := trend[len(trend)-1]
		if price < avg-(avg*buyLimit) && oscillator <= rsiOversold {
			return buyImpulse
		}
		if price > avg+(avg*sellLimit) {
			return sellImpulse
		}
		return 0
	}, nil
}

// movingAverage returns the simple average of the trailing window, or
// NaN while the trend is still shorter than the window.
func movingAverage(trend []float64, window int) float64 {
	if len(trend) < window {
		return math.NaN()
	}
	var sum float64
	for _, v := range trend[len(trend)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// rsi computes Wilder's relative strength index over the full trend.
// Returns NaN until window+1 prices have been observed.
func rsi(trend []float64, window int) float64 {
	if len(trend) < window+1 {
		return math.NaN()
	}

	var gain, loss float64
	for i := 1; i <= window; i++ {
		delta := trend[i] - trend[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(window)
	avgLoss := loss / float64(window)

	for i := window + 1; i < len(trend); i++ {
		delta := trend[i] - trend[i-1]
		var g, l float64
		if delta > 0 {
			g = delta
		} else {
			l = -delta
		}
		avgGain = (avgGain*float64(window-1) + g) / float64(window)
		avgLoss = (avgLoss*float64(window-1) + l) / float64(window)
	}

	if avgGain+avgLoss == 0 {
		// Perfectly flat trend: neither oversold nor overbought.
		return 50
	}
	return 100 * avgGain / (avgGain + avgLoss)
}
