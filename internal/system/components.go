// Package system holds the built-in simulation systems driven by the
// scheduler: demographics, trade, Lua-scripted logic, and telemetry.
package system

// Population tracks a province's inhabitants. Count is the integer head
// count; Exact carries the fractional remainder between frames so slow
// growth is not lost to truncation.
type Population struct {
	Count      int64
	Exact      float64
	GrowthRate float64 // fraction per year
}

// Economy tracks a province's wealth and how aggressively it trades.
type Economy struct {
	Wealth     float64
	TradePower float64
}
