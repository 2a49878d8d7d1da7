// Package domain models sensor thresholds and the classification of live
// readings against them.
//
// # Threshold Definitions
//
// Each sensor category ("Air Temperature", "O2 Concentration", ...) carries six
// boundary values that split the real line into ordered regions:
//
//	minCriticalLower ≤ minCriticalUpper ≤ acceptMin ≤ acceptMax ≤ maxCriticalLower ≤ maxCriticalUpper
//
// The values are calibration data supplied by the operators of the habitat.
// They are loaded verbatim and never adjusted here, even when a range looks
// degenerate (e.g. "CO Concentration" has minCriticalLower = acceptMin = 0).
//
// # Bands
//
// A reading falls into exactly one of five bands. The acceptable range is
// closed on both ends; the critical ranges are half-open toward it:
//
//	value < minCriticalLower                    below_critical_low
//	minCriticalLower ≤ value < acceptMin        critical_low
//	acceptMin ≤ value ≤ acceptMax               acceptable
//	acceptMax < value ≤ maxCriticalUpper        critical_high
//	value > maxCriticalUpper                    above_critical_high
//
// The outer bands usually indicate a faulty or saturated sensor rather than a
// real environmental excursion.
//
// # Payloads
//
// Sensor boards publish the bare reading as text ("22.4"). [ParseReading] also
// accepts JSON numbers and {"value": n} envelopes. NaN and infinities are
// rejected before classification so [Classify] only ever sees finite values.
package domain
