package core

import "math"

// EaseOutCubic decelerates toward t = 1.
func EaseOutCubic(t float64) float64 {
	return 1 - math.Pow(1-t, 3)
}

// EaseInOutCubic accelerates until t = 0.5 and decelerates after it.
func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// Clamp01 limits t to [0, 1].
func Clamp01(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}

// FrameAlpha converts a lerp factor tuned for one frame at refRate frames
// per second into the equivalent factor for a step of dt seconds. At
// dt == 1/refRate it returns factor unchanged.
func FrameAlpha(factor, dt, refRate float64) float64 {
	if factor >= 1 {
		return 1
	}
	if factor <= 0 || dt <= 0 {
		return 0
	}
	if refRate <= 0 {
		return factor
	}
	return 1 - math.Pow(1-factor, dt*refRate)
}
