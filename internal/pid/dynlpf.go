package pid

import "github.com/banshee-data/rotorcore/internal/units"

// DynLpfCutoff maps a throttle in [0,1] to a D-term cutoff between minHz and
// maxHz. The curve is t + t(1-t)*expo/10, so expo lifts mid-throttle cutoffs
// while both ends stay fixed.
func DynLpfCutoff(throttle, minHz, maxHz, expo float32) float32 {
	t := units.Clamp(throttle, 0, 1)
	curve := t*(1-t)*expo/10 + t
	return units.MapRange(curve, 0, 1, minHz, maxHz)
}

// updateDynLpf re-derives the D-term cutoffs from throttle. It runs at most
// once per UpdateIntervalUs and only retunes the filters when the quantized
// throttle bucket changed.
func (c *Controller) updateDynLpf(throttle float32) {
	cfg := c.cfg.DynLpf
	if !cfg.Enabled {
		return
	}
	if c.dynLpfStarted && c.nowUs-c.lastDynLpfUpdateUs < cfg.UpdateIntervalUs {
		return
	}
	c.dynLpfStarted = true
	c.lastDynLpfUpdateUs = c.nowUs

	buckets := float32(cfg.ThrottleBuckets)
	quantized := int32(units.Clamp(throttle, 0, 1)*buckets + 0.5)
	if quantized == c.dynLpfPreviousQuantizedThrottle {
		return
	}
	c.dynLpfPreviousQuantizedThrottle = quantized

	cutoff := DynLpfCutoff(float32(quantized)/buckets, cfg.MinHz, cfg.MaxHz, cfg.Expo)
	c.setDtermCutoff(cutoff)
	c.dynLpfRecomputes++
}

// setDtermCutoff retunes both D-term stages of every axis. The second stage
// keeps its configured ratio to the first.
func (c *Controller) setDtermCutoff(cutoffHz float32) {
	ratio := float32(1)
	if base := c.cfg.DtermLowpass.CutoffHz; base > 0 && c.cfg.DtermLowpass2.CutoffHz > 0 {
		ratio = c.cfg.DtermLowpass2.CutoffHz / base
	}
	for i := range c.axes {
		c.axes[i].dtermLowpass.SetCutoff(cutoffHz)
		c.axes[i].dtermLowpass2.SetCutoff(cutoffHz * ratio)
	}
	c.dtermCutoffHz = cutoffHz
}
