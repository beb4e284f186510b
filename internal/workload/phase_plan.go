package workload

import (
	"math"
	"time"
)

type phasePlan struct {
	segments []phaseSegment
	duration time.Duration
	maxRate  float64
}

type phaseSegment struct {
	start    time.Duration
	duration time.Duration
	fromRate float64
	toRate   float64
}

func compilePhasePlan(phases []Phase) *phasePlan {
	if len(phases) == 0 {
		return nil
	}

	plan := &phasePlan{}
	var offset time.Duration
	for _, phase := range phases {
		switch phase.Type {
		case PhaseTypeRamp:
			if phase.Duration <= 0 {
				continue
			}
			seg := phaseSegment{
				start:    offset,
				duration: phase.Duration,
				fromRate: float64(phase.FromRate),
				toRate:   float64(phase.ToRate),
			}
			plan.appendSegment(seg)
			offset += phase.Duration
		case PhaseTypeStep:
			for _, step := range phase.Steps {
				if step.Duration <= 0 {
					continue
				}
				seg := phaseSegment{
					start:    offset,
					duration: step.Duration,
					fromRate: float64(step.Rate),
					toRate:   float64(step.Rate),
				}
				plan.appendSegment(seg)
				offset += step.Duration
			}
		case PhaseTypeSpike:
			if phase.Duration <= 0 {
				continue
			}
			seg := phaseSegment{
				start:    offset,
				duration: phase.Duration,
				fromRate: float64(phase.Rate),
				toRate:   float64(phase.Rate),
			}
			plan.appendSegment(seg)
			offset += phase.Duration
		}
	}

	if len(plan.segments) == 0 {
		return nil
	}
	plan.duration = offset
	return plan
}

func (p *phasePlan) appendSegment(seg phaseSegment) {
	p.segments = append(p.segments, seg)
	p.maxRate = math.Max(p.maxRate, math.Max(seg.fromRate, seg.toRate))
}

func (p *phasePlan) rateAt(elapsed time.Duration) (float64, bool) {
	if p == nil || len(p.segments) == 0 {
		return 0, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	for _, seg := range p.segments {
		if elapsed < seg.start {
			continue
		}
		end := seg.start + seg.duration
		if elapsed >= end {
			continue
		}
		if seg.duration <= 0 {
			continue
		}
		if seg.fromRate == seg.toRate {
			return seg.fromRate, true
		}
		progress := float64(elapsed-seg.start) / float64(seg.duration)
		if progress < 0 {
			progress = 0
		} else if progress > 1 {
			progress = 1
		}
		return seg.fromRate + (seg.toRate-seg.fromRate)*progress, true
	}
	return 0, false
}

func (p *phasePlan) maxBurst() int {
	if p == nil {
		return 0
	}
	burst := int(math.Ceil(p.maxRate))
	if burst < 1 {
		burst = 1
	}
	return burst
}

func (p *phasePlan) totalDuration() time.Duration {
	if p == nil {
		return 0
	}
	return p.duration
}
