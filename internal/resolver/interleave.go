package resolver

import (
	"math"

	"playercore/internal/schedule"
)

const secondsPerHour = 3600

// interleaveShareOfVoice partitions ordered survivors into normal
// (ShareOfVoice == 0) and interrupt (ShareOfVoice > 0) layouts, computes
// each interrupt's required hourly play count, and produces a single
// sequence in which interrupts are spread evenly among the normal plays.
// If there are no interrupts, ordered is returned unchanged.
func interleaveShareOfVoice(ordered []schedule.ScheduledLayout) []schedule.ScheduledLayout {
	var normals, interrupts []schedule.ScheduledLayout
	for _, l := range ordered {
		if l.ShareOfVoice > 0 {
			interrupts = append(interrupts, l)
		} else {
			normals = append(normals, l)
		}
	}
	if len(interrupts) == 0 {
		return ordered
	}

	requiredPlays := make([]int, len(interrupts))
	totalInterruptSeconds := 0
	for i, in := range interrupts {
		d := in.DurationSeconds
		if d <= 0 {
			d = 1
		}
		required := int(math.Ceil((in.ShareOfVoice / 100) * secondsPerHour / float64(d)))
		if required < 1 {
			required = 1
		}
		requiredPlays[i] = required
		totalInterruptSeconds += required * d
	}

	remaining := secondsPerHour - totalInterruptSeconds
	if remaining < 0 {
		remaining = 0
	}

	interruptSlots := make([]schedule.ScheduledLayout, 0)
	for i, in := range interrupts {
		for n := 0; n < requiredPlays[i]; n++ {
			interruptSlots = append(interruptSlots, in)
		}
	}

	normalSlots := make([]schedule.ScheduledLayout, 0)
	if len(normals) > 0 {
		for _, n := range normals {
			d := n.DurationSeconds
			if d <= 0 {
				d = 1
			}
			plays := int(math.Floor(float64(remaining) / float64(d*len(normals))))
			for i := 0; i < plays; i++ {
				normalSlots = append(normalSlots, n)
			}
		}
	}

	return mergeBySpacing(normalSlots, interruptSlots)
}

// mergeBySpacing distributes interrupts uniformly across a total
// sequence of len(normals)+len(interrupts) positions, placing an
// interrupt wherever step_index % stride == stride-1, per the upstream
// interleaving tie-break rule.
func mergeBySpacing(normals, interrupts []schedule.ScheduledLayout) []schedule.ScheduledLayout {
	if len(interrupts) == 0 {
		return normals
	}
	total := len(normals) + len(interrupts)
	stride := total / len(interrupts)
	if stride < 1 {
		stride = 1
	}

	out := make([]schedule.ScheduledLayout, 0, total)
	ni, nn := 0, 0
	for step := 0; step < total && (ni < len(interrupts) || nn < len(normals)); step++ {
		if ni < len(interrupts) && step%stride == stride-1 {
			out = append(out, interrupts[ni%len(interrupts)])
			ni++
			continue
		}
		if nn < len(normals) {
			out = append(out, normals[nn])
			nn++
			continue
		}
		if ni < len(interrupts) {
			out = append(out, interrupts[ni%len(interrupts)])
			ni++
		}
	}
	// Append any interrupts the stride loop didn't place yet (I > 3600
	// overrun case: interrupts still get their required counts).
	for ; ni < len(interrupts); ni++ {
		out = append(out, interrupts[ni])
	}
	return out
}
