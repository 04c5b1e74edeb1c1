package scene

import "strings"

// AspectRatio is the root element's preserveAspectRatio: how the viewBox is
// aligned and scaled inside the intrinsic size.
type AspectRatio struct {
	// None stretches the viewBox non-uniformly to fill the intrinsic size.
	None bool
	// AlignX and AlignY place the scaled viewBox: 0 min, 0.5 mid, 1 max.
	AlignX, AlignY float64
	// Slice covers the intrinsic size (content may be cut) instead of
	// fitting inside it.
	Slice bool
}

// DefaultAspectRatio is "xMidYMid meet".
var DefaultAspectRatio = AspectRatio{AlignX: 0.5, AlignY: 0.5}

var alignments = map[string]float64{"Min": 0, "Mid": 0.5, "Max": 1}

// parseAspectRatio parses "[defer] <align> [meet|slice]". Invalid values
// report false and the default applies.
func parseAspectRatio(s string) (AspectRatio, bool) {
	fields := strings.Fields(s)
	if len(fields) > 0 && fields[0] == "defer" {
		fields = fields[1:]
	}
	if len(fields) == 0 || len(fields) > 2 {
		return DefaultAspectRatio, false
	}

	ar := DefaultAspectRatio
	if len(fields) == 2 {
		switch fields[1] {
		case "meet":
		case "slice":
			ar.Slice = true
		default:
			return DefaultAspectRatio, false
		}
	}

	align := fields[0]
	if align == "none" {
		return AspectRatio{None: true}, true
	}
	if len(align) != 8 || align[0] != 'x' || align[4] != 'Y' {
		return DefaultAspectRatio, false
	}
	ax, okx := alignments[align[1:4]]
	ay, oky := alignments[align[5:8]]
	if !okx || !oky {
		return DefaultAspectRatio, false
	}
	ar.AlignX, ar.AlignY = ax, ay
	return ar, true
}
