package domain

import "strings"

// Classification is the typed reading of a raw board label, computed once at
// parse time and stored on the component so label strings are never
// re-parsed downstream.
type Classification struct {
	Role          Role
	Position      Position
	RegulationKey string
	IsFloating    bool
}

const floatingPrefix = "floating_"

// Classify infers the structural role of a raw label and, for regulators,
// the start/end position and the key grouping both halves of one logical
// regulatory pair. Matching is case-insensitive. Both `repressor_start_2`
// and `repressor_start2` spellings yield key `repressor_2`. A floating
// regulator label without an explicit start/end token (`floating_inhibitor_a`)
// acts as the start marker of its pair, since its source is the environment
// rather than a CDS. Classify is pure and total: anything unrecognised
// comes back as RoleMisc.
func Classify(label string) Classification {
	lc := strings.ToLower(strings.TrimSpace(label))
	floating := strings.HasPrefix(lc, floatingPrefix)
	body := strings.TrimPrefix(lc, floatingPrefix)

	switch {
	case strings.HasPrefix(body, "promoter"):
		return Classification{Role: RolePromoter}
	case strings.HasPrefix(body, "rbs"):
		return Classification{Role: RoleRBS}
	case strings.HasPrefix(body, "cds"):
		return Classification{Role: RoleCDS}
	case strings.HasPrefix(body, "terminator"):
		return Classification{Role: RoleTerminator}
	}

	parts := strings.Split(body, "_")
	kind := Role(parts[0])
	if !kind.IsRegulator() {
		return Classification{Role: RoleMisc}
	}

	if len(parts) >= 2 {
		posTok := parts[1]
		suffix := ""
		if len(parts) >= 3 {
			suffix = parts[2]
		}

		var pos Position
		switch {
		case strings.HasPrefix(posTok, string(PositionStart)):
			pos = PositionStart
			if suffix == "" {
				suffix = posTok[len(PositionStart):]
			}
		case strings.HasPrefix(posTok, string(PositionEnd)):
			pos = PositionEnd
			if suffix == "" {
				suffix = posTok[len(PositionEnd):]
			}
		}

		if pos != PositionNone {
			return Classification{
				Role:          kind,
				Position:      pos,
				RegulationKey: regKey(kind, suffix),
				IsFloating:    floating,
			}
		}
	}

	if floating {
		// No explicit position: the floating component itself is the start.
		suffix := ""
		if len(parts) >= 2 {
			suffix = parts[1]
		}
		return Classification{
			Role:          kind,
			Position:      PositionStart,
			RegulationKey: regKey(kind, suffix),
			IsFloating:    true,
		}
	}

	return Classification{Role: RoleMisc}
}

func regKey(kind Role, suffix string) string {
	if suffix == "" {
		return string(kind)
	}
	return string(kind) + "_" + suffix
}
