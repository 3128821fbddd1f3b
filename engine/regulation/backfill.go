package regulation

import "github.com/GeneBoardAI/geneboard-mvp/engine/domain"

// Backfill adds a basal "always on" regulation for every CDS not already
// targeted by any regulation, so every coding sequence has a well-defined
// production term. The record targets the nearest promoter upstream of the
// CDS within its own circuit; a CDS with no upstream promoter receives
// nothing (its fallback parameters already cover it).
func Backfill(circuits []*domain.Circuit, existing []domain.Regulation) []domain.Regulation {
	covered := make(map[string]bool)
	for _, reg := range existing {
		for _, name := range reg.AffectedCDSs {
			covered[name] = true
		}
	}

	var added []domain.Regulation
	for _, circ := range circuits {
		for i, comp := range circ.Components {
			if comp.Role != domain.RoleCDS || covered[comp.Label] {
				continue
			}
			prom := nearestPromoterBefore(circ, i)
			if prom == nil {
				continue
			}
			added = append(added, domain.Regulation{
				Kind:         domain.RegConstitutive,
				Target:       prom.Label,
				Params:       domain.RegParams{BasalRate: 0.1},
				AffectedCDSs: []string{comp.Label},
			})
			// A duplicate label later in the board is already served by this
			// record; never emit a second one for the same CDS name.
			covered[comp.Label] = true
		}
	}
	return added
}

func nearestPromoterBefore(circ *domain.Circuit, idx int) *domain.Component {
	for i := idx - 1; i >= 0; i-- {
		if circ.Components[i].Role == domain.RolePromoter {
			return circ.Components[i]
		}
	}
	return nil
}
