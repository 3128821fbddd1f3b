// Package regulation infers the regulatory network of an assembled board:
// it binds paired regulator markers to the promoters they act on and the
// coding sequences that drive them, and backfills constitutive expression
// for anything left unregulated.
package regulation

import (
	"fmt"

	"github.com/GeneBoardAI/geneboard-mvp/engine/board"
	"github.com/GeneBoardAI/geneboard-mvp/engine/domain"
)

// Outcome is the resolver's full output for one board.
type Outcome struct {
	Regulations []domain.Regulation
	Issues      []domain.RegulatorIssue
	Unpaired    []domain.UnpairedRegulator
}

var crossKind = map[domain.Role]domain.RegKind{
	domain.RoleActivator: domain.RegTranscriptionalActivation,
	domain.RoleRepressor: domain.RegTranscriptionalRepression,
	domain.RoleInducer:   domain.RegInducedActivation,
	domain.RoleInhibitor: domain.RegEnvironmentalRepression,
}

var selfKind = map[domain.Role]domain.RegKind{
	domain.RoleActivator: domain.RegSelfActivation,
	domain.RoleRepressor: domain.RegSelfRepression,
	domain.RoleInducer:   domain.RegSelfActivation,
	domain.RoleInhibitor: domain.RegSelfRepression,
}

// Resolve walks the regulator registry in document order and emits one
// regulation per resolvable start x end pairing. Binding is purely
// adjacency-based: an end marker acts on the nearest preceding non-regulator
// component (which must be a promoter), a non-floating start marker draws
// its source from the nearest preceding non-regulator component (which must
// be a CDS). Every start is paired against every resolved end of its key; a
// key with two starts and two ends therefore yields four records.
func Resolve(s *board.Stream, circuits []*domain.Circuit, constants domain.Constants) Outcome {
	var out Outcome

	byName := make(map[string]*domain.Circuit, len(circuits))
	for _, c := range circuits {
		byName[c.Name] = c
	}

	for _, key := range s.Keys {
		rec := s.Registry[key]

		if len(rec.Starts) != len(rec.Ends) {
			out.Unpaired = append(out.Unpaired, unpaired(key, rec))
		}
		// Best effort past the diagnostic: pairing proceeds whenever both
		// sides have at least one marker.
		if len(rec.Starts) == 0 || len(rec.Ends) == 0 {
			continue
		}

		for _, end := range rec.Ends {
			prom := s.PrevNonRegulator(end)
			if prom == nil || prom.Role != domain.RolePromoter {
				out.Issues = append(out.Issues, domain.RegulatorIssue{
					Label: end.Label,
					Issue: "Regulator end not immediately after promoter.",
					Hint:  "Place regulator end after the promoter you want to regulate!",
				})
				continue
			}

			affected := downstreamCDS(byName[end.CircuitName], prom.GlobalIndex)

			for _, start := range rec.Starts {
				if rec.IsFloating && start.CircuitName != "" {
					// Warning only; resolution continues and the kind below
					// may still come out "self" when the circuits match.
					out.Issues = append(out.Issues, domain.RegulatorIssue{
						Label: start.Label,
						Issue: "Floating start inside circuit.",
						Hint:  "Move floating regulator's start to be outside of all circuits!",
					})
				}

				source := key
				if !rec.IsFloating {
					src := s.PrevNonRegulator(start)
					if src == nil || src.Role != domain.RoleCDS {
						out.Issues = append(out.Issues, domain.RegulatorIssue{
							Label: start.Label,
							Issue: "Regulator start does not follow a CDS.",
							Hint:  "Place regulator start after the CDS you want to be the source!",
						})
						continue
					}
					source = src.Label
				}

				kind := selfKind[rec.Role]
				if (rec.IsFloating && start.CircuitName == "") || start.CircuitName != end.CircuitName {
					kind = crossKind[rec.Role]
				}

				reg := domain.Regulation{
					Kind:   kind,
					Source: source,
					Target: prom.Label,
					Params: kinetics(rec, start, constants),
				}
				if !rec.IsFloating {
					reg.AffectedCDSs = affected
				}
				out.Regulations = append(out.Regulations, reg)
			}
		}
	}

	return out
}

func unpaired(key string, rec *board.RegistryEntry) domain.UnpairedRegulator {
	u := domain.UnpairedRegulator{
		Key:    key,
		Role:   rec.Role,
		Starts: len(rec.Starts),
		Ends:   len(rec.Ends),
	}
	if len(rec.Starts) > len(rec.Ends) {
		u.Issue = fmt.Sprintf("Missing %d end element(s)", len(rec.Starts)-len(rec.Ends))
		u.Hint = fmt.Sprintf("Add %s end element(s) to complete the regulation", rec.Role)
	} else {
		u.Issue = fmt.Sprintf("Missing %d start element(s)", len(rec.Ends)-len(rec.Starts))
		u.Hint = fmt.Sprintf("Add %s start element(s) to complete the regulation", rec.Role)
	}
	return u
}

// downstreamCDS lists the CDS labels in circ strictly past the given board
// position. A nil circuit (end marker outside any circuit) has none.
func downstreamCDS(circ *domain.Circuit, afterIndex int) []string {
	if circ == nil {
		return nil
	}
	var names []string
	for _, c := range circ.Components {
		if c.Role == domain.RoleCDS && c.GlobalIndex > afterIndex {
			names = append(names, c.Label)
		}
	}
	return names
}

// kinetics derives the regulation's constants: strength-tier defaults from
// the start marker, overridden field-by-field by any constants-table entry
// for the start's regulation key.
func kinetics(rec *board.RegistryEntry, start *domain.Component, constants domain.Constants) domain.RegParams {
	k, n := domain.TierDefaults(rec.Role, start.Strength)
	base, ok := constants[start.RegulationKey]
	if !ok {
		// Floating regulators are tabled under their full label
		// (floating_inhibitor_a) rather than their pair key (inhibitor_a).
		base = constants[start.Label]
	}

	p := domain.RegParams{
		Role:          rec.Role,
		IsFloating:    rec.IsFloating,
		Concentration: base.Get("concentration", 1.0),
		N:             base.Get("n", n),
	}
	if rec.Role == domain.RoleRepressor {
		p.Kr = base.Get("Kr", k)
	} else {
		p.Ka = base.Get("Ka", k)
	}
	return p
}
