// Package circuit groups a parsed component stream into transcriptional
// units, assigns kinetic parameters from the constants table, and validates
// structural well-formedness within each unit.
package circuit

import (
	"fmt"

	"github.com/GeneBoardAI/geneboard-mvp/engine/board"
	"github.com/GeneBoardAI/geneboard-mvp/engine/domain"
)

// Assemble splits the stream into blocks delimited by breaks and turns every
// block containing at least one CDS into a circuit. Blocks without a CDS
// produce no circuit; their components come back in the second return value
// as "outside valid circuits" diagnostics. Assemble mutates the stream's
// components (Params, CircuitName) and is meant to run once per parse.
func Assemble(s *board.Stream, constants domain.Constants) ([]*domain.Circuit, []domain.Flagged) {
	var circuits []*domain.Circuit
	var outside []domain.Flagged

	for _, block := range s.Blocks() {
		assignParams(block, constants)

		if !hasCDS(block) {
			for _, c := range block {
				outside = append(outside, domain.Flag(c, "Outside valid circuit"))
			}
			continue
		}

		name := fmt.Sprintf("circuit_%d", len(circuits)+1)
		circuits = append(circuits, finalize(name, block))
	}

	return circuits, outside
}

func hasCDS(block []*domain.Component) bool {
	for _, c := range block {
		if c.Role == domain.RoleCDS {
			return true
		}
	}
	return false
}

// assignParams fills every component's kinetic parameters from the constants
// table keyed by label, with role defaults for anything the table omits.
// Components of blocks that end up discarded are parameterized too, so their
// diagnostics carry the same detail as circuit members.
func assignParams(block []*domain.Component, constants domain.Constants) {
	for _, c := range block {
		defaults := domain.RoleDefaults(c.Role)
		if defaults == nil {
			continue
		}
		entry := constants[c.Label]
		c.Params = make(map[string]float64, len(defaults))
		for k, def := range defaults {
			c.Params[k] = entry.Get(k, def)
		}
	}
}

func finalize(name string, block []*domain.Component) *domain.Circuit {
	circ := &domain.Circuit{
		Name:       name,
		Components: block,
		Counts:     make(map[domain.Role]int),
		Fallbacks:  make(map[string]domain.Fallback),
		CDSToRBS:   make(map[string]string),
	}

	// One left-to-right pass: running counts drive the misplacement rules.
	lastRBS := ""
	for _, c := range block {
		c.CircuitName = name
		circ.Counts[c.Role]++

		switch c.Role {
		case domain.RolePromoter:
			if circ.Counts[domain.RoleCDS] > 0 {
				circ.Misplaced = append(circ.Misplaced, domain.Flag(c, "Promoter after CDS"))
			}
		case domain.RoleRBS:
			lastRBS = c.Label
			if circ.Counts[domain.RoleCDS] > 0 && circ.Counts[domain.RoleRBS] == 1 {
				circ.Misplaced = append(circ.Misplaced, domain.Flag(c, "First RBS after CDS"))
			}
		case domain.RoleTerminator:
			if circ.Counts[domain.RoleCDS] == 0 {
				circ.Misplaced = append(circ.Misplaced, domain.Flag(c, "Terminator before CDS"))
			}
		case domain.RoleCDS:
			if circ.Counts[domain.RolePromoter] == 0 || circ.Counts[domain.RoleRBS] == 0 {
				circ.Misplaced = append(circ.Misplaced, domain.Flag(c, "CDS does not have a promoter and/or RBS before it"))
			}
			if lastRBS != "" {
				circ.CDSToRBS[c.Label] = lastRBS
			}
		}
	}

	flagDuplicates(circ, block)
	deriveFallbacks(circ, block)
	return circ
}

// flagDuplicates marks redundant components: promoters and terminators
// beyond the first, and RBS components that violate the interleaving rules.
func flagDuplicates(circ *domain.Circuit, block []*domain.Component) {
	flagBeyondFirst := func(role domain.Role, reason string) {
		seen := 0
		for _, c := range block {
			if c.Role != role {
				continue
			}
			seen++
			if seen > 1 {
				circ.Extras = append(circ.Extras, domain.Flag(c, reason))
			}
		}
	}
	flagBeyondFirst(domain.RolePromoter, "Extra promoter")
	flagBeyondFirst(domain.RoleTerminator, "Extra terminator")

	extraRBS := invalidRBSRuns(block)
	if len(extraRBS) == 0 && circ.Counts[domain.RoleRBS] > circ.Counts[domain.RoleCDS] {
		// No invalid run pattern but still more RBS than CDS: the trailing
		// excess is redundant.
		excess := circ.Counts[domain.RoleRBS] - circ.Counts[domain.RoleCDS]
		var rbs []*domain.Component
		for _, c := range block {
			if c.Role == domain.RoleRBS {
				rbs = append(rbs, c)
			}
		}
		for _, c := range rbs[len(rbs)-excess:] {
			extraRBS = append(extraRBS, domain.Flag(c, "Extra RBS (more RBS than CDS)"))
		}
	}
	circ.Extras = append(circ.Extras, extraRBS...)
}

// invalidRBSRuns walks the interleaved RBS/CDS subsequence looking for runs
// of k>1 RBS immediately followed by m>1 CDS. A single RBS feeding several
// CDS (an operon) and strict alternation are both valid; stacked RBS in
// front of stacked CDS is not, and every RBS in such a run past the first is
// flagged.
func invalidRBSRuns(block []*domain.Component) []domain.Flagged {
	var seq []*domain.Component
	for _, c := range block {
		if c.Role == domain.RoleRBS || c.Role == domain.RoleCDS {
			seq = append(seq, c)
		}
	}

	var extras []domain.Flagged
	i := 0
	for i < len(seq) {
		if seq[i].Role != domain.RoleRBS {
			i++
			continue
		}
		runStart := i
		for i < len(seq) && seq[i].Role == domain.RoleRBS {
			i++
		}
		rbsRun := i - runStart

		cdsRun := 0
		for j := i; j < len(seq) && seq[j].Role == domain.RoleCDS; j++ {
			cdsRun++
		}
		i += cdsRun

		if rbsRun > 1 && cdsRun > 1 {
			for _, c := range seq[runStart+1 : runStart+rbsRun] {
				extras = append(extras, domain.Flag(c, "Invalid RBS sequence (multiple RBS before multiple CDS)"))
			}
		}
	}
	return extras
}

// deriveFallbacks records low-value substitutes for every CDS whose block is
// missing a promoter, RBS, or terminator. The ODE builder uses them in place
// of the normal derivation so expression stays barely functional instead of
// the circuit being rejected.
func deriveFallbacks(circ *domain.Circuit, block []*domain.Component) {
	fb := domain.Fallback{}
	if circ.Counts[domain.RolePromoter] == 0 {
		fb.MissingPromoter = true
		fb.PromStrength = 0.01
	}
	if circ.Counts[domain.RoleRBS] == 0 {
		fb.MissingRBS = true
		fb.RBSEfficiency = 0.01
	}
	if circ.Counts[domain.RoleTerminator] == 0 {
		fb.MissingTerminator = true
		fb.DegradationRate = 0.01
	}
	if fb.Zero() {
		return
	}
	for _, c := range block {
		if c.Role == domain.RoleCDS {
			circ.Fallbacks[c.Label] = fb
		}
	}
}
