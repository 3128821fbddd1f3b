package kinetics

import (
	"fmt"
	"strings"

	"github.com/GeneBoardAI/geneboard-mvp/engine/domain"
)

// Equation is the rendered rate law for one protein, for display alongside
// the simulated trajectory.
type Equation struct {
	LaTeX       string   `json:"latex"`
	Description string   `json:"description"`
	Components  []string `json:"components"`
}

// Equations renders one rate law per entry of the protein mapping (display
// name -> CDS label). Each protein's controlling promoter is the nearest
// promoter upstream of its CDS; regulations targeting that promoter become
// Hill factors joined into the production term. A protein with no
// non-constitutive regulation renders the plain constitutive form.
func Equations(circuits []*domain.Circuit, regs []domain.Regulation, mapping map[string]string) map[string]Equation {
	cdsToProtein := make(map[string]string, len(mapping))
	for proteinName, cdsLabel := range mapping {
		cdsToProtein[cdsLabel] = proteinName
	}

	out := make(map[string]Equation, len(mapping))
	for proteinName, cdsLabel := range mapping {
		promoter := controllingPromoter(circuits, cdsLabel)
		if promoter == "" {
			continue
		}

		var affecting []domain.Regulation
		for _, reg := range regs {
			if reg.Target == promoter && reg.Kind != domain.RegConstitutive {
				affecting = append(affecting, reg)
			}
		}

		name := simpleName(proteinName)
		if len(affecting) == 0 {
			out[proteinName] = Equation{
				LaTeX:       fmt.Sprintf(`\frac{d[%s]}{dt} = k_{prod} - \gamma \cdot [%s]`, name, name),
				Description: "Constitutive protein production with degradation",
				Components:  []string{"Production rate (k_prod)", "Degradation rate (γ)"},
			}
			continue
		}

		var terms []string
		var descriptions []string
		for _, reg := range affecting {
			srcName := name
			if !reg.Kind.IsSelf() {
				if p, ok := cdsToProtein[reg.Source]; ok {
					srcName = simpleName(p)
				} else {
					srcName = reg.Source
				}
			}
			n := reg.Params.N
			if n == 0 {
				n = 2
			}
			switch {
			case reg.Kind.IsRepression():
				terms = append(terms, fmt.Sprintf(`\frac{1}{1 + \left(\frac{[%s]}{K_r}\right)^%g}`, srcName, n))
				if reg.Kind.IsSelf() {
					descriptions = append(descriptions, fmt.Sprintf("Self-repression by %s (n=%g)", srcName, n))
				} else {
					descriptions = append(descriptions, fmt.Sprintf("Repression by %s (n=%g)", srcName, n))
				}
			case reg.Kind.IsActivation():
				terms = append(terms, fmt.Sprintf(`\frac{[%s]^%g}{K_a^%g + [%s]^%g}`, srcName, n, n, srcName, n))
				if reg.Kind.IsSelf() {
					descriptions = append(descriptions, fmt.Sprintf("Self-activation by %s (n=%g)", srcName, n))
				} else {
					descriptions = append(descriptions, fmt.Sprintf("Activation by %s (n=%g)", srcName, n))
				}
			}
		}

		out[proteinName] = Equation{
			LaTeX: fmt.Sprintf(`\frac{d[%s]}{dt} = k_{prod} \cdot %s - \gamma \cdot [%s]`,
				name, strings.Join(terms, ` \cdot `), name),
			Description: strings.Join(descriptions, "; "),
			Components:  append(descriptions, "Degradation rate (γ)"),
		}
	}
	return out
}

// controllingPromoter finds the nearest promoter upstream of the first
// occurrence of the CDS label across all circuits.
func controllingPromoter(circuits []*domain.Circuit, cdsLabel string) string {
	for _, circ := range circuits {
		for i, comp := range circ.Components {
			if comp.Role != domain.RoleCDS || comp.Label != cdsLabel {
				continue
			}
			for j := i - 1; j >= 0; j-- {
				if circ.Components[j].Role == domain.RolePromoter {
					return circ.Components[j].Label
				}
			}
			return ""
		}
	}
	return ""
}

// simpleName trims a display name to its protein part:
// "Protein A, Gene Circuit 1" -> "Protein A".
func simpleName(displayName string) string {
	if i := strings.IndexByte(displayName, ','); i >= 0 {
		return displayName[:i]
	}
	return displayName
}
