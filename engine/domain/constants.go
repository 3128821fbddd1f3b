package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Entry is one constants-table row: a component type discriminator plus
// flat numeric kinetic parameters. On the wire an entry is a single flat
// object, e.g. {"strength": 5.0, "type": "promoter"}.
type Entry struct {
	Type       string
	IsFloating bool
	Params     map[string]float64
}

// Get returns a parameter with a default for absent keys.
func (e Entry) Get(key string, def float64) float64 {
	if v, ok := e.Params[key]; ok {
		return v
	}
	return def
}

// Has reports whether the entry carries the parameter.
func (e Entry) Has(key string) bool {
	_, ok := e.Params[key]
	return ok
}

func (e Entry) clone() Entry {
	p := make(map[string]float64, len(e.Params))
	for k, v := range e.Params {
		p[k] = v
	}
	return Entry{Type: e.Type, IsFloating: e.IsFloating, Params: p}
}

// MarshalJSON flattens the entry into one object.
func (e Entry) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Params)+2)
	for k, v := range e.Params {
		m[k] = v
	}
	if e.Type != "" {
		m["type"] = e.Type
	}
	if e.IsFloating {
		m["is_floating"] = true
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the flat object form. Non-numeric fields other than
// the discriminators are ignored.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	e.Params = make(map[string]float64, len(m))
	for k, v := range m {
		switch k {
		case "type":
			if s, ok := v.(string); ok {
				e.Type = s
			}
		case "is_floating":
			if b, ok := v.(bool); ok {
				e.IsFloating = b
			}
		default:
			if f, ok := v.(float64); ok {
				e.Params[k] = f
			}
		}
	}
	return nil
}

// Constants maps component labels to kinetic parameter entries. The engine
// accepts arbitrary tables; labels without an entry fall back to the role
// defaults during assembly.
type Constants map[string]Entry

// Clone deep-copies the table so per-call adjustments never leak into the
// caller's copy.
func (c Constants) Clone() Constants {
	out := make(Constants, len(c))
	for k, e := range c {
		out[k] = e.clone()
	}
	return out
}

// Validate rejects tables that cannot produce a meaningful simulation:
// blank labels and non-finite or negative parameter values. Unknown labels
// and unknown parameter keys are allowed.
func (c Constants) Validate() error {
	for label, e := range c {
		if strings.TrimSpace(label) == "" {
			return NewValidationError("label", label, ErrBadConstants)
		}
		for k, v := range e.Params {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				field := fmt.Sprintf("%s.%s", label, k)
				return NewValidationError(field, fmt.Sprintf("%g", v), ErrBadConstants)
			}
		}
	}
	return nil
}

// RoleDefaults returns the default kinetic parameters a structural role
// receives when the constants table has no entry for its label. Regulator
// and misc roles have none; their kinetics live on regulation records.
func RoleDefaults(r Role) map[string]float64 {
	switch r {
	case RolePromoter:
		return map[string]float64{"strength": 1.0, "binding_affinity": 0.1}
	case RoleRBS:
		return map[string]float64{"efficiency": 1.0, "translation_rate": 5.0}
	case RoleTerminator:
		return map[string]float64{"efficiency": 0.99}
	case RoleCDS:
		return map[string]float64{
			"translation_rate": 5.0,
			"degradation_rate": 0.1,
			"init_conc":        0.01,
			"max_expression":   100.0,
		}
	}
	return nil
}

// TierDefaults returns the strength-tier kinetic defaults for a regulator
// role: the dissociation-like constant (Kr for repressors, Ka otherwise)
// and the Hill coefficient.
func TierDefaults(role Role, s Strength) (k, n float64) {
	if role == RoleRepressor {
		switch s {
		case StrengthStrong:
			return 0.15, 4
		case StrengthWeak:
			return 0.5, 2
		}
		return 0.35, 2
	}
	switch s {
	case StrengthStrong:
		return 0.2, 4
	case StrengthWeak:
		return 0.6, 2
	}
	return 0.4, 2
}

// DefaultConstants returns the built-in table of component kinetics. Labels
// cover the stock board inventory: numbered and lettered structural parts,
// the repressor/activator families, and the floating environmental
// regulators.
func DefaultConstants() Constants {
	c := make(Constants, 96)

	suffixes := []string{"1", "2", "3", "a", "b", "c", "d", "e", "f", "g", "h"}
	for _, s := range suffixes {
		c["promoter_"+s] = Entry{Type: "promoter", Params: map[string]float64{"strength": 5.0}}
		c["rbs_"+s] = Entry{Type: "rbs", Params: map[string]float64{"efficiency": 1.0}}
		c["cds_"+s] = Entry{Type: "cds", Params: map[string]float64{
			"degradation_rate": 1.0, "translation_rate": 7.0, "init_conc": 0.0,
		}}
		c["terminator_"+s] = Entry{Type: "terminator", Params: map[string]float64{"efficiency": 0.99}}
	}

	// Paired repressor markers tuned for ring-oscillator dynamics.
	for _, s := range []string{"1", "2", "3"} {
		c["repressor_start_"+s] = Entry{Type: "repressor", Params: map[string]float64{"Kr": 0.35, "n": 2}}
		c["repressor_end_"+s] = Entry{Type: "repressor", Params: map[string]float64{"Kr": 0.35, "n": 2}}
	}

	repressorKr := map[string]float64{
		"a": 0.5, "b": 0.1, "c": 0.4, "d": 0.5, "e": 0.5, "f": 0.5, "g": 0.5, "h": 0.5,
	}
	for _, s := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		c["repressor_"+s] = Entry{Type: "repressor", Params: map[string]float64{"Kr": repressorKr[s], "n": 2}}
		c["activator_"+s] = Entry{Type: "activator", Params: map[string]float64{"Ka": 0.4, "n": 2}}
	}
	for _, s := range []string{"a", "b", "c"} {
		c["repressor_"+s+"_start"] = Entry{Type: "repressor", Params: map[string]float64{"Kr": repressorKr[s], "n": 2}}
		c["repressor_"+s+"_end"] = Entry{Type: "repressor", Params: map[string]float64{"Kr": repressorKr[s], "n": 2}}
	}

	for _, s := range []string{"a", "b", "c"} {
		c["floating_inhibitor_"+s] = Entry{Type: "inhibitor", IsFloating: true, Params: map[string]float64{
			"Kr": 0.5, "n": 2, "concentration": 1.0,
		}}
		c["floating_inducer_"+s] = Entry{Type: "inducer", IsFloating: true, Params: map[string]float64{
			"Ka": 0.5, "n": 2, "concentration": 1.0,
		}}
	}

	return c
}
