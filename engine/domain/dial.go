package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Dial is a set of named tuning adjustments applied to a constants table
// before a run: gene-specific keys (promoter2_strength), generic keys
// (efficiency, binding_affinity) and global rate multipliers. Unknown keys
// are ignored.
type Dial map[string]float64

// UnmarshalJSON coerces string and boolean values to numbers and drops
// anything that cannot be read numerically, keeping the tuning surface
// tolerant of loosely typed callers.
func (d *Dial) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Dial, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case float64:
			out[k] = t
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				out[k] = f
			}
		case bool:
			if t {
				out[k] = 1
			}
		}
	}
	*d = out
	return nil
}

// WithDial returns an adjusted deep copy of the table. Gene-specific
// overrides apply first, then generic per-type overrides, then the global
// multipliers compound on whatever the overrides produced. An override only
// touches fields the entry already carries.
func (c Constants) WithDial(dial Dial) Constants {
	out := c.Clone()
	if len(dial) == 0 {
		return out
	}

	// gene number -> entry type -> field -> value
	genes := map[string]map[string]map[string]float64{"1": {}, "2": {}, "3": {}}
	set := func(gene, typ, field string, v float64) {
		g, ok := genes[gene]
		if !ok {
			return
		}
		if g[typ] == nil {
			g[typ] = map[string]float64{}
		}
		g[typ][field] = v
	}
	generic := map[string]map[string]float64{}
	setGeneric := func(typ, field string, v float64) {
		if generic[typ] == nil {
			generic[typ] = map[string]float64{}
		}
		generic[typ][field] = v
	}

	for name, v := range dial {
		switch {
		case strings.HasPrefix(name, "promoter") && strings.HasSuffix(name, "_strength"):
			set(trimKey(name, "promoter", "_strength"), "promoter", "strength", v)
		case strings.HasPrefix(name, "rbs") && strings.HasSuffix(name, "_efficiency"):
			set(trimKey(name, "rbs", "_efficiency"), "rbs", "efficiency", v)
		case strings.HasPrefix(name, "cds") && strings.HasSuffix(name, "_translation_rate"):
			set(trimKey(name, "cds", "_translation_rate"), "cds", "translation_rate", v)
		case strings.HasPrefix(name, "cds") && strings.HasSuffix(name, "_degradation_rate"):
			set(trimKey(name, "cds", "_degradation_rate"), "cds", "degradation_rate", v)
		case strings.HasPrefix(name, "terminator") && strings.HasSuffix(name, "_efficiency"):
			set(trimKey(name, "terminator", "_efficiency"), "terminator", "efficiency", v)
		case strings.HasPrefix(name, "protein") && strings.HasSuffix(name, "_initial_conc"):
			set(trimKey(name, "protein", "_initial_conc"), "cds", "init_conc", v)
		case name == "strength":
			setGeneric("promoter", "strength", v)
		case name == "efficiency":
			setGeneric("rbs", "efficiency", v)
		case name == "translation_rate":
			setGeneric("cds", "translation_rate", v)
		case name == "degradation_rate":
			setGeneric("cds", "degradation_rate", v)
		case name == "binding_affinity":
			setGeneric("repressor", "Kr", 1.0/max(0.01, v))
		case name == "cooperativity":
			setGeneric("repressor", "n", v)
		}
	}

	for label, e := range out {
		parts := strings.Split(label, "_")
		if len(parts) < 2 || !allDigits(parts[1]) {
			continue
		}
		for field, v := range genes[parts[1]][e.Type] {
			if e.Has(field) {
				e.Params[field] = v
			}
		}
	}

	for _, e := range out {
		for field, v := range generic[e.Type] {
			if e.Has(field) {
				e.Params[field] = v
			}
		}
	}

	if m, ok := dial["global_transcription_rate"]; ok {
		for _, e := range out {
			if e.Type == "promoter" && e.Has("strength") {
				e.Params["strength"] *= m
			}
		}
	}
	if m, ok := dial["global_translation_rate"]; ok {
		for _, e := range out {
			if e.Type == "cds" && e.Has("translation_rate") {
				e.Params["translation_rate"] *= m
			}
			if e.Type == "rbs" && e.Has("efficiency") {
				e.Params["efficiency"] *= m
			}
		}
	}
	if m, ok := dial["global_degradation_rate"]; ok {
		for _, e := range out {
			if e.Type == "cds" && e.Has("degradation_rate") {
				e.Params["degradation_rate"] *= m
			}
		}
	}

	return out
}

func trimKey(name, prefix, suffix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
