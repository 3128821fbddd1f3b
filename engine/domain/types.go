// Package domain defines the core vocabulary of the GeneBoard engine:
// component roles, strength tiers, the label classifier, the kinetic
// constants table, and the record types the assembly pipeline exchanges.
// It has no dependencies and acts as the shared contract between stages.
package domain

import "strings"

// Role is the structural role of a placed component, inferred from its label.
type Role string

const (
	RolePromoter   Role = "promoter"
	RoleRBS        Role = "rbs"
	RoleCDS        Role = "cds"
	RoleTerminator Role = "terminator"
	RoleActivator  Role = "activator"
	RoleRepressor  Role = "repressor"
	RoleInducer    Role = "inducer"
	RoleInhibitor  Role = "inhibitor"
	RoleMisc       Role = "misc"
)

// IsRegulator reports whether r is one of the four regulator kinds.
func (r Role) IsRegulator() bool {
	switch r {
	case RoleActivator, RoleRepressor, RoleInducer, RoleInhibitor:
		return true
	}
	return false
}

// Position marks which half of a regulatory pair a regulator component is.
type Position string

const (
	PositionNone  Position = ""
	PositionStart Position = "start"
	PositionEnd   Position = "end"
)

// Strength is the qualitative strength tier carried on a placement line.
type Strength string

const (
	StrengthNorm   Strength = "norm"
	StrengthStrong Strength = "strong"
	StrengthWeak   Strength = "weak"
)

// ParseStrength maps a raw strength token to a tier. Unknown tokens fall
// back to norm, matching how placement lines without a tag behave.
func ParseStrength(tok string) Strength {
	switch Strength(strings.ToLower(strings.TrimSpace(tok))) {
	case StrengthStrong:
		return StrengthStrong
	case StrengthWeak:
		return StrengthWeak
	}
	return StrengthNorm
}

// Component is one physical element on the board. Components are created by
// the parser in board order; the assembler fills Params and CircuitName.
type Component struct {
	ID            string             `json:"id"`
	Label         string             `json:"label"`
	Role          Role               `json:"role"`
	Bank          string             `json:"bank"`
	Channel       int                `json:"channel"`
	GlobalIndex   int                `json:"global_index"`
	Strength      Strength           `json:"strength"`
	Position      Position           `json:"position,omitempty"`
	RegulationKey string             `json:"regulation_key,omitempty"`
	IsFloating    bool               `json:"is_floating,omitempty"`
	Params        map[string]float64 `json:"parameters,omitempty"`
	CircuitName   string             `json:"circuit,omitempty"`
}

// Param returns a kinetic parameter with a default for absent keys.
func (c *Component) Param(key string, def float64) float64 {
	if v, ok := c.Params[key]; ok {
		return v
	}
	return def
}

// Flagged cites a component in a structural diagnostic.
type Flagged struct {
	ID     string             `json:"id"`
	Label  string             `json:"label"`
	Role   Role               `json:"role"`
	Params map[string]float64 `json:"parameters,omitempty"`
	Reason string             `json:"reason"`
}

// Flag builds a diagnostic citation for c.
func Flag(c *Component, reason string) Flagged {
	return Flagged{ID: c.ID, Label: c.Label, Role: c.Role, Params: c.Params, Reason: reason}
}

// Fallback records the low-value substitutes used for one CDS whose block is
// missing an upstream part. Expression stays barely functional instead of
// the circuit being rejected.
type Fallback struct {
	MissingPromoter   bool    `json:"missing_promoter,omitempty"`
	PromStrength      float64 `json:"prom_strength,omitempty"`
	MissingRBS        bool    `json:"missing_rbs,omitempty"`
	RBSEfficiency     float64 `json:"rbs_efficiency,omitempty"`
	MissingTerminator bool    `json:"missing_terminator,omitempty"`
	DegradationRate   float64 `json:"degradation_rate,omitempty"`
}

// Zero reports whether no substitution applies.
func (f Fallback) Zero() bool {
	return !f.MissingPromoter && !f.MissingRBS && !f.MissingTerminator
}

// Circuit is a maximal run of components between breaks containing at least
// one CDS. Component order is board order and defines upstream/downstream.
type Circuit struct {
	Name       string              `json:"name"`
	Components []*Component        `json:"components"`
	Counts     map[Role]int        `json:"component_counts"`
	Extras     []Flagged           `json:"extras"`
	Misplaced  []Flagged           `json:"misplaced"`
	Fallbacks  map[string]Fallback `json:"fallback_by_cds,omitempty"`
	CDSToRBS   map[string]string   `json:"cds_to_rbs,omitempty"`
}

// CDSLabels returns the labels of the circuit's coding sequences in order.
func (c *Circuit) CDSLabels() []string {
	var out []string
	for _, comp := range c.Components {
		if comp.Role == RoleCDS {
			out = append(out, comp.Label)
		}
	}
	return out
}

// RegKind identifies the mechanism of one regulatory edge.
type RegKind string

const (
	RegTranscriptionalActivation RegKind = "transcriptional_activation"
	RegTranscriptionalRepression RegKind = "transcriptional_repression"
	RegInducedActivation         RegKind = "induced_activation"
	RegEnvironmentalRepression   RegKind = "environmental_repression"
	RegSelfActivation            RegKind = "self_activation"
	RegSelfRepression            RegKind = "self_repression"
	RegConstitutive              RegKind = "constitutive"
)

// IsActivation reports whether the kind gates production with an activating
// Hill term.
func (k RegKind) IsActivation() bool {
	switch k {
	case RegTranscriptionalActivation, RegSelfActivation, RegInducedActivation:
		return true
	}
	return false
}

// IsRepression reports whether the kind gates production with a repressive
// Hill term.
func (k RegKind) IsRepression() bool {
	switch k {
	case RegTranscriptionalRepression, RegSelfRepression, RegEnvironmentalRepression:
		return true
	}
	return false
}

// IsSelf reports whether the edge closes on its own circuit.
func (k RegKind) IsSelf() bool {
	return k == RegSelfActivation || k == RegSelfRepression
}

// RegParams carries the kinetic constants attached to a regulation. Zero
// values mean "unset"; evaluation applies the standard defaults then.
type RegParams struct {
	Role          Role    `json:"role,omitempty"`
	IsFloating    bool    `json:"is_floating,omitempty"`
	Concentration float64 `json:"concentration,omitempty"`
	Ka            float64 `json:"Ka,omitempty"`
	Kr            float64 `json:"Kr,omitempty"`
	N             float64 `json:"n,omitempty"`
	BasalRate     float64 `json:"basal_rate,omitempty"`
}

// Regulation is one directed regulatory edge inferred from the board.
// Source is the regulating CDS label, the regulation key for floating
// regulators, and empty for constitutive records.
type Regulation struct {
	Kind         RegKind   `json:"type"`
	Source       string    `json:"source,omitempty"`
	Target       string    `json:"target"`
	Params       RegParams `json:"parameters"`
	AffectedCDSs []string  `json:"affected_cdss"`
}

// RegulatorIssue reports a regulator whose adjacency rules failed. It never
// blocks simulation; the unresolved record is simply omitted.
type RegulatorIssue struct {
	Label string `json:"label"`
	Issue string `json:"issue"`
	Hint  string `json:"hint"`
}

// UnpairedRegulator reports a start/end count mismatch for one regulation key.
type UnpairedRegulator struct {
	Key    string `json:"label"`
	Role   Role   `json:"type"`
	Starts int    `json:"starts"`
	Ends   int    `json:"ends"`
	Issue  string `json:"issue"`
	Hint   string `json:"hint"`
}

// ExtraComponents groups the structural diagnostics for a whole board.
type ExtraComponents struct {
	Within    []Flagged `json:"within_valid_circuits"`
	Outside   []Flagged `json:"outside_of_valid_circuits"`
	Misplaced []Flagged `json:"misplaced_components"`
}
