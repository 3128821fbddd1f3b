package circuit

import (
	"testing"

	"github.com/GeneBoardAI/geneboard-mvp/engine/board"
	"github.com/GeneBoardAI/geneboard-mvp/engine/domain"
)

func parse(labels ...string) *board.Stream {
	lines := make([]string, len(labels))
	for i, l := range labels {
		if l != "" {
			lines[i] = "['" + l + "']"
		}
	}
	return board.Parse(lines)
}

func reasons(flags []domain.Flagged) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = f.Reason
	}
	return out
}

func TestAssembleSimpleCircuit(t *testing.T) {
	circs, outside := Assemble(parse("promoter_1", "rbs_1", "cds_1"), nil)

	if len(circs) != 1 {
		t.Fatalf("circuits = %d, want 1", len(circs))
	}
	if len(outside) != 0 {
		t.Errorf("outside = %v, want none", outside)
	}

	c := circs[0]
	if c.Name != "circuit_1" {
		t.Errorf("name = %q, want circuit_1", c.Name)
	}
	if len(c.Components) != 3 {
		t.Errorf("components = %d, want 3", len(c.Components))
	}
	want := map[domain.Role]int{domain.RolePromoter: 1, domain.RoleRBS: 1, domain.RoleCDS: 1}
	for role, n := range want {
		if c.Counts[role] != n {
			t.Errorf("count[%s] = %d, want %d", role, c.Counts[role], n)
		}
	}
	if len(c.Extras) != 0 || len(c.Misplaced) != 0 {
		t.Errorf("extras/misplaced = %v/%v, want none", c.Extras, c.Misplaced)
	}
	for _, comp := range c.Components {
		if comp.CircuitName != "circuit_1" {
			t.Errorf("component %s circuit = %q, want circuit_1", comp.Label, comp.CircuitName)
		}
	}
	if c.CDSToRBS["cds_1"] != "rbs_1" {
		t.Errorf("CDSToRBS = %v, want cds_1 -> rbs_1", c.CDSToRBS)
	}
}

func TestAssembleRoleDefaults(t *testing.T) {
	circs, _ := Assemble(parse("promoter_x", "rbs_x", "cds_x", "terminator_x"), nil)
	c := circs[0]

	tests := []struct {
		idx   int
		key   string
		want  float64
	}{
		{0, "strength", 1.0},
		{0, "binding_affinity", 0.1},
		{1, "efficiency", 1.0},
		{1, "translation_rate", 5.0},
		{2, "translation_rate", 5.0},
		{2, "degradation_rate", 0.1},
		{2, "init_conc", 0.01},
		{2, "max_expression", 100.0},
		{3, "efficiency", 0.99},
	}
	for _, tt := range tests {
		if got := c.Components[tt.idx].Params[tt.key]; got != tt.want {
			t.Errorf("component %d param %s = %v, want %v", tt.idx, tt.key, got, tt.want)
		}
	}
}

func TestAssembleConstantsOverrideDefaults(t *testing.T) {
	constants := domain.Constants{
		"promoter_1": {Type: "promoter", Params: map[string]float64{"strength": 5.0}},
	}
	circs, _ := Assemble(parse("promoter_1", "rbs_1", "cds_1"), constants)
	prom := circs[0].Components[0]
	if prom.Params["strength"] != 5.0 {
		t.Errorf("strength = %v, want 5.0 from table", prom.Params["strength"])
	}
	if prom.Params["binding_affinity"] != 0.1 {
		t.Errorf("binding_affinity = %v, want 0.1 default", prom.Params["binding_affinity"])
	}
}

func TestAssembleDiscardsBlocksWithoutCDS(t *testing.T) {
	circs, outside := Assemble(parse("promoter_1", "rbs_1", "", "promoter_2", "rbs_2", "cds_2"), nil)
	if len(circs) != 1 {
		t.Fatalf("circuits = %d, want 1", len(circs))
	}
	if circs[0].Name != "circuit_1" {
		t.Errorf("surviving circuit named %q, want circuit_1", circs[0].Name)
	}
	if len(outside) != 2 {
		t.Fatalf("outside = %d entries, want 2", len(outside))
	}
	if outside[0].Label != "promoter_1" || outside[1].Label != "rbs_1" {
		t.Errorf("outside labels = %s, %s", outside[0].Label, outside[1].Label)
	}
}

func TestAssembleExtraPromoter(t *testing.T) {
	circs, _ := Assemble(parse("promoter_1", "promoter_2", "rbs_1", "cds_1"), nil)
	c := circs[0]
	if len(c.Extras) != 1 {
		t.Fatalf("extras = %v, want exactly one", reasons(c.Extras))
	}
	if c.Extras[0].Label != "promoter_2" || c.Extras[0].Reason != "Extra promoter" {
		t.Errorf("extra = %s (%s), want promoter_2 (Extra promoter)", c.Extras[0].Label, c.Extras[0].Reason)
	}
}

func TestAssembleExtraTerminator(t *testing.T) {
	circs, _ := Assemble(parse("promoter_1", "rbs_1", "cds_1", "terminator_1", "terminator_2"), nil)
	c := circs[0]
	if len(c.Extras) != 1 || c.Extras[0].Reason != "Extra terminator" {
		t.Fatalf("extras = %v, want one Extra terminator", reasons(c.Extras))
	}
}

func TestAssembleMisplacements(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{
			"promoter after CDS stays only via extra promoter rule",
			// A second promoter after a CDS forces an implicit break, so the
			// in-block "Promoter after CDS" case needs the CDS flag first.
			[]string{"rbs_1", "cds_1", "terminator_1"},
			[]string{"CDS does not have a promoter and/or RBS before it"},
		},
		{
			"terminator before CDS",
			[]string{"promoter_1", "terminator_1", "rbs_1", "cds_1"},
			[]string{"Terminator before CDS"},
		},
		{
			"first RBS after CDS",
			[]string{"promoter_1", "cds_1", "rbs_1"},
			[]string{"CDS does not have a promoter and/or RBS before it", "First RBS after CDS"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			circs, _ := Assemble(parse(tt.labels...), nil)
			got := reasons(circs[0].Misplaced)
			if len(got) != len(tt.want) {
				t.Fatalf("misplaced = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("misplaced[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAssembleRBSSequencePatterns(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{
			"strict alternation is valid",
			[]string{"promoter_1", "rbs_1", "cds_1", "rbs_2", "cds_2"},
			nil,
		},
		{
			"shared RBS operon is valid",
			[]string{"promoter_1", "rbs_1", "cds_1", "cds_2", "cds_3"},
			nil,
		},
		{
			"multiple RBS before multiple CDS is invalid",
			[]string{"promoter_1", "rbs_1", "rbs_2", "cds_1", "cds_2"},
			[]string{"Invalid RBS sequence (multiple RBS before multiple CDS)"},
		},
		{
			"excess trailing RBS",
			[]string{"promoter_1", "rbs_1", "cds_1", "rbs_2"},
			[]string{"Extra RBS (more RBS than CDS)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			circs, _ := Assemble(parse(tt.labels...), nil)
			var got []string
			for _, f := range circs[0].Extras {
				if f.Role == domain.RoleRBS {
					got = append(got, f.Reason)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("rbs extras = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("rbs extras[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAssembleFallbacks(t *testing.T) {
	circs, _ := Assemble(parse("rbs_1", "cds_1"), nil)
	fb, ok := circs[0].Fallbacks["cds_1"]
	if !ok {
		t.Fatal("no fallback recorded for cds_1")
	}
	if !fb.MissingPromoter || fb.PromStrength != 0.01 {
		t.Errorf("promoter fallback = %+v, want missing with strength 0.01", fb)
	}
	if !fb.MissingTerminator || fb.DegradationRate != 0.01 {
		t.Errorf("terminator fallback = %+v, want missing with degradation 0.01", fb)
	}
	if fb.MissingRBS {
		t.Error("RBS fallback set though an RBS is present")
	}
}

func TestAssembleWellFormedHasNoFallbacks(t *testing.T) {
	circs, _ := Assemble(parse("promoter_1", "rbs_1", "cds_1", "terminator_1"), nil)
	if len(circs[0].Fallbacks) != 0 {
		t.Errorf("fallbacks = %v, want none", circs[0].Fallbacks)
	}
}

func TestAssembleIdempotent(t *testing.T) {
	s := parse("promoter_1", "rbs_1", "cds_1", "promoter_2", "rbs_2", "cds_2")

	first, _ := Assemble(s, nil)
	second, _ := Assemble(s, nil)

	if len(first) != len(second) {
		t.Fatalf("circuit counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Errorf("circuit %d renamed: %q vs %q", i, first[i].Name, second[i].Name)
		}
		if len(first[i].Components) != len(second[i].Components) {
			t.Errorf("circuit %d component count changed", i)
		}
	}
}
