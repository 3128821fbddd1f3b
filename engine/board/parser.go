// Package board parses the linear, position-encoded description of a
// physical circuit board into an ordered component stream. The stream's
// order is the authoritative board order every later stage relies on for
// nearest-previous lookups.
package board

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/GeneBoardAI/geneboard-mvp/engine/domain"
)

// Placement lines look like:
//
//	MUX A, Channel 3:  ['promoter_1'] strength=norm
//
// The MUX prefix and the strength tag are both optional.
var (
	labelRe    = regexp.MustCompile(`\['([^']+)'\]`)
	strengthRe = regexp.MustCompile(`strength=(\w+)`)
	muxRe      = regexp.MustCompile(`MUX\s+([A-Z]),\s+Channel\s+(\d+):`)
)

// RegistryEntry collects the start and end markers seen for one regulation
// key, in document order.
type RegistryEntry struct {
	Role       domain.Role
	IsFloating bool
	Starts     []*domain.Component
	Ends       []*domain.Component
}

// Stream is a parsed board: components in document order interleaved with
// nil break markers, plus the regulator registry accumulated while parsing.
type Stream struct {
	Items    []*domain.Component // nil entries are circuit breaks
	Registry map[string]*RegistryEntry
	Keys     []string // registry keys in first-seen order

	pos    map[*domain.Component]int
	prevNR []int // per item: index of nearest preceding non-regulator item
}

// Parse converts raw placement lines into the ordered component stream.
// Blank or unrecognised lines become circuit breaks. A promoter arriving
// after a CDS inside an open run forces an implicit break first, so a new
// transcriptional unit always starts at its own promoter even without a
// blank separator line.
func Parse(lines []string) *Stream {
	s := &Stream{
		Registry: make(map[string]*RegistryEntry),
		pos:      make(map[*domain.Component]int),
	}

	inCircuit := false
	hasCDS := false
	lastNR := -1

	breakItem := func() {
		s.Items = append(s.Items, nil)
		s.prevNR = append(s.prevNR, lastNR)
		inCircuit = false
		hasCDS = false
	}
	appendItem := func(c *domain.Component) {
		s.pos[c] = len(s.Items)
		s.Items = append(s.Items, c)
		s.prevNR = append(s.prevNR, lastNR)
		if !c.Role.IsRegulator() {
			lastNR = len(s.Items) - 1
		}
	}

	for _, raw := range lines {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			breakItem()
			continue
		}
		m := labelRe.FindStringSubmatch(raw)
		if m == nil {
			breakItem()
			continue
		}
		label := strings.TrimSpace(m[1])

		strength := domain.StrengthNorm
		if sm := strengthRe.FindStringSubmatch(raw); sm != nil {
			strength = domain.ParseStrength(sm[1])
		}

		var bank byte
		var channel int
		if mm := muxRe.FindStringSubmatch(raw); mm != nil {
			bank = mm[1][0]
			channel, _ = strconv.Atoi(mm[2])
		} else {
			// Sequential fallback for the simple format: the bank letter
			// advances every 16 components.
			n := len(s.pos)
			bank = byte('A' + n/16)
			channel = n % 16
		}

		comp := newComponent(label, bank, channel, strength)

		if inCircuit && hasCDS && comp.Role == domain.RolePromoter {
			breakItem()
		}

		appendItem(comp)
		inCircuit = true
		if comp.Role == domain.RoleCDS {
			hasCDS = true
		}

		if comp.Role.IsRegulator() && comp.Position != domain.PositionNone {
			rec := s.Registry[comp.RegulationKey]
			if rec == nil {
				rec = &RegistryEntry{}
				s.Registry[comp.RegulationKey] = rec
				s.Keys = append(s.Keys, comp.RegulationKey)
			}
			rec.Role = comp.Role
			// Floating-ness is a property of the pair: a non-floating end
			// marker must not clear what its floating start established.
			rec.IsFloating = rec.IsFloating || comp.IsFloating
			if comp.Position == domain.PositionStart {
				rec.Starts = append(rec.Starts, comp)
			} else {
				rec.Ends = append(rec.Ends, comp)
			}
		}
	}

	return s
}

func newComponent(label string, bank byte, channel int, strength domain.Strength) *domain.Component {
	cls := domain.Classify(label)
	return &domain.Component{
		ID:            fmt.Sprintf("%s_%c%d", cls.Role, bank, channel),
		Label:         label,
		Role:          cls.Role,
		Bank:          string(bank),
		Channel:       channel,
		GlobalIndex:   int(bank-'A')*16 + channel,
		Strength:      strength,
		Position:      cls.Position,
		RegulationKey: cls.RegulationKey,
		IsFloating:    cls.IsFloating,
	}
}

// Blocks splits the stream into maximal runs of components between breaks.
func (s *Stream) Blocks() [][]*domain.Component {
	var blocks [][]*domain.Component
	var cur []*domain.Component
	for _, it := range s.Items {
		if it == nil {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, it)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

// Components returns the stream's components without break markers.
func (s *Stream) Components() []*domain.Component {
	out := make([]*domain.Component, 0, len(s.pos))
	for _, it := range s.Items {
		if it != nil {
			out = append(out, it)
		}
	}
	return out
}

// PrevNonRegulator returns the nearest component preceding c in board order
// that is not a regulator and whose global index is strictly smaller than
// c's, or nil when none exists. Lookups walk a chain built during the
// parse, so each hop lands on a non-regulator directly.
func (s *Stream) PrevNonRegulator(c *domain.Component) *domain.Component {
	i, ok := s.pos[c]
	if !ok {
		return nil
	}
	for j := s.prevNR[i]; j >= 0; j = s.prevNR[j] {
		if p := s.Items[j]; p != nil && p.GlobalIndex < c.GlobalIndex {
			return p
		}
	}
	return nil
}
