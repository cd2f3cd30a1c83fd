package textfsm

import (
	"strings"

	"github.com/pkg/errors"
)

// Record is one emitted parse result: value name to string or []string,
// depending on the value's cardinality.
type Record map[string]interface{}

// String returns a single-cardinality value, or "" if absent.
func (r Record) String(name string) string {
	if s, ok := r[name].(string); ok {
		return s
	}
	return ""
}

// List returns a list-cardinality value, or nil if absent.
func (r Record) List(name string) []string {
	if l, ok := r[name].([]string); ok {
		return l
	}
	return nil
}

type slot struct {
	def   *Value
	value string
	list  []string
	set   bool
}

func (s *slot) assign(v string) {
	if s.def.List {
		s.list = append(s.list, v)
	} else {
		s.value = v
	}
	s.set = true
}

func (s *slot) clear() {
	s.value = ""
	s.list = nil
	s.set = false
}

// Parser evaluates a template against raw text. A parser may be reused
// across inputs; Reset restores the initial state.
type Parser struct {
	tmpl    *Template
	state   string
	slots   map[string]*slot
	records []Record
	halted  bool
}

// NewParser creates a parser for the given template.
func NewParser(t *Template) *Parser {
	p := &Parser{tmpl: t}
	p.Reset()
	return p
}

// Reset clears all accumulated state, including Filldown values.
func (p *Parser) Reset() {
	p.state = "Start"
	p.records = nil
	p.halted = false
	p.slots = make(map[string]*slot, len(p.tmpl.Values))
	for _, v := range p.tmpl.Values {
		p.slots[v.Name] = &slot{def: v}
	}
}

// ParseString runs the template over raw multi-line text and returns the
// emitted records. The parser is reset first, so each call is independent.
func (p *Parser) ParseString(text string) ([]Record, error) {
	p.Reset()
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		if p.halted {
			break
		}
		if err := p.consumeLine(line); err != nil {
			return nil, err
		}
	}
	p.finish()
	return p.records, nil
}

// consumeLine scans the active state's rules in declared order. The first
// matching rule is applied; scanning continues past it only on Continue.
func (p *Parser) consumeLine(line string) error {
	for _, rule := range p.tmpl.States[p.state] {
		m := rule.match.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		names := rule.match.SubexpNames()
		for i, name := range names {
			if name == "" || i >= len(m) || m[i] == "" {
				continue
			}
			p.slots[name].assign(m[i])
		}

		switch rule.recordOp {
		case "Record":
			p.tryRecord()
		case "Clear":
			p.clearValues(false)
		case "Clearall":
			p.clearValues(true)
		case "Error":
			if rule.errMsg != "" {
				return errors.Errorf("template error %q on line %q", rule.errMsg, line)
			}
			return errors.Errorf("template error on line %q", line)
		}

		switch rule.newState {
		case "":
		case "End":
			p.halted = true
			return nil
		default:
			p.state = rule.newState
		}

		if rule.lineOp != "Continue" {
			return nil
		}
	}
	// No rule matched: the line is discarded, state unchanged.
	return nil
}

// finish applies end-of-input semantics: one implicit record attempt unless
// the template defines an explicit EOF state or parsing was halted by End.
func (p *Parser) finish() {
	if p.halted {
		return
	}
	if _, suppressed := p.tmpl.States["EOF"]; suppressed {
		return
	}
	p.tryRecord()
}

// tryRecord emits the accumulated row if it is non-empty and every Required
// value is populated; otherwise the emission is silently dropped and
// accumulation continues. Emission clears everything not marked Filldown.
func (p *Parser) tryRecord() {
	populated := false
	for _, s := range p.slots {
		if s.set {
			populated = true
			break
		}
	}
	if !populated {
		return
	}
	for _, v := range p.tmpl.Values {
		if v.Required && !p.slots[v.Name].set {
			return
		}
	}

	rec := make(Record, len(p.tmpl.Values))
	for _, v := range p.tmpl.Values {
		s := p.slots[v.Name]
		if v.List {
			out := make([]string, len(s.list))
			copy(out, s.list)
			rec[v.Name] = out
		} else {
			rec[v.Name] = s.value
		}
	}
	p.records = append(p.records, rec)
	p.clearValues(false)
}

func (p *Parser) clearValues(includeFilldown bool) {
	for _, s := range p.slots {
		if s.def.Filldown && !includeFilldown {
			continue
		}
		s.clear()
	}
}
