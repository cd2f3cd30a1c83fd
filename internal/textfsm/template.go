// Package textfsm implements a declarative, line-oriented text parsing
// engine. A template declares typed values and named states of match rules;
// the engine turns raw command output into structured records.
package textfsm

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Value is one declared capture slot of a template.
type Value struct {
	Name     string
	Regex    string // inner pattern, without surrounding parens
	Required bool
	List     bool
	Filldown bool
}

// Rule pairs a compiled line pattern with its actions.
type Rule struct {
	match    *regexp.Regexp
	lineOp   string // "Next" (default) or "Continue"
	recordOp string // "", "Record", "NoRecord", "Clear", "Clearall", "Error"
	newState string
	errMsg   string
}

// Template is a parsed template: ordered value definitions plus named states.
type Template struct {
	Values []*Value
	States map[string][]*Rule

	valuesByName map[string]*Value
}

var (
	stateNameRe   = regexp.MustCompile(`^[A-Za-z]\w*$`)
	placeholderRe = regexp.MustCompile(`\$\$|\$\{(\w+)\}|\$(\w+)`)
)

// Parse reads a template document.
func Parse(r io.Reader) (*Template, error) {
	t := &Template{
		States:       make(map[string][]*Rule),
		valuesByName: make(map[string]*Value),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	state := "" // current state block, empty while reading value definitions
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Value "):
			if state != "" {
				return nil, errors.Errorf("line %d: value definition after state block", lineNum)
			}
			v, err := parseValue(trimmed)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNum)
			}
			if _, dup := t.valuesByName[v.Name]; dup {
				return nil, errors.Errorf("line %d: duplicate value %q", lineNum, v.Name)
			}
			t.Values = append(t.Values, v)
			t.valuesByName[v.Name] = v

		case strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t"):
			if state == "" {
				return nil, errors.Errorf("line %d: rule outside of a state block", lineNum)
			}
			rule, err := t.parseRule(trimmed)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNum)
			}
			t.States[state] = append(t.States[state], rule)

		default:
			if !stateNameRe.MatchString(trimmed) {
				return nil, errors.Errorf("line %d: invalid state name %q", lineNum, trimmed)
			}
			if _, dup := t.States[trimmed]; dup {
				return nil, errors.Errorf("line %d: duplicate state %q", lineNum, trimmed)
			}
			state = trimmed
			t.States[state] = []*Rule{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read template")
	}

	if len(t.Values) == 0 {
		return nil, errors.New("template defines no values")
	}
	if _, ok := t.States["Start"]; !ok {
		return nil, errors.New("template defines no Start state")
	}
	if err := t.validateTransitions(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseString parses a template held in a string.
func ParseString(s string) (*Template, error) {
	return Parse(strings.NewReader(s))
}

func parseValue(line string) (*Value, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 3 {
		return nil, errors.Errorf("malformed value definition %q", line)
	}
	// tokens[0] is the "Value" keyword
	v := &Value{}
	rest := tokens[1:]
	if opts, ok := parseValueOptions(rest[0]); ok && len(rest) >= 3 {
		for _, opt := range opts {
			switch opt {
			case "Required":
				v.Required = true
			case "List":
				v.List = true
			case "Filldown":
				v.Filldown = true
			}
		}
		rest = rest[1:]
	}
	if len(rest) < 2 {
		return nil, errors.Errorf("malformed value definition %q", line)
	}
	v.Name = rest[0]
	raw := strings.Join(rest[1:], " ")
	if !strings.HasPrefix(raw, "(") || !strings.HasSuffix(raw, ")") {
		return nil, errors.Errorf("value %s: pattern must be parenthesized", v.Name)
	}
	v.Regex = raw[1 : len(raw)-1]
	if _, err := regexp.Compile(v.Regex); err != nil {
		return nil, errors.Wrapf(err, "value %s", v.Name)
	}
	return v, nil
}

func parseValueOptions(token string) ([]string, bool) {
	opts := strings.Split(token, ",")
	for _, opt := range opts {
		switch opt {
		case "Required", "List", "Filldown":
		default:
			return nil, false
		}
	}
	return opts, true
}

func (t *Template) parseRule(line string) (*Rule, error) {
	if !strings.HasPrefix(line, "^") {
		return nil, errors.Errorf("rule must start with ^: %q", line)
	}

	pattern := line
	action := ""
	if idx := strings.Index(line, " -> "); idx >= 0 {
		pattern = strings.TrimSpace(line[:idx])
		action = strings.TrimSpace(line[idx+4:])
	}

	expanded, err := t.expandPlaceholders(pattern)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(expanded)
	if err != nil {
		return nil, errors.Wrapf(err, "rule %q", pattern)
	}

	rule := &Rule{match: re, lineOp: "Next"}
	if err := rule.parseAction(action); err != nil {
		return nil, err
	}
	if rule.lineOp == "Continue" && rule.newState != "" {
		return nil, errors.Errorf("rule %q: Continue cannot change state", pattern)
	}
	return rule, nil
}

// expandPlaceholders rewrites ${NAME} and $NAME references into named capture
// groups, and $$ into a bare end-of-line anchor.
func (t *Template) expandPlaceholders(pattern string) (string, error) {
	var expandErr error
	out := placeholderRe.ReplaceAllStringFunc(pattern, func(m string) string {
		if m == "$$" {
			return "$"
		}
		name := strings.Trim(m[1:], "{}")
		v, ok := t.valuesByName[name]
		if !ok {
			expandErr = errors.Errorf("rule %q references undefined value %s", pattern, name)
			return m
		}
		return "(?P<" + v.Name + ">" + v.Regex + ")"
	})
	return out, expandErr
}

func (r *Rule) parseAction(action string) error {
	if action == "" {
		return nil
	}
	// An Error action may carry a quoted message.
	if strings.HasPrefix(action, "Error") {
		r.recordOp = "Error"
		r.errMsg = strings.Trim(strings.TrimSpace(strings.TrimPrefix(action, "Error")), `"`)
		return nil
	}

	tokens := strings.Fields(action)
	ops := strings.Split(tokens[0], ".")
	opsConsumed := true
	for _, op := range ops {
		switch op {
		case "Next", "Continue":
			r.lineOp = op
		case "Record", "NoRecord", "Clear", "Clearall":
			r.recordOp = op
		default:
			opsConsumed = false
		}
	}
	if !opsConsumed {
		// First token is a state name, not an operation list.
		if len(tokens) != 1 {
			return errors.Errorf("malformed action %q", action)
		}
		r.newState = tokens[0]
		return nil
	}
	if len(tokens) > 2 {
		return errors.Errorf("malformed action %q", action)
	}
	if len(tokens) == 2 {
		r.newState = tokens[1]
	}
	return nil
}

func (t *Template) validateTransitions() error {
	for name, rules := range t.States {
		for _, rule := range rules {
			if rule.newState == "" || rule.newState == "End" || rule.newState == "EOF" {
				continue
			}
			if _, ok := t.States[rule.newState]; !ok {
				return errors.Errorf("state %s transitions to undefined state %s", name, rule.newState)
			}
		}
	}
	return nil
}
