package internal

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/PaesslerAG/jsonpath"
	"gopkg.in/yaml.v3"
)

// EmitList is the topics a rule publishes to. YAML accepts a scalar or a
// sequence.
type EmitList []string

func (e *EmitList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*e = EmitList{single}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*e = EmitList(list)
		return nil
	default:
		return fmt.Errorf("emit must be a string or a list of strings")
	}
}

// Rule routes matching events to topics, optionally restricted to a
// subset of the configured publish drivers.
type Rule struct {
	When    string   `yaml:"when"`
	Emit    EmitList `yaml:"emit"`
	Drivers []string `yaml:"drivers"`
}

// Match is one topic a rule resolved for an event.
type Match struct {
	Topic   string
	Drivers []string
}

type compiledRule struct {
	emit    EmitList
	drivers []string
	expr    *govaluate.EvaluableExpression
	aliases map[string]string
}

// RuleEngine evaluates dispatch rules against events. Expressions address
// event fields with dotted paths (flattened payload) or $-prefixed
// JSONPath; in strict mode a reference to an absent field fails the rule
// instead of silently comparing against nil.
type RuleEngine struct {
	rules  []compiledRule
	strict bool
	logger *log.Logger
}

var ruleFunctions = map[string]govaluate.ExpressionFunction{
	"contains": func(args ...interface{}) (interface{}, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("contains expects 2 arguments, got %d", len(args))
		}
		// govaluate spreads an array parameter into variadic arguments;
		// the needle is always the last one.
		if len(args) > 2 {
			needle := args[len(args)-1]
			for _, item := range args[:len(args)-1] {
				if reflect.DeepEqual(item, needle) {
					return true, nil
				}
			}
			return false, nil
		}
		switch haystack := args[0].(type) {
		case string:
			needle, ok := args[1].(string)
			if !ok {
				return nil, fmt.Errorf("contains on a string expects a string needle")
			}
			return strings.Contains(haystack, needle), nil
		case []interface{}:
			for _, item := range haystack {
				if reflect.DeepEqual(item, args[1]) {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, nil
		}
	},
	"like": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("like expects 2 arguments, got %d", len(args))
		}
		value, ok := args[0].(string)
		if !ok {
			return false, nil
		}
		pattern, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("like expects a string pattern")
		}
		escaped := regexp.QuoteMeta(pattern)
		escaped = strings.ReplaceAll(escaped, "%", ".*")
		escaped = strings.ReplaceAll(escaped, "_", ".")
		matched, err := regexp.MatchString("^"+escaped+"$", value)
		if err != nil {
			return nil, err
		}
		return matched, nil
	},
}

// NewRuleEngine compiles the configured rules.
func NewRuleEngine(cfg RulesConfig) (*RuleEngine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	rules := make([]compiledRule, 0, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		rewritten, aliases := rewriteExpression(rule.When)
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(rewritten, ruleFunctions)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, compiledRule{
			emit:    rule.Emit,
			drivers: rule.Drivers,
			expr:    expr,
			aliases: aliases,
		})
	}
	return &RuleEngine{rules: rules, strict: cfg.Strict, logger: logger}, nil
}

// Evaluate returns the topic matches for an event.
func (r *RuleEngine) Evaluate(event Event) []Match {
	if len(r.rules) == 0 {
		return nil
	}

	data := event.Data
	object := event.RawObject
	if (data == nil || object == nil) && len(event.RawPayload) > 0 {
		var decoded interface{}
		if err := json.Unmarshal(event.RawPayload, &decoded); err != nil {
			r.logger.Printf("rule payload decode failed: %v", err)
			return nil
		}
		if object == nil {
			object = decoded
		}
		if data == nil {
			if m, ok := decoded.(map[string]interface{}); ok {
				data = Flatten(m)
			}
		}
	}

	var matches []Match
	for _, rule := range r.rules {
		params := ruleParams{
			data:    data,
			object:  object,
			aliases: rule.aliases,
			strict:  r.strict,
		}
		result, err := rule.expr.Eval(params)
		if err != nil {
			if r.strict {
				r.logger.Printf("rule eval failed: %v", err)
			}
			continue
		}
		if matched, ok := result.(bool); ok && matched {
			for _, topic := range rule.emit {
				matches = append(matches, Match{Topic: topic, Drivers: rule.drivers})
			}
		}
	}
	return matches
}

// ruleParams resolves expression identifiers: aliased dotted paths come
// from the flattened data or, for $-prefixed paths, from JSONPath over
// the raw object.
type ruleParams struct {
	data    map[string]interface{}
	object  interface{}
	aliases map[string]string
	strict  bool
}

func (p ruleParams) Get(name string) (interface{}, error) {
	path, ok := p.aliases[name]
	if !ok {
		path = name
	}
	if strings.HasPrefix(path, "$") {
		value, err := jsonpath.Get(path, p.object)
		if err != nil {
			if p.strict {
				return nil, err
			}
			return nil, nil
		}
		return value, nil
	}
	if value, ok := p.data[path]; ok {
		return value, nil
	}
	if p.strict {
		return nil, fmt.Errorf("unknown field %q", path)
	}
	return nil, nil
}

// rewriteExpression replaces identifiers govaluate cannot parse (dotted
// paths, array indexes, JSONPath) with generated aliases, returning the
// rewritten expression and the alias table. String literals pass through
// untouched.
func rewriteExpression(when string) (string, map[string]string) {
	var b strings.Builder
	aliases := map[string]string{}
	byPath := map[string]string{}

	runes := []rune(when)
	i := 0
	for i < len(runes) {
		ch := runes[i]
		if ch == '"' || ch == '\'' {
			quote := ch
			b.WriteRune(ch)
			i++
			for i < len(runes) {
				b.WriteRune(runes[i])
				if runes[i] == '\\' && i+1 < len(runes) {
					i++
					b.WriteRune(runes[i])
					i++
					continue
				}
				if runes[i] == quote {
					i++
					break
				}
				i++
			}
			continue
		}
		if isIdentStart(ch) {
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			token := string(runes[start:i])
			if !strings.ContainsAny(token, ".[$") {
				b.WriteString(token)
				continue
			}
			alias, ok := byPath[token]
			if !ok {
				alias = fmt.Sprintf("ruleField%d", len(byPath))
				byPath[token] = alias
				aliases[alias] = token
			}
			b.WriteString(alias)
			continue
		}
		b.WriteRune(ch)
		i++
	}
	return b.String(), aliases
}

func isIdentStart(ch rune) bool {
	return ch == '_' || ch == '$' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || ch == '.' || ch == '[' || ch == ']' ||
		(ch >= '0' && ch <= '9')
}
