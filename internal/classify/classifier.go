// Package classify assigns general-ledger accounts to responsible
// departments using historical knowledge, reviewer hints, and an ordered
// rule table. Classification is a pure function of its inputs and the
// static reference tables; it has no side effects.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledgerguard/ledgerguard/internal/model"
)

// Scoring constants for the rule tier.
const (
	patternWeight   = 0.20
	keywordWeight   = 0.18
	comboBonus      = 0.15
	ruleBaseConf    = 0.62
	ruleConfCeiling = 0.25
	hintConfidence  = 0.88
	fallbackConf    = 0.35
	minConfidence   = 0.2
	maxConfidence   = 0.99
)

// Result is the outcome of classifying a single account.
type Result struct {
	DepartmentID    string
	DepartmentName  string
	LogicID         string
	Notes           string
	Source          model.ClassificationSource
	Evidence        []model.Evidence
	MatchedKeywords []string
	MatchedPatterns []string
	Confidence      float64
}

type compiledRule struct {
	rule     Rule
	patterns []*regexp.Regexp
}

// Classifier evaluates the fixed precedence tiers: historical lookup,
// manual hint, rule scoring, fallback.
type Classifier struct {
	departments map[string]Department
	byName      map[string]Department
	synonyms    map[string]string
	historical  map[string]HistoricalEntry
	rules       []compiledRule
}

// NewClassifier builds a classifier over the default reference tables.
func NewClassifier() (*Classifier, error) {
	return NewClassifierWithTables(DefaultDepartments(), DefaultSynonyms(), DefaultHistorical(), DefaultRules())
}

// NewClassifierWithTables builds a classifier over explicit tables.
func NewClassifierWithTables(departments []Department, synonyms map[string]string, historical map[string]HistoricalEntry, rules []Rule) (*Classifier, error) {
	c := &Classifier{
		departments: make(map[string]Department, len(departments)),
		byName:      make(map[string]Department, len(departments)),
		synonyms:    make(map[string]string, len(synonyms)),
		historical:  historical,
	}
	for _, d := range departments {
		c.departments[d.ID] = d
		c.byName[strings.ToLower(d.Name)] = d
	}
	for k, v := range synonyms {
		c.synonyms[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, r := range rules {
		cr := compiledRule{rule: r}
		for _, p := range r.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("failed to compile pattern %q in rule %s: %w", p, r.Name, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// Classify assigns a department to one account. Precedence is evaluated in
// order and the first tier that resolves wins.
func (c *Classifier) Classify(accountNumber, accountName, departmentHint string) Result {
	number := strings.TrimSpace(accountNumber)
	name := strings.TrimSpace(accountName)

	if res, ok := c.classifyHistorical(number); ok {
		return res
	}
	if res, ok := c.classifyHint(departmentHint); ok {
		return res
	}
	if res, ok := c.classifyRules(number, name); ok {
		return res
	}
	return c.fallback()
}

func (c *Classifier) classifyHistorical(number string) (Result, bool) {
	entry, ok := c.historical[number]
	if !ok {
		return Result{}, false
	}
	confidence := entry.Confidence
	if confidence == 0 {
		confidence = DefaultHistoricalConfidence
	}
	dept := c.departments[entry.DepartmentID]
	return Result{
		DepartmentID:   dept.ID,
		DepartmentName: dept.Name,
		LogicID:        dept.LogicID,
		Source:         model.SourceHistorical,
		Confidence:     clamp(confidence),
		Evidence: []model.Evidence{{
			Kind:        "historical",
			Description: fmt.Sprintf("account %s previously assigned to %s", number, dept.Name),
			Weight:      1.0,
			Confidence:  confidence,
		}},
	}, true
}

func (c *Classifier) classifyHint(hint string) (Result, bool) {
	key := strings.ToLower(strings.TrimSpace(hint))
	if key == "" {
		return Result{}, false
	}

	var dept Department
	var ok bool
	if id, found := c.synonyms[key]; found {
		dept, ok = c.departments[id]
	} else {
		dept, ok = c.byName[key]
	}
	if !ok || dept.ID == UnassignedID {
		return Result{}, false
	}

	return Result{
		DepartmentID:   dept.ID,
		DepartmentName: dept.Name,
		LogicID:        dept.LogicID,
		Source:         model.SourceManual,
		Confidence:     hintConfidence,
		Evidence: []model.Evidence{{
			Kind:        "provided-hint",
			Description: fmt.Sprintf("reviewer hint %q resolved to %s", hint, dept.Name),
			Weight:      1.0,
			Confidence:  hintConfidence,
		}},
	}, true
}

func (c *Classifier) classifyRules(number, name string) (Result, bool) {
	lowerName := strings.ToLower(name)

	var best *compiledRule
	var bestScore float64
	var bestPatterns, bestKeywords []string

	for i := range c.rules {
		cr := &c.rules[i]
		var patterns, keywords []string

		for j, re := range cr.patterns {
			if re.MatchString(number) {
				patterns = append(patterns, cr.rule.Patterns[j])
			}
		}
		for _, kw := range cr.rule.Keywords {
			if strings.Contains(lowerName, strings.ToLower(kw)) {
				keywords = append(keywords, kw)
			}
		}
		if len(patterns) == 0 && len(keywords) == 0 {
			continue
		}

		score := cr.rule.BaseWeight +
			patternWeight*float64(len(patterns)) +
			keywordWeight*float64(len(keywords))
		if len(patterns) > 0 && len(keywords) > 0 {
			score += comboBonus
		}

		// Strict comparison: earlier rules win ties.
		if best == nil || score > bestScore {
			best = cr
			bestScore = score
			bestPatterns = patterns
			bestKeywords = keywords
		}
	}

	if best == nil {
		return Result{}, false
	}

	dept := c.departments[best.rule.DepartmentID]
	confidence := clamp(ruleBaseConf + minFloat(ruleConfCeiling, bestScore/4))

	evidence := make([]model.Evidence, 0, len(bestPatterns)+len(bestKeywords))
	for _, p := range bestPatterns {
		evidence = append(evidence, model.Evidence{
			Kind:        "pattern",
			Description: fmt.Sprintf("rule %q pattern %s matched account number %s", best.rule.Name, p, number),
			Weight:      patternWeight,
			Confidence:  confidence,
		})
	}
	for _, kw := range bestKeywords {
		evidence = append(evidence, model.Evidence{
			Kind:        "keyword",
			Description: fmt.Sprintf("rule %q keyword %q matched account name", best.rule.Name, kw),
			Weight:      keywordWeight,
			Confidence:  confidence,
		})
	}

	return Result{
		DepartmentID:    dept.ID,
		DepartmentName:  dept.Name,
		LogicID:         dept.LogicID,
		Source:          model.SourceRule,
		Confidence:      confidence,
		Evidence:        evidence,
		MatchedPatterns: bestPatterns,
		MatchedKeywords: bestKeywords,
		Notes:           fmt.Sprintf("matched rule %q (score %.2f)", best.rule.Name, bestScore),
	}, true
}

func (c *Classifier) fallback() Result {
	dept := c.departments[UnassignedID]
	return Result{
		DepartmentID:   dept.ID,
		DepartmentName: dept.Name,
		LogicID:        dept.LogicID,
		Source:         model.SourceFallback,
		Confidence:     fallbackConf,
		Evidence: []model.Evidence{{
			Kind:        "fallback",
			Description: "no historical, hint, or rule signal matched",
			Weight:      0,
			Confidence:  fallbackConf,
		}},
	}
}

func clamp(v float64) float64 {
	if v < minConfidence {
		return minConfidence
	}
	if v > maxConfidence {
		return maxConfidence
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
