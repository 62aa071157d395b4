package classify

import (
	"log/slog"
	"strings"
)

// Classifier assigns categories from a fixed rule set. It is deterministic
// and total: every (path, content) pair yields a category, defaulting to
// Misc when nothing matches.
type Classifier struct {
	rules  *RuleSet
	logger *slog.Logger
}

// NewClassifier creates a classifier over the given rule set.
func NewClassifier(rules *RuleSet, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{rules: rules, logger: logger}
}

// Rules returns the classifier's rule set.
func (c *Classifier) Rules() *RuleSet {
	return c.rules
}

// Classify resolves a category for the path and its extracted content.
//
// Phase 1: extension hard rules resolve unconditionally and skip the
// keyword scan entirely. Phase 2: if content is non-empty, the ordered
// keyword rules are scanned and the first rule with any case-insensitive
// substring match wins. Anything else is Misc.
func (c *Classifier) Classify(path, content string) Category {
	if cat, ok := c.rules.HardRule(path); ok {
		c.logger.Debug("hard rule matched",
			slog.String("path", path),
			slog.String("category", cat.String()))
		return cat
	}

	if content == "" {
		return CategoryMisc
	}

	lowered := strings.ToLower(content)
	for _, rule := range c.rules.KeywordRules() {
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, kw) {
				c.logger.Debug("keyword rule matched",
					slog.String("path", path),
					slog.String("category", rule.Category.String()),
					slog.String("keyword", kw))
				return rule.Category
			}
		}
	}

	return CategoryMisc
}
