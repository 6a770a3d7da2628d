package detect

import "strings"

// CategoryUncategorized is the fallback when no rule matches.
const CategoryUncategorized = "Other"

// CategoryRule assigns a category when any keyword appears in the uppercased
// transaction description.
type CategoryRule struct {
	Category string
	Keywords []string
}

// defaultCategoryRules is a static ordered rule table, evaluated
// top-to-bottom. No learned model behind it; every assignment is
// deterministic and explainable.
var defaultCategoryRules = []CategoryRule{
	{"Streaming", []string{"NETFLIX", "SPOTIFY", "PRIME", "AMAZON PRIME", "DISNEY", "HBO", "APPLE MUSIC", "YOUTUBE PREMIUM"}},
	{"Gym", []string{"GYM", "FITNESS", "PLANET", "GOLD", "CROSSFIT", "YOGA"}},
	{"Utilities", []string{"ELECTRICITY", "WATER", "GAS", "INTERNET", "MOBILE", "PHONE", "BROADBAND", "WIFI"}},
	{"Food", []string{"RESTAURANT", "CAFE", "FOOD", "GROCERY", "SWIGGY", "ZOMATO", "UBER EATS", "DOMINO", "PIZZA"}},
	{"EMI", []string{"EMI", "LOAN", "CREDIT CARD", "INSTALLMENT", "FINANCE"}},
	{"Shopping", []string{"AMAZON", "FLIPKART", "MYNTRA", "MALL", "STORE", "SHOP"}},
}

// Categorizer performs rule-based transaction categorization.
type Categorizer struct {
	rules []CategoryRule
}

// NewCategorizer creates a categorizer with the default rule table.
func NewCategorizer() *Categorizer {
	return &Categorizer{rules: defaultCategoryRules}
}

// NewCategorizerWithRules creates a categorizer with a custom rule table.
func NewCategorizerWithRules(rules []CategoryRule) *Categorizer {
	return &Categorizer{rules: rules}
}

// Categorize returns the category of the first matching rule, or
// CategoryUncategorized when none matches.
func (c *Categorizer) Categorize(description string) string {
	upper := strings.ToUpper(description)
	for _, rule := range c.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(upper, keyword) {
				return rule.Category
			}
		}
	}
	return CategoryUncategorized
}
