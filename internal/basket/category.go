package basket

import (
	"fmt"
	"regexp"
	"strings"
)

// Category is a shopping-aisle label.
type Category string

const (
	CategoryDairy      Category = "Dairy"
	CategoryMeat       Category = "Meat"
	CategoryFruits     Category = "Fruits"
	CategoryVegetables Category = "Vegetables"
	CategoryGrains     Category = "Grains"
	CategorySweeteners Category = "Sweeteners"
	CategoryCondiments Category = "Condiments"
	CategoryBeverages  Category = "Beverages"
	CategorySpices     Category = "Spices"
	CategoryOther      Category = "Other"
)

// Categories lists every category in classification order, with the Other
// fallback last. The order is significant: the first matching category wins.
func Categories() []Category {
	return []Category{
		CategoryDairy, CategoryMeat, CategoryFruits, CategoryVegetables,
		CategoryGrains, CategorySweeteners, CategoryCondiments,
		CategoryBeverages, CategorySpices, CategoryOther,
	}
}

// KeywordRule pairs a category with a keyword alternation matched against
// lowercased ingredient names. The rule set is data, not code: it can be
// replaced wholesale from configuration.
type KeywordRule struct {
	Category Category `mapstructure:"category"`
	Pattern  string   `mapstructure:"pattern"`
}

// DefaultKeywordRules returns the built-in bilingual (English + French)
// keyword table. Matching is by keyword union, not detected language.
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{CategoryDairy, `milk|lait|almond|amande|soy|soja|cream|cr(e|è)me|cheese|fromage|yogurt|yaourt|butter|beurre`},
		{CategoryMeat, `beef|b(o|œ)uf|steak|chicken|poulet|pork|porc|lamb|agneau|turkey|dinde|sausage|saucisse|bacon|ham|jambon|meat|viande`},
		{CategoryFruits, `apple|pomme|pear|poire|banana|banane|orange|lemon|citron|lime|kiwi|mangue|mango|raisin|grape|fruit|berry|baie|fraise|m(û|u)re`},
		{CategoryVegetables, `carrot|carotte|potato|pomme\s*de\s*terre|patate|onion|oignon|garlic|ail|pepper|poivron|courgette|zucchini|aubergine|eggplant|celery|c(e|é)leri|chou|cabbage|lettuce|salade|spinach|(é|e)pinard|vegetable|l(e|è)gume|legume`},
		{CategoryGrains, `bread|baguette|croissant|pain|flour|farine|rice|riz|pasta|p(â|a)tes|quinoa|semoule|grits|grain|cereal|c(e|é)r(e|é)ale`},
		{CategorySweeteners, `sugar|sucre|honey|miel|syrup|sirop|maple|(é|e)rable|powdered|icing|sweetener|(é|e)dulcorant`},
		{CategoryCondiments, `oil|huile|olive|vinegar|vinaigre|soy\s*sauce|sauce\s*soja|mayonnaise|moutarde|mustard|sauce|dressing|vinaigrette`},
		{CategoryBeverages, `water|eau|juice|jus|soda|boisson|beverage|drink|tea|th(e|é)|caf(e|é)|coffee`},
		{CategorySpices, `salt|sel|pepper|poivre|spice|(é|e)pice|herb|curcuma|turmeric|cumin|gingembre|ginger|paprika|cannelle|cinnamon|romarin|rosemary|basilic|basil|anis`},
	}
}

// Classifier maps free-text ingredient names to shopping categories.
type Classifier struct {
	rules []compiledRule
}

type compiledRule struct {
	category Category
	re       *regexp.Regexp
}

// NewClassifier compiles a keyword table into a classifier.
func NewClassifier(rules []KeywordRule) (*Classifier, error) {
	c := &Classifier{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("bad keyword pattern for category %s: %w", r.Category, err)
		}
		c.rules = append(c.rules, compiledRule{category: r.Category, re: re})
	}
	return c, nil
}

// Classify returns the first matching category for an ingredient name, or
// Other. It is case-insensitive and never fails.
func (c *Classifier) Classify(name string) Category {
	lower := strings.ToLower(name)
	for _, r := range c.rules {
		if r.re.MatchString(lower) {
			return r.category
		}
	}
	return CategoryOther
}

var defaultClassifier = mustClassifier(DefaultKeywordRules())

func mustClassifier(rules []KeywordRule) *Classifier {
	c, err := NewClassifier(rules)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify applies the built-in keyword table.
func Classify(name string) Category {
	return defaultClassifier.Classify(name)
}
