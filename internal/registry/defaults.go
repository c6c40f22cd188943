package registry

import (
	"time"

	"github.com/larder-app/larder/internal/pantry"
)

// DefaultVersion identifies the compiled-in artifact used before any
// trained artifact has been loaded.
const DefaultVersion = "builtin-1"

// Default returns the built-in artifact: seed keyword vocabulary, shelf-life
// priors, and a conservative scorer. It guarantees the engine is fully
// functional on a cold start with no model directory at all.
func Default() *Artifact {
	return &Artifact{
		Version:              DefaultVersion,
		TrainedAt:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FeatureSchemaVersion: FeatureSchemaVersion,
		TrainingSampleCount:  0,

		GlobalShelfLifeDays:   365,
		GlobalPurchaseGapDays: 30,

		Categories: []CategoryProfile{
			{
				Name:                pantry.CategoryDairy,
				Keywords:            []string{"milk", "cheese", "yogurt", "butter", "cream", "sour cream", "cottage cheese", "kefir"},
				Exemplars:           []string{"dairy", "lactose", "whole", "skim", "curd", "mozzarella", "cheddar", "parmesan"},
				Prior:               0.14,
				MedianShelfLifeDays: 7,
				PurchaseGapDays:     3,
			},
			{
				Name:                pantry.CategoryVegetables,
				Keywords:            []string{"carrot", "potato", "onion", "tomato", "lettuce", "spinach", "broccoli", "celery", "cucumber", "pepper"},
				Exemplars:           []string{"vegetable", "greens", "salad", "cabbage", "zucchini", "kale", "cauliflower", "garlic"},
				Prior:               0.16,
				MedianShelfLifeDays: 10,
				PurchaseGapDays:     4,
			},
			{
				Name:                pantry.CategoryFruits,
				Keywords:            []string{"apple", "banana", "orange", "grape", "strawberry", "blueberry", "lemon", "lime", "pear", "peach"},
				Exemplars:           []string{"fruit", "berry", "citrus", "melon", "mango", "kiwi", "plum", "cherry"},
				Prior:               0.14,
				MedianShelfLifeDays: 7,
				PurchaseGapDays:     3,
			},
			{
				Name:                pantry.CategoryBeverages,
				Keywords:            []string{"water", "juice", "soda", "beer", "wine", "coffee", "tea", "lemonade"},
				Exemplars:           []string{"beverage", "drink", "sparkling", "cola", "cider", "kombucha"},
				Prior:               0.10,
				MedianShelfLifeDays: 365,
				PurchaseGapDays:     30,
			},
			{
				Name:                pantry.CategoryBakery,
				Keywords:            []string{"bread", "bagel", "muffin", "croissant", "cake", "cookie", "pizza", "roll"},
				Exemplars:           []string{"bakery", "baked", "loaf", "baguette", "pastry", "tortilla", "pita"},
				Prior:               0.09,
				MedianShelfLifeDays: 5,
				PurchaseGapDays:     2,
			},
			{
				Name:                pantry.CategoryMeat,
				Keywords:            []string{"chicken", "beef", "pork", "fish", "turkey", "ham", "bacon", "sausage", "salmon", "lamb"},
				Exemplars:           []string{"meat", "steak", "mince", "fillet", "shrimp", "tuna", "deli"},
				Prior:               0.10,
				MedianShelfLifeDays: 3,
				PurchaseGapDays:     1,
			},
			{
				Name:                pantry.CategoryFrozen,
				Keywords:            []string{"ice cream", "frozen", "popsicle"},
				Exemplars:           []string{"freezer", "gelato", "sorbet"},
				Prior:               0.07,
				MedianShelfLifeDays: 90,
				PurchaseGapDays:     20,
			},
			{
				Name:                pantry.CategorySnacks,
				Keywords:            []string{"chips", "cracker", "nut", "popcorn", "candy", "chocolate", "granola", "pretzel"},
				Exemplars:           []string{"snack", "bar", "trail mix", "cookie", "biscuit"},
				Prior:               0.08,
				MedianShelfLifeDays: 180,
				PurchaseGapDays:     21,
			},
			{
				Name:                pantry.CategoryCondiments,
				Keywords:            []string{"salt", "pepper", "ketchup", "mustard", "mayo", "hot sauce", "vinegar", "soy sauce", "spice"},
				Exemplars:           []string{"condiment", "seasoning", "dressing", "relish", "paprika", "cumin", "oregano"},
				Prior:               0.06,
				MedianShelfLifeDays: 365,
				PurchaseGapDays:     60,
			},
			{
				Name:                pantry.CategoryStaples,
				Keywords:            []string{"rice", "pasta", "cereal", "oil", "flour", "sugar", "bean", "lentil", "oat"},
				Exemplars:           []string{"staple", "grain", "noodle", "quinoa", "couscous", "canned", "stock"},
				Prior:               0.06,
				MedianShelfLifeDays: 730,
				PurchaseGapDays:     60,
			},
		},

		Scorer: ScorerModel{
			ExpiryWeight:   0.55,
			UsageWeight:    0.20,
			QuantityWeight: 0.10,
			StorageWeight:  0.15,
			Calibration: []CalibrationPoint{
				{Raw: 0, Calibrated: 0},
				{Raw: 0.30, Calibrated: 0.15},
				{Raw: 0.50, Calibrated: 0.30},
				{Raw: 0.70, Calibrated: 0.55},
				{Raw: 0.85, Calibrated: 0.80},
				{Raw: 1, Calibrated: 1},
			},
		},
	}
}
