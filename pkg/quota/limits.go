package quota

import "github.com/doodlesbykumbi/schoolhost/pkg/model"

// splits is the share of the plan allowance, in percent, each category
// gets per plan tier.
var splits = map[string]map[model.StorageCategory]int64{
	model.TierFree: {
		model.CategoryDatabase: 40, model.CategoryFiles: 30, model.CategoryBackups: 20, model.CategoryAttachments: 10,
	},
	model.TierStarter: {
		model.CategoryDatabase: 30, model.CategoryFiles: 40, model.CategoryBackups: 20, model.CategoryAttachments: 10,
	},
	model.TierProfessional: {
		model.CategoryDatabase: 25, model.CategoryFiles: 45, model.CategoryBackups: 20, model.CategoryAttachments: 10,
	},
	model.TierEnterprise: {
		model.CategoryDatabase: 20, model.CategoryFiles: 50, model.CategoryBackups: 20, model.CategoryAttachments: 10,
	},
}

// Split returns the percentage split of tier. Unknown tiers get the free
// split.
func Split(tier string) map[model.StorageCategory]int64 {
	s, ok := splits[tier]
	if !ok {
		s = splits[model.TierFree]
	}
	out := make(map[model.StorageCategory]int64, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Limits returns the byte limit of every concrete category under plan.
// A plan without an allowance yields zero limits, meaning unlimited.
func Limits(plan *model.SubscriptionPlan) map[model.StorageCategory]int64 {
	total := Limit(plan, model.CategoryTotal)
	limits := make(map[model.StorageCategory]int64, len(model.Categories()))
	for cat, pct := range Split(plan.Tier) {
		limits[cat] = total * pct / 100
	}
	return limits
}

// Limit returns the byte limit of category under plan. The total is the
// whole plan allowance.
func Limit(plan *model.SubscriptionPlan, category model.StorageCategory) int64 {
	if category == model.CategoryTotal {
		if total := plan.StorageLimitBytes(); total > 0 {
			return total
		}
		return 0
	}
	return Limits(plan)[category]
}
