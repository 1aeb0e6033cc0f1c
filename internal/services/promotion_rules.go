package services

import (
	domain "github.com/atelier-goods/api/internal/domain"
)

// promotionEligibleForOrder evaluates the promotion's rules against the
// order, combining results per the promotion's match policy. A promotion
// with no rules is always eligible.
func promotionEligibleForOrder(promo Promotion, order *Order) bool {
	return combineRules(promo, func(rule PromotionRule) bool {
		return ruleEligibleForOrder(rule, order)
	})
}

// promotionEligibleForLineItem evaluates rules at line-item granularity.
func promotionEligibleForLineItem(promo Promotion, order *Order, li LineItem) bool {
	return combineRules(promo, func(rule PromotionRule) bool {
		return ruleEligibleForLineItem(rule, order, li)
	})
}

func combineRules(promo Promotion, pass func(PromotionRule) bool) bool {
	if len(promo.Rules) == 0 {
		return true
	}
	switch promo.MatchPolicy {
	case domain.MatchAny:
		for _, rule := range promo.Rules {
			if pass(rule) {
				return true
			}
		}
		return false
	default: // all
		for _, rule := range promo.Rules {
			if !pass(rule) {
				return false
			}
		}
		return true
	}
}

func ruleEligibleForOrder(rule PromotionRule, order *Order) bool {
	switch rule.Kind {
	case domain.RuleProduct:
		return productRulePasses(rule, orderProductIDs(order))
	case domain.RuleItemTotal:
		return compareTotals(rule.Operator, order.ItemTotal, rule.Threshold)
	default:
		return false
	}
}

func ruleEligibleForLineItem(rule PromotionRule, order *Order, li LineItem) bool {
	switch rule.Kind {
	case domain.RuleProduct:
		switch rule.ProductMatch {
		case domain.ProductMatchNone:
			return !containsString(rule.ProductIDs, li.ProductID)
		case domain.ProductMatchAll:
			// "all" only makes sense order-wide.
			return productRulePasses(rule, orderProductIDs(order))
		default:
			return len(rule.ProductIDs) == 0 || containsString(rule.ProductIDs, li.ProductID)
		}
	case domain.RuleItemTotal:
		return compareTotals(rule.Operator, li.Amount(), rule.Threshold)
	default:
		return false
	}
}

// productRulePasses tests the configured product set against the order's
// products. An empty configured set always passes.
func productRulePasses(rule PromotionRule, orderProducts map[string]bool) bool {
	if len(rule.ProductIDs) == 0 {
		return true
	}
	switch rule.ProductMatch {
	case domain.ProductMatchAll:
		for _, id := range rule.ProductIDs {
			if !orderProducts[id] {
				return false
			}
		}
		return true
	case domain.ProductMatchNone:
		for _, id := range rule.ProductIDs {
			if orderProducts[id] {
				return false
			}
		}
		return true
	default: // any
		for _, id := range rule.ProductIDs {
			if orderProducts[id] {
				return true
			}
		}
		return false
	}
}

func compareTotals(op domain.ComparisonOperator, total, threshold int64) bool {
	switch op {
	case domain.OpGT:
		return total > threshold
	case domain.OpGTE:
		return total >= threshold
	case domain.OpEQ:
		return total == threshold
	case domain.OpLT:
		return total < threshold
	case domain.OpLTE:
		return total <= threshold
	default:
		return false
	}
}

func orderProductIDs(order *Order) map[string]bool {
	products := make(map[string]bool, len(order.LineItems))
	for _, li := range order.LineItems {
		if li.ProductID != "" {
			products[li.ProductID] = true
		}
	}
	return products
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
