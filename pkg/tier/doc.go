// Package tier maps product tiers to gateway billing prices.
//
// A tier is a named entitlement level (free, pro, fleet, ...). Each paid tier carries
// one price identifier per billing period; inbound gateway events only know the price,
// so the reconciliation engine uses TierByPrice to learn which tier a subscription
// grants. The catalog is read-only and lookups never fail beyond reporting a miss.
//
// # Usage
//
//	catalog := tier.New([]tier.Definition{
//		{ID: "free", Name: "Free", Free: true},
//		{ID: "pro", Name: "Pro", MonthlyPriceID: "price_pro_m", YearlyPriceID: "price_pro_y"},
//	})
//
//	id, ok := catalog.TierByPrice("price_pro_y") // "pro", true
//
// Catalogs can also be loaded from YAML:
//
//	default_free_tier: free
//	tiers:
//	  free:
//	    name: Free
//	    free: true
//	  pro:
//	    name: Pro
//	    price_id_monthly: price_pro_m
//	    price_id_yearly: price_pro_y
//
//	catalog, err := tier.Load("tiers.yaml")
package tier
