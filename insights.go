// Package insights correlates prepaid tariffing and recharge spreadsheet
// exports and derives dashboard-ready analytics.
//
// Usage:
//
//	import (
//	    "github.com/macroplay/insights/correlate"
//	    "github.com/macroplay/insights/analyze"
//	    "github.com/macroplay/insights/segment"
//	)
//
//	joined, err := correlate.Correlate(tariffRows, rechargeRows)
//	annotated := analyze.Annotate(joined, time.Now())
//	result := analyze.Analyze(annotated)
//
//	engine := segment.NewEngine(generator, logger)
//	outcome, err := engine.Run(ctx, annotated, "")
//
// The pipeline joins the two row sets by MSISDN, computes recency metrics
// and aggregates, builds chart series, and partitions subscribers into
// named segments: via Gemini when a generator is configured, via a
// deterministic statistical fallback otherwise. All computation except
// the Gemini call is local and synchronous.
package insights
