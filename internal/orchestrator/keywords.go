package orchestrator

import (
	"regexp"
	"strings"
)

var sqlKeywords = []string{
	"show me", "list", "count", "top", "bottom", "average", "avg", "sum",
	"trend", "growth", "breakdown", "filter", "where", "group by",
	"over time", "compare",
}

var visualKeywords = []string{
	"chart", "graph", "plot", "visual", "visualise", "visualize", "bar",
	"line", "dashboard", "heatmap", "scatter", "timeline",
}

var researchKeywords = []string{
	"summarize", "summarise", "synthesis", "whitepaper", "pdf", "doc",
	"document", "report", "outlook", "insight", "industry", "explain why",
	"root cause", "policy", "memo", "news", "compare reports", "research",
}

var webSearchKeywords = []string{
	"web", "search the web", "web search", "internet", "online", "google",
	"bing", "duckduckgo", "news", "headline", "article", "press release",
	"site:", "wikipedia",
}

var entityHints = []string{
	"fund", "portfolio", "account", "region", "country", "client",
	"customer", "product", "team", "sector", "strategy", "channel",
	"segment", "asset",
}

var timeHints = []string{
	"yesterday", "today", "last", "previous", "current", "this", "quarter",
	"month", "year", "week", "day", "daily", "monthly", "ytd", "mtd", "q1",
	"q2", "q3", "q4", "fy", "202", "20", "2020", "2021", "2022", "2023",
	"2024", "2025",
}

var aggregationHints = []string{
	"top", "bottom", "rank", "compare", "by", "versus", "vs", "per",
	"distribution", "histogram", "trend", "over time", "breakdown",
}

var ambiguityPhrases = []string{
	"show me performance", "show performance", "how are things going",
	"tell me the performance", "give me performance", "show me results",
	"update me",
}

var numberPattern = regexp.MustCompile(`\b\d{4}\b`)

// containsKeyword reports whether text contains any keyword. Multi-word
// keywords match as a plain substring; single-word keywords match on a word
// boundary so "bar" doesn't match inside "barely".
func containsKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(text, kw) {
				return true
			}
			continue
		}
		pattern := `\b` + regexp.QuoteMeta(kw) + `\b`
		if matched, _ := regexp.MatchString(pattern, text); matched {
			return true
		}
	}
	return false
}

func routeSlug(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var allRoutes = []RouteName{
	RouteSimpleAnalyst, RouteAnalystThenVisual, RouteWebSearch,
	RouteDeepResearch, RouteClarify,
}

var routeAliases = map[string]RouteName{
	"analyst":      RouteSimpleAnalyst,
	"visual":       RouteAnalystThenVisual,
	"chart":        RouteAnalystThenVisual,
	"websearch":    RouteWebSearch,
	"web":          RouteWebSearch,
	"research":     RouteDeepResearch,
	"deepresearch": RouteDeepResearch,
}

// normalizeRouteName matches a loosely-formatted value (any case, any
// punctuation) against the known RouteName values, then a small alias table.
func normalizeRouteName(value any) RouteName {
	if value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return ""
	}
	slug := routeSlug(s)
	if slug == "" {
		return ""
	}
	for _, route := range allRoutes {
		if slug == routeSlug(string(route)) {
			return route
		}
	}
	if route, ok := routeAliases[slug]; ok {
		return route
	}
	return ""
}

func normalizeRouteList(value any) []RouteName {
	if value == nil {
		return nil
	}
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	default:
		items = []any{v}
	}
	var routes []RouteName
	seen := map[RouteName]bool{}
	for _, item := range items {
		route := normalizeRouteName(item)
		if route != "" && !seen[route] {
			routes = append(routes, route)
			seen[route] = true
		}
	}
	return routes
}

func contextDict(context map[string]any, key string) map[string]any {
	if context == nil {
		return nil
	}
	if v, ok := context[key].(map[string]any); ok {
		return v
	}
	return nil
}

func boolField(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	v, _ := m[key].(bool)
	return v
}

// extractRoutingOverrides reads context["routing"], falling back to
// context["reasoning"], into a RoutingOverrides. Matches
// _extract_routing_overrides in the retrieved reference router.
func extractRoutingOverrides(context map[string]any) RoutingOverrides {
	overrides := RoutingOverrides{AvoidRoutes: map[RouteName]bool{}}

	raw := contextDict(context, "routing")
	if raw == nil {
		raw = contextDict(context, "reasoning")
	}
	if raw == nil {
		return overrides
	}

	overrides.ForceRoute = normalizeRouteName(raw["force_route"])
	if overrides.ForceRoute == "" {
		overrides.ForceRoute = normalizeRouteName(raw["force_tool"])
	}
	if overrides.ForceRoute == "" {
		switch {
		case boolField(raw, "force_web_search"):
			overrides.ForceRoute = RouteWebSearch
		case boolField(raw, "force_deep_research"):
			overrides.ForceRoute = RouteDeepResearch
		case boolField(raw, "force_visual"):
			overrides.ForceRoute = RouteAnalystThenVisual
		case boolField(raw, "force_sql"):
			overrides.ForceRoute = RouteSimpleAnalyst
		case boolField(raw, "force_clarify"):
			overrides.ForceRoute = RouteClarify
		}
	}

	preferred := raw["prefer_routes"]
	if preferred == nil {
		preferred = raw["preferred_routes"]
	}
	overrides.PreferRoutes = normalizeRouteList(preferred)
	for _, r := range normalizeRouteList(raw["avoid_routes"]) {
		overrides.AvoidRoutes[r] = true
	}
	overrides.RequireVisual = boolField(raw, "require_visual")
	overrides.RequireWebSearch = boolField(raw, "require_web_search")
	overrides.RequireDeepResearch = boolField(raw, "require_deep_research")
	overrides.RequireSQL = boolField(raw, "require_sql")

	overrides.PreviousRoute = normalizeRouteName(raw["previous_route"])
	retry := boolField(raw, "retry_due_to_error") ||
		boolField(raw, "retry_due_to_empty") ||
		boolField(raw, "retry_due_to_low_sources")
	if retry && overrides.PreviousRoute != "" {
		overrides.AvoidRoutes[overrides.PreviousRoute] = true
	}

	return overrides
}
