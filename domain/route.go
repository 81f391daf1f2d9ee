package domain

// Route is the first-tier classification the router assigns to a triggering
// message.
type Route string

const (
	RouteFamous  Route = "FAMOUS"
	RouteGeneral Route = "GENERAL"
	RouteFact    Route = "FACT"
	RouteNone    Route = "NONE"
	RouteNotSure Route = "NOTSURE"
)

// RouteResult is Tier 1's output: the chosen route, the model's stated
// reason (logged, never shown to the user), and the language detected in
// parallel over the same trigger message.
type RouteResult struct {
	Route        Route
	Reason       string
	LanguageCode string
	LanguageName string
}

// RouteParams is the marker interface every Tier-2 parameter extraction
// result implements. Dispatch uses an exhaustive type switch over it; the
// default case logs and drops the request rather than panicking, per the
// "no shared-reference cycles, exhaustive-by-construction" design.
type RouteParams interface {
	isRouteParams()
}

// FamousParams carries the Tier-2 extraction for the FAMOUS route.
type FamousParams struct {
	FamousPerson string
	LanguageCode string
	LanguageName string
}

func (FamousParams) isRouteParams() {}

// GeneralParams carries the Tier-2 extraction for the GENERAL route.
type GeneralParams struct {
	AIBackend    string // one of gemini_flash, grok, claude, gemma, codex
	Temperature  float32
	CleanedQuery string
	LanguageCode string
	LanguageName string
}

func (GeneralParams) isRouteParams() {}

// FactParams carries the Tier-2 extraction for the FACT route.
type FactParams struct {
	Operation    string // "remember" or "forget"
	UserMention  string
	FactContent  string
	LanguageCode string
	LanguageName string
}

func (FactParams) isRouteParams() {}
