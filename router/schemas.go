package router

import "github.com/gruzilkin/urmom-bot-sub000/types"

// routeSelectionResult is Tier 1's schema-typed answer: the chosen route
// plus a short rationale, logged but never shown to the user.
type routeSelectionResult struct {
	Route  string `json:"route"`
	Reason string `json:"reason"`
}

func routeSelectionSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		WithDescription("Route classification for an incoming chat message").
		AddProperty("route", types.NewEnumSchema("FAMOUS", "GENERAL", "FACT", "NONE", "NOTSURE").WithDescription("chosen route")).
		AddProperty("reason", types.NewStringSchema().WithDescription("brief (1-2 sentence) reason for the decision")).
		AddRequired("route", "reason")
}

// famousParamsResult is Tier 2's schema-typed answer for the FAMOUS route.
type famousParamsResult struct {
	FamousPerson string `json:"famous_person"`
}

// generalParamsResult is Tier 2's schema-typed answer for the GENERAL route.
type generalParamsResult struct {
	AIBackend    string  `json:"ai_backend"`
	Temperature  float32 `json:"temperature"`
	CleanedQuery string  `json:"cleaned_query"`
}

// factParamsResult is Tier 2's schema-typed answer for the FACT route.
type factParamsResult struct {
	Operation   string `json:"operation"`
	UserMention string `json:"user_mention"`
	FactContent string `json:"fact_content"`
}

// languageCodeResult is the language-detection call's schema-typed answer.
type languageCodeResult struct {
	LanguageCode string `json:"language_code"`
}

func languageCodeSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		WithDescription("Detected primary language of a message").
		AddProperty("language_code", types.NewStringSchema().WithDescription("ISO 639-1 language code (e.g. 'en', 'ru', 'de')")).
		AddRequired("language_code")
}

// languageNameResult is the language-name-resolution call's schema-typed
// answer.
type languageNameResult struct {
	LanguageName string `json:"language_name"`
}

func languageNameSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		WithDescription("Full English name of a language given its ISO 639-1 code").
		AddProperty("language_name", types.NewStringSchema().WithDescription("full name of the language in English, e.g. 'German' for 'de'")).
		AddRequired("language_name")
}
