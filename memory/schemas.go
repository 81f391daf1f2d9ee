package memory

import "github.com/gruzilkin/urmom-bot-sub000/types"

// DailySummariesResult is the schema-typed reply to the batch daily-summary
// call: one narrative per active user id for the date just summarized.
type DailySummariesResult struct {
	Summaries map[string]string `json:"summaries"`
}

func dailySummariesSchema() *types.JSONSchema {
	summaries := types.NewObjectSchema().WithDescription("user id -> that user's summary for the day")
	return types.NewObjectSchema().
		WithDescription("Per-user daily activity summaries").
		AddProperty("summaries", summaries).
		AddRequired("summaries")
}

// AliasListResult is the schema-typed reply to the alias-extraction call.
type AliasListResult struct {
	Aliases []string `json:"aliases"`
}

func aliasListSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		WithDescription("Short alternate names or nicknames a user is known by").
		AddProperty("aliases", types.NewArraySchema(types.NewStringSchema())).
		AddRequired("aliases")
}

// MergeContextResult is the schema-typed reply to the facts+summaries merge
// call: a single coherent narrative synthesizing both inputs.
type MergeContextResult struct {
	Context string `json:"context"`
}

func mergeContextSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		WithDescription("A single coherent narrative merging long-term facts with recent daily summaries").
		AddProperty("context", types.NewStringSchema()).
		AddRequired("context")
}
