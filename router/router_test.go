package router

import (
	"context"
	"strings"
	"testing"

	"github.com/gruzilkin/urmom-bot-sub000/domain"
	"github.com/gruzilkin/urmom-bot-sub000/internal/metrics"
	"github.com/gruzilkin/urmom-bot-sub000/llm"
	"github.com/gruzilkin/urmom-bot-sub000/types"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDescriptor struct {
	description string
	schema      *types.JSONSchema
	prompt      string
}

func (d fakeDescriptor) RouteDescription() string          { return d.description }
func (d fakeDescriptor) ParameterSchema() *types.JSONSchema { return d.schema }
func (d fakeDescriptor) ParameterExtractionPrompt() string  { return d.prompt }

// scriptedClient answers every Generate call by matching the outgoing
// system prompt against a caller-supplied function, letting one fake stand
// in for every distinct call a Router.Select invocation makes (route
// selection, per-route parameter extraction, language detection/naming).
type scriptedClient struct {
	name  string
	reply func(req llm.Request) string
}

func (c *scriptedClient) Name() string { return c.name }

func (c *scriptedClient) Generate(_ context.Context, req llm.Request) (string, error) {
	return c.reply(req), nil
}

var testMetrics = metrics.NewCollector("router_test", zap.NewNop())

func newRouter(client, langClient llm.GenerativeClient) *Router {
	famous := fakeDescriptor{description: "FAMOUS: impersonate a person", schema: famousSchema(), prompt: "extract famous person"}
	general := fakeDescriptor{description: "GENERAL: open-ended question", schema: generalSchema(), prompt: "extract general params"}
	fact := fakeDescriptor{description: "FACT: remember or forget", schema: factSchema(), prompt: "extract fact params"}
	return NewRouter(client, langClient, famous, general, fact, testMetrics, zap.NewNop())
}

func famousSchema() *types.JSONSchema {
	return types.NewObjectSchema().AddProperty("famous_person", types.NewStringSchema()).AddRequired("famous_person")
}

func generalSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		AddProperty("ai_backend", types.NewStringSchema()).
		AddProperty("temperature", types.NewNumberSchema()).
		AddProperty("cleaned_query", types.NewStringSchema()).
		AddRequired("ai_backend", "temperature", "cleaned_query")
}

func factSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		AddProperty("operation", types.NewStringSchema()).
		AddProperty("user_mention", types.NewStringSchema()).
		AddProperty("fact_content", types.NewStringSchema()).
		AddRequired("operation", "user_mention", "fact_content")
}

func TestRouterSelectsGeneralRoute(t *testing.T) {
	client := &scriptedClient{name: "router", reply: func(req llm.Request) string {
		switch {
		case strings.Contains(req.SystemPrompt, "<route_definitions>"):
			return `{"route":"GENERAL","reason":"open-ended question"}`
		case strings.Contains(req.SystemPrompt, "extract general params"):
			return `{"ai_backend":"gemini_flash","temperature":0.7,"cleaned_query":"what is the weather"}`
		default:
			t.Fatalf("unexpected system prompt: %s", req.SystemPrompt)
			return ""
		}
	}}
	langClient := &scriptedClient{name: "lang", reply: func(req llm.Request) string {
		switch {
		case strings.Contains(req.SystemPrompt, "determine its primary language"):
			return `{"language_code":"en"}`
		case strings.Contains(req.SystemPrompt, "full name of the language"):
			return `{"language_name":"English"}`
		default:
			t.Fatalf("unexpected language prompt: %s", req.SystemPrompt)
			return ""
		}
	}}

	r := newRouter(client, langClient)
	result, params, err := r.Select(context.Background(), "what is the weather like in Tokyo?")
	require.NoError(t, err)
	require.Equal(t, domain.RouteGeneral, result.Route)
	require.Equal(t, "en", result.LanguageCode)
	require.Equal(t, "English", result.LanguageName)

	general, ok := params.(domain.GeneralParams)
	require.True(t, ok)
	require.Equal(t, "gemini_flash", general.AIBackend)
	require.Equal(t, "what is the weather", general.CleanedQuery)
	require.Equal(t, "en", general.LanguageCode)
	require.Equal(t, "English", general.LanguageName)
}

func TestRouterNoneRouteHasNilParams(t *testing.T) {
	client := &scriptedClient{name: "router", reply: func(req llm.Request) string {
		return `{"route":"NONE","reason":"just an acknowledgment"}`
	}}
	langClient := &scriptedClient{name: "lang", reply: func(req llm.Request) string {
		if strings.Contains(req.SystemPrompt, "determine its primary language") {
			return `{"language_code":"en"}`
		}
		return `{"language_name":"English"}`
	}}

	r := newRouter(client, langClient)
	result, params, err := r.Select(context.Background(), "lol ok")
	require.NoError(t, err)
	require.Equal(t, domain.RouteNone, result.Route)
	require.Nil(t, params)
}

func TestRouterFactRouteExtractsParams(t *testing.T) {
	client := &scriptedClient{name: "router", reply: func(req llm.Request) string {
		switch {
		case strings.Contains(req.SystemPrompt, "<route_definitions>"):
			return `{"route":"FACT","reason":"imperative memory update"}`
		case strings.Contains(req.SystemPrompt, "extract fact params"):
			return `{"operation":"remember","user_mention":"<@42>","fact_content":"likes pizza"}`
		default:
			t.Fatalf("unexpected system prompt: %s", req.SystemPrompt)
			return ""
		}
	}}
	langClient := &scriptedClient{name: "lang", reply: func(req llm.Request) string {
		if strings.Contains(req.SystemPrompt, "determine its primary language") {
			return `{"language_code":"ru"}`
		}
		return `{"language_name":"Russian"}`
	}}

	r := newRouter(client, langClient)
	result, params, err := r.Select(context.Background(), "remember that he likes pizza")
	require.NoError(t, err)
	require.Equal(t, domain.RouteFact, result.Route)

	fact, ok := params.(domain.FactParams)
	require.True(t, ok)
	require.Equal(t, "remember", fact.Operation)
	require.Equal(t, "likes pizza", fact.FactContent)
	require.Equal(t, "ru", fact.LanguageCode)
	require.Equal(t, "Russian", fact.LanguageName)
}

func TestRouterWrapsTier1Error(t *testing.T) {
	client := &scriptedClient{name: "router", reply: func(req llm.Request) string {
		return `not json`
	}}
	langClient := &scriptedClient{name: "lang", reply: func(req llm.Request) string {
		if strings.Contains(req.SystemPrompt, "determine its primary language") {
			return `{"language_code":"en"}`
		}
		return `{"language_name":"English"}`
	}}

	r := newRouter(client, langClient)
	_, _, err := r.Select(context.Background(), "anything")
	require.Error(t, err)
}
