// Command urmombot is the reasoning-pipeline service entrypoint: it wires
// the router, conversation builder and formatter, memory manager, and
// per-route generators with response post-processing over a configured set
// of LLM providers, a durable store, and a distributed cache, then waits
// for a chat-gateway adapter (out of scope for this module -- see
// domain.ChatGateway) to drive the pipeline.
//
// Usage:
//
//	urmombot serve              # wire the pipeline and block until signaled
//	urmombot migrate up|down|status
//	urmombot health
//	urmombot version
package main
