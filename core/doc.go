// Package core defines the data model shared by every layer of agent-forge:
// conversation messages, tool call requests and results, run requests and
// results, token usage accounting and the typed error taxonomy.
//
// Types in this package are deliberately free of behavior beyond invariant
// enforcement so that the orchestration packages (agent, runner, tool, hook)
// can evolve independently of the data they exchange.
package core
