// Package engine schedules and evaluates a patch graph.
//
// ARCHITECTURE:
//
// Single Actor:
// One goroutine owns the graph, the node states and the dirty set. Step,
// topology edits and state updates run on it. Other goroutines hand work
// to the actor through Enqueue; Run applies queued requests between steps
// and never during one.
//
// Step:
//  1. The clock advances one frame; simulated time is frame / frame rate.
//  2. The dirty set is swapped out. Dirty ids that no longer exist are
//     skipped as missing references.
//  3. The forward closure of the dirty nodes is planned. Cycle members are
//     skipped, logged and re-dirtied for the next step.
//  4. The remaining nodes evaluate in topological order, ties broken by
//     creation order. A node downstream of a seed evaluates only if one of
//     its inputs changed during this step.
//  5. Impure nodes that ask to run again are dirtied for the next step,
//     subject to the run-again budget.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Evaluators see simulated time derived from the frame counter. NEVER
// read the wall clock inside an evaluator; recorded traces replay
// identically only because time is a pure function of the frame.
//
// Log and Continue:
// Cycles, missing references, unknown kinds and exhausted budgets are
// absorbed: logged, reported in the StepReport and recorded to the trace
// sink. Step never fails. Strict values are the exception: a variant
// mismatch panics with a *RuntimeError naming the node.
package engine
