// Package harness runs scripted patch-graph scenarios against the engine.
//
// A scenario declares nodes and edges, then drives the graph frame by
// frame with input edits, pulses, drag gestures and topology changes,
// checking outputs and scheduling decisions after each frame.
//
// # Scenario Format
//
// Scenarios are YAML (strict fields) or CUE (checked against #Scenario):
//
//	name: chain
//	description: "A value feeds an adder"
//	frame_rate: 60
//	nodes:
//	  - id: a
//	    kind: value
//	    set: {0: 1}
//	  - id: b
//	    kind: add
//	    set: {1: 2}
//	edges:
//	  - from: a.0
//	    to: b.0
//	frames:
//	  - expect:
//	      outputs:
//	        - port: b.0
//	          value: 3
//	      evaluated: [a, b]
//	  - set:
//	      - port: a.0
//	        value: 5
//	    settle: true
//	    expect:
//	      outputs:
//	        - port: b.0
//	          value: 7
//	      idle: true
//
// Port references are "node.index"; a bare node name is index 0.
//
// # Frames
//
// Edits apply in a fixed order: restart, remove, disconnect, connect, set,
// pulse, gesture, dirty. The engine then steps once, repeat times, or until
// idle when settle is set. Expectations are checked after the last step;
// evaluated and skipped refer to that step only.
//
// # Deterministic Testing
//
// Node ids are sequential and time is derived from the frame counter, so
// every run of a scenario yields the same trace. Golden snapshots live in
// testdata/golden and are regenerated with:
//
//	go test ./internal/harness -update
package harness
