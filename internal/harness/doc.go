// Package harness runs scenario files against a compiled theory.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: doubler
//	description: "doubler unfolds one layer per reduction"
//	theory: theories/nat.cue
//	steps:
//	  - reduce: [doubler, [succ, zero]]
//	    expect: [succ, [succ, [doubler, zero]]]
//	  - assume: [["$0", "$1"]]
//	    equal: [["$0", "$1"]]
//	  - solve:
//	      indeterminates: [var1]
//	      depth: 1
//	      equations: [[[var1, "$0"], zero]]
//	    expect_state: solved
//	    expect_definitions: {var1: zero}
//
// Terms use the list syntax of package compiler. The theory path is relative
// to the scenario file.
//
// # Steps
//
//   - reduce: evaluate a term (head normal form, or full normal form with
//     full: true) and compare it to expect.
//   - assume: build a fresh conglomerate context from the listed equalities,
//     then check the equal and distinct pairs under it. expect_error names
//     the failure the assumptions must produce (cycle, mismatch, pending).
//   - solve: declare fresh indeterminates, submit the equations to a solver
//     manager and compare the final state and the definitions it produced.
//
// A failing step marks the run failed but later steps still run. Every run
// produces a canonical JSON report suitable for golden comparison.
package harness
