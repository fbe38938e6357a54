// Package solver resolves indeterminates by unifying pairs of terms.
//
// A Solver owns an ordered list of equations that starts with the one it was
// created for. Each round reduces both sides of every pending equation and
// applies the first strategy that gives a verdict:
//
//  1. extract_rule: one side is an indeterminate applied to distinct bound
//     arguments and the other side mentions only those arguments
//  2. deepen: either side would rewrite further given one more argument
//  3. explode_symmetric: both sides have a closed head, so heads and arities
//     must match and arguments are equated pairwise
//  4. explode_asymmetric: one side has a closed head and the other is an
//     indeterminate application, which is defined as that head applied to
//     fresh indeterminates
//  5. judge_equal: both sides are the same term
//
// Equations derived from another one remember it as their parent. A Manager
// drives several solvers over shared indeterminate sets until none of them
// makes progress, and reports what remains as stalled or failed.
package solver
