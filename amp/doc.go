// Package amp is the outer controller of the adaptive multivariate
// partitioning solver. Each iteration bounds the problem with a piecewise
// mixed-integer relaxation, merges the relaxation's solution pool, fixes
// variable domains around the bound solution, searches locally for a
// feasible incumbent, and refines the partitions before going again. The
// loop is strictly sequential; it stops when the relative gap closes or a
// time, iteration or stall budget runs out.
package amp
