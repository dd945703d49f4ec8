// Package knapsack models 0/1 knapsack items and instances and provides the
// pluggable solving strategies: a greedy profit-density heuristic and an exact
// dynamic-programming solver.
package knapsack
