// Package rules models column assignment as ordered (predicate, value) lists.
//
// A Ruleset starts from a default and walks every rule in order; each rule
// whose predicate holds overwrites the current value, so the last match wins.
// Buckets map a number onto left-open, right-closed intervals.
package rules

import "math"

// Rule pairs a predicate with the value assigned when it holds.
type Rule[T any, V any] struct {
	When  func(T) bool
	Value V
}

// Ruleset is an ordered list of rules with a default value.
type Ruleset[T any, V any] struct {
	Default V
	Rules   []Rule[T, V]
}

// Eval returns the value of the last rule whose predicate holds for in, or
// Default when none do.
func (s Ruleset[T, V]) Eval(in T) V {
	out := s.Default
	for _, r := range s.Rules {
		if r.When(in) {
			out = r.Value
		}
	}
	return out
}

// Bucket is the interval (previous Upper, Upper] labelled Label. The first
// bucket's lower bound is Buckets.Lower.
type Bucket struct {
	Upper float64
	Label string
}

// Buckets are contiguous left-open, right-closed intervals in ascending order.
// Use math.Inf(1) as the last Upper for an unbounded top bucket.
type Buckets struct {
	Lower   float64
	Buckets []Bucket
}

// Label returns the bucket containing v. ok is false when v is NaN or falls
// outside (Lower, last Upper].
func (b Buckets) Label(v float64) (string, bool) {
	if math.IsNaN(v) || v <= b.Lower {
		return "", false
	}
	for _, bk := range b.Buckets {
		if v <= bk.Upper {
			return bk.Label, true
		}
	}
	return "", false
}

// AtMost returns a predicate that holds for v <= limit.
func AtMost(limit float64) func(float64) bool {
	return func(v float64) bool { return v <= limit }
}

// AtLeast returns a predicate that holds for v >= limit.
func AtLeast(limit float64) func(float64) bool {
	return func(v float64) bool { return v >= limit }
}

// Above returns a predicate that holds for v > limit.
func Above(limit float64) func(float64) bool {
	return func(v float64) bool { return v > limit }
}
