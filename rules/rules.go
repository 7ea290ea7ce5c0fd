//go:build ruleguard

// Package gorules contains the ruleguard checks run by golangci-lint.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the Add/Done goroutine pattern that wg.Go replaces.
//
//	wg.Add(1)
//	go func() { defer wg.Done(); work() }()
//
// becomes
//
//	wg.Go(func() { work() })
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of Add/Done").
		Suggest("$wg.Go(func() { $body })")
}

// SquareWithPow flags math.Pow with a constant exponent of two, which is slow
// in per-sample DSP loops.
func SquareWithPow(m dsl.Matcher) {
	m.Match(`math.Pow($x, 2)`, `math.Pow($x, 2.0)`).
		Where(m["x"].Pure).
		Report("use $x*$x instead of math.Pow($x, 2)").
		Suggest("$x*$x")
}

// StdErrorsInInternal flags the standard errors constructor outside tests.
// Internal packages build sentinels with the enhanced error builder so they
// carry a component and category.
func StdErrorsInInternal(m dsl.Matcher) {
	m.Import("errors")
	m.Match(`errors.New($msg)`).
		Where(m.File().PkgPath.Matches(`/internal/`) &&
			!m.File().PkgPath.Matches(`/internal/errors$`) &&
			!m.File().Name.Matches(`_test\.go$`) &&
			m["msg"].Type.Is("string")).
		Report("build errors with internal/errors: errors.New(errors.NewStd($msg)).Component(...).Category(...).Build()")
}

// TimeSinceSeconds prefers time.Since over subtracting from time.Now.
func TimeSinceSeconds(m dsl.Matcher) {
	m.Match(`time.Now().Sub($t)`).
		Report("use time.Since($t)").
		Suggest("time.Since($t)")
}
