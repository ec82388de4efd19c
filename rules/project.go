//go:build ruleguard

// Package gorules contains custom linting rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// TimeLayoutConstants flags the literal layouts used for the date_start,
// date_end and legacy note columns.
func TimeLayoutConstants(m dsl.Matcher) {
	m.Match(`$t.Format("2006-01-02")`).
		Report(`use $t.Format(time.DateOnly)`).
		Suggest(`$t.Format(time.DateOnly)`)

	m.Match(`time.ParseInLocation("2006-01-02", $s, $loc)`).
		Report(`use time.ParseInLocation(time.DateOnly, $s, $loc)`).
		Suggest(`time.ParseInLocation(time.DateOnly, $s, $loc)`)

	m.Match(`time.Parse("2006-01-02 15:04:05", $s)`).
		Report(`use time.Parse(time.DateTime, $s)`).
		Suggest(`time.Parse(time.DateTime, $s)`)

	m.Match(`time.Now().Sub($t)`).
		Report(`use time.Since($t)`).
		Suggest(`time.Since($t)`)
}

// StructuredLogging keeps service output on the module loggers.
func StructuredLogging(m dsl.Matcher) {
	m.Import("log")

	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `log.Print($*_)`, `log.Fatalf($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report(`use the injected logger.Logger instead of the standard log package`)

	m.Match(`fmt.Printf($*_)`, `fmt.Println($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report(`internal packages log through logger.Logger; only commands print`)
}

// CategorizedErrors points plain string errors at the enhanced error builder.
func CategorizedErrors(m dsl.Matcher) {
	m.Match(`fmt.Errorf($format)`).
		Where(m["format"].Const && m.File().PkgPath.Matches(`/internal/`)).
		Report(`use errors.Newf($format) with a Component and Category`)
}

// ReadOnlyDatastore rejects write paths on the GORM handle. The upstream
// database belongs to BirdNET-Go.
func ReadOnlyDatastore(m dsl.Matcher) {
	m.Match(
		`$db.Create($*_)`,
		`$db.Save($*_)`,
		`$db.Delete($*_)`,
		`$db.Updates($*_)`,
		`$db.AutoMigrate($*_)`,
	).
		Where(m["db"].Type.Is("*gorm.DB") &&
			m.File().PkgPath.Matches(`/internal/datastore$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report(`the datastore never writes to the upstream database`)
}

// ContextualSleep flags bare sleeps in tests; wait on a condition instead.
func ContextualSleep(m dsl.Matcher) {
	m.Match(`time.Sleep($_)`).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report(`use testutil.Eventually or a channel instead of time.Sleep in tests`)
}

// WaitGroupGo prefers sync.WaitGroup.Go over manual Add/Done pairs.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report(`use $wg.Go(func() { ... })`).
		Suggest(`$wg.Go(func() { $*_ })`)
}
