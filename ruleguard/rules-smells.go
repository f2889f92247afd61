package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Two guards in a row with the same return can be merged with ||.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

func domain(m dsl.Matcher) {
	// Waiting belongs to a ticker or timer that also watches ctx.
	m.Match(`time.Sleep($_)`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report(`time.Sleep outside tests; poll with a time.Ticker and select on ctx.Done()`)

	// Model output is free text around JSON.
	m.Match(`json.Unmarshal([]byte($g.Content), $_)`).
		Report(`decode model output with extraction.Extract, it tolerates fences and surrounding prose`)

	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`).
		Where(!m.File().PkgPath.Matches(`/cmd/`)).
		Report(`log through the injected *zap.Logger instead of printing to stdout`)

	m.Match(`zap.NewExample()`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report(`build loggers with logging.New`)
}
