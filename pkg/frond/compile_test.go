package frond

import (
	"fmt"
	"strings"
	"testing"
)

// renderBody is a shorthand that installs a single template and renders it.
func renderBody(tb testing.TB, body string, data map[string]any) string {
	tb.Helper()
	e := newTestEngine(tb)
	e.Store().Set("t", body)
	return e.Render("t", data)
}

func TestRender_PlainText(t *testing.T) {
	got := renderBody(t, `<p>static</p>`, nil)
	if got != `<p>static</p>` {
		t.Errorf("expected literal passthrough, got %q", got)
	}
}

func TestRender_Variable(t *testing.T) {
	got := renderBody(t, `Hello {{name}}!`, map[string]any{"name": "Ada"})
	if got != "Hello Ada!" {
		t.Errorf("expected 'Hello Ada!', got %q", got)
	}
}

func TestRender_UnresolvedPathIsEmpty(t *testing.T) {
	got := renderBody(t, `[{{missing.path}}]`, map[string]any{})
	if got != "[]" {
		t.Errorf("expected empty substitution, got %q", got)
	}
}

func TestRender_DottedAndIndexedPaths(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{
			"name": "Ada",
			"tags": []any{"x", "y"},
		},
		"items": []any{
			map[string]any{"title": "first"},
		},
	}
	got := renderBody(t, `{{user.name}}/{{user.tags[1]}}/{{items[0].title}}`, data)
	if got != "Ada/y/first" {
		t.Errorf("expected 'Ada/y/first', got %q", got)
	}
}

func TestRender_Escaping(t *testing.T) {
	data := map[string]any{"x": `<script>alert("hi")</script>`}

	escaped := renderBody(t, `{{x}}`, data)
	if strings.Contains(escaped, "<script>") {
		t.Errorf("escaped output still contains a literal script tag: %q", escaped)
	}
	if !strings.Contains(escaped, "&lt;script&gt;") {
		t.Errorf("expected escaped angle brackets in %q", escaped)
	}

	raw := renderBody(t, `{{{x}}}`, data)
	if raw != `<script>alert("hi")</script>` {
		t.Errorf("raw output should reproduce the value literally, got %q", raw)
	}
}

func TestRender_ValueFormatting(t *testing.T) {
	got := renderBody(t, `{{b}}|{{n}}|{{f}}|{{nothing}}`, map[string]any{
		"b":       true,
		"n":       42,
		"f":       1.5,
		"nothing": nil,
	})
	if got != "true|42|1.5|" {
		t.Errorf("expected 'true|42|1.5|', got %q", got)
	}
}

func TestRender_LoopContext(t *testing.T) {
	body := `{{#each items}}[{{@index}}:{{this}}:{{@first}}:{{@last}}]{{/each}}`
	got := renderBody(t, body, map[string]any{"items": []any{"a", "b", "c"}})
	want := "[0:a:true:false][1:b:false:false][2:c:false:true]"
	if got != want {
		t.Errorf("loop context mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestRender_LoopRecordFields(t *testing.T) {
	body := `{{#each rows}}{{name}}={{score}};{{/each}}`
	got := renderBody(t, body, map[string]any{"rows": []any{
		map[string]any{"name": "a", "score": 1},
		map[string]any{"name": "b", "score": 2},
	}})
	if got != "a=1;b=2;" {
		t.Errorf("expected merged record fields, got %q", got)
	}
}

func TestRender_LoopNonArrayIsEmpty(t *testing.T) {
	got := renderBody(t, `x{{#each notalist}}never{{/each}}y`, map[string]any{"notalist": "string"})
	if got != "xy" {
		t.Errorf("non-array loop should emit nothing, got %q", got)
	}
}

func TestRender_NestedLoops(t *testing.T) {
	body := `{{#each outer}}({{#each inner}}{{this}}{{/each}}){{/each}}`
	got := renderBody(t, body, map[string]any{"outer": []any{
		map[string]any{"inner": []any{1, 2}},
		map[string]any{"inner": []any{3}},
	}})
	if got != "(12)(3)" {
		t.Errorf("expected '(12)(3)', got %q", got)
	}
}

func TestRender_LoopBodyWithConditional(t *testing.T) {
	body := `{{#each items}}{{#if @first}}<ul>{{/if}}<li>{{this}}</li>{{#if @last}}</ul>{{/if}}{{/each}}`
	got := renderBody(t, body, map[string]any{"items": []any{"a", "b"}})
	if got != "<ul><li>a</li><li>b</li></ul>" {
		t.Errorf("unexpected loop/conditional interplay: %q", got)
	}
}

func TestRender_Conditionals(t *testing.T) {
	cases := []struct {
		name string
		body string
		data map[string]any
		want string
	}{
		{"truthy", `{{#if on}}yes{{else}}no{{/if}}`, map[string]any{"on": true}, "yes"},
		{"falsy", `{{#if on}}yes{{else}}no{{/if}}`, map[string]any{"on": false}, "no"},
		{"missing path", `{{#if ghost}}yes{{else}}no{{/if}}`, map[string]any{}, "no"},
		{"negation", `{{#if !on}}yes{{else}}no{{/if}}`, map[string]any{"on": false}, "yes"},
		{"loose eq string", `{{#if s == 'hi'}}yes{{/if}}`, map[string]any{"s": "hi"}, "yes"},
		{"loose eq number", `{{#if n == '5'}}yes{{/if}}`, map[string]any{"n": 5}, "yes"},
		{"strict eq number fails", `{{#if n === '5'}}yes{{else}}no{{/if}}`, map[string]any{"n": 5}, "no"},
		{"strict eq string", `{{#if s === "hi"}}yes{{/if}}`, map[string]any{"s": "hi"}, "yes"},
		{"not eq", `{{#if s != 'bye'}}yes{{/if}}`, map[string]any{"s": "hi"}, "yes"},
		{"not eq vs quoted operator", `{{#if s != '=='}}yes{{else}}no{{/if}}`, map[string]any{"s": "x"}, "yes"},
		{"eq vs quoted operator", `{{#if s == '=='}}yes{{else}}no{{/if}}`, map[string]any{"s": "=="}, "yes"},
		{"greater", `{{#if n > 3}}yes{{else}}no{{/if}}`, map[string]any{"n": 5}, "yes"},
		{"greater eq boundary", `{{#if n >= 5}}yes{{else}}no{{/if}}`, map[string]any{"n": 5}, "yes"},
		{"less", `{{#if n < 3}}yes{{else}}no{{/if}}`, map[string]any{"n": 5}, "no"},
		{"less eq", `{{#if n <= 5}}yes{{/if}}`, map[string]any{"n": 5}, "yes"},
		{"no else falsy", `a{{#if off}}b{{/if}}c`, map[string]any{}, "ac"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := renderBody(t, tc.body, tc.data); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRender_NestedConditionalElse(t *testing.T) {
	body := `{{#if a}}{{#if b}}ab{{else}}a{{/if}}{{else}}none{{/if}}`
	got := renderBody(t, body, map[string]any{"a": true, "b": false})
	if got != "a" {
		t.Errorf("inner else mis-attached: got %q", got)
	}
	got = renderBody(t, body, map[string]any{})
	if got != "none" {
		t.Errorf("outer else mis-attached: got %q", got)
	}
}

func TestRender_Filters(t *testing.T) {
	cases := []struct {
		body string
		data map[string]any
		want string
	}{
		{`{{name | upper}}`, map[string]any{"name": "ada"}, "ADA"},
		{`{{name | upper | truncate:2}}`, map[string]any{"name": "ada"}, "AD"},
		{`{{name | replace:a:o}}`, map[string]any{"name": "ada"}, "odo"},
		{`{{name | length}}`, map[string]any{"name": "ada"}, "3"},
		{`{{ghost | default:fallback}}`, map[string]any{}, "fallback"},
		{`{{n | add:2}}`, map[string]any{"n": 40}, "42"},
		{`{{n | sub:2 | mod:5}}`, map[string]any{"n": 42}, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			if got := renderBody(t, tc.body, tc.data); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRender_MissingFilter(t *testing.T) {
	got := renderBody(t, `{{name | nosuchfilter}}`, map[string]any{"name": "x"})
	if !strings.Contains(got, `nosuchfilter`) || !strings.Contains(got, "<!--") {
		t.Errorf("expected an inline diagnostic comment, got %q", got)
	}
}

func TestRender_FilterError(t *testing.T) {
	// replace with too few arguments returns an error from the filter.
	got := renderBody(t, `{{name | replace:onlyone}}`, map[string]any{"name": "x"})
	if !strings.Contains(got, `filter "replace" failed`) {
		t.Errorf("expected a failed-filter diagnostic, got %q", got)
	}
}

func TestRender_Helper(t *testing.T) {
	got := renderBody(t, `{{concat "a b" name 3}}`, map[string]any{"name": "-c-"})
	if got != "a b-c-3" {
		t.Errorf("expected 'a b-c-3', got %q", got)
	}
}

func TestRender_HelperQuotedArgumentKeepsSpaces(t *testing.T) {
	got := renderBody(t, `{{repeat 'ab ' 2}}`, nil)
	if got != "ab ab " {
		t.Errorf("expected 'ab ab ', got %q", got)
	}
}

func TestRender_HelperOutputEscaped(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterHelper("danger", func(args ...any) (any, error) {
		return "<b>", nil
	})
	e.Store().Set("t", `{{danger "x"}}`)
	got := e.Render("t", nil)
	if got != "&lt;b&gt;" {
		t.Errorf("helper output must be escaped, got %q", got)
	}
}

func TestRender_MissingHelper(t *testing.T) {
	got := renderBody(t, `{{nosuchhelper "arg"}}`, nil)
	if !strings.Contains(got, `helper "nosuchhelper" not found`) {
		t.Errorf("expected a missing-helper diagnostic, got %q", got)
	}
}

func TestRender_HelperPanicContained(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterHelper("boom", func(args ...any) (any, error) {
		panic("kaboom")
	})
	e.Store().Set("t", `a{{boom "x"}}b`)
	got := e.Render("t", nil)
	if !strings.Contains(got, `helper "boom" failed`) {
		t.Errorf("expected a failed-helper diagnostic, got %q", got)
	}
	if !strings.HasPrefix(got, "a") || !strings.HasSuffix(got, "b") {
		t.Errorf("surrounding output should survive a helper panic, got %q", got)
	}
}

func TestRender_HelperError(t *testing.T) {
	got := renderBody(t, `{{repeat "x" "notanumber"}}`, nil)
	if !strings.Contains(got, `helper "repeat" failed`) {
		t.Errorf("expected a failed-helper diagnostic, got %q", got)
	}
}

func TestRender_Partial(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterPartial("greeting", `Hello {{name}}`)
	e.Store().Set("t", `<div>{{> greeting}}</div>`)
	got := e.Render("t", map[string]any{"name": "Ada"})
	if got != "<div>Hello Ada</div>" {
		t.Errorf("expected partial expansion, got %q", got)
	}
}

func TestRender_PartialFallsBackToStoredTemplate(t *testing.T) {
	e := newTestEngine(t)
	e.Store().Set("footer", `<footer>{{year}}</footer>`)
	e.Store().Set("t", `{{> footer}}`)
	got := e.Render("t", map[string]any{"year": 2026})
	if got != "<footer>2026</footer>" {
		t.Errorf("expected stored template as partial, got %q", got)
	}
}

func TestRender_PartialDefaultDataMerge(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterPartial("card", `{{title}}/{{subtitle}}`)
	e.SetDefaultData("card", map[string]any{"title": "default", "subtitle": "sub"})
	e.Store().Set("t", `{{> card}}`)
	// The current context wins on conflict.
	got := e.Render("t", map[string]any{"title": "mine"})
	if got != "mine/sub" {
		t.Errorf("expected caller data to win over partial defaults, got %q", got)
	}
}

func TestRender_MissingPartial(t *testing.T) {
	got := renderBody(t, `a{{> ghost}}b`, nil)
	if !strings.Contains(got, `partial "ghost" not found`) {
		t.Errorf("expected a missing-partial diagnostic, got %q", got)
	}
	if !strings.HasPrefix(got, "a") || !strings.HasSuffix(got, "b") {
		t.Errorf("rendering should continue around a missing partial, got %q", got)
	}
}

func TestRender_PartialInsideLoopSeesIterationContext(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterPartial("item", `<li>{{this}}@{{@index}}</li>`)
	e.Store().Set("t", `{{#each items}}{{> item}}{{/each}}`)
	got := e.Render("t", map[string]any{"items": []any{"a", "b"}})
	if got != "<li>a@0</li><li>b@1</li>" {
		t.Errorf("partial must see bound loop context, got %q", got)
	}
}

func TestRender_SelfIncludingPartialIsCapped(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterPartial("loop", `x{{> loop}}`)
	e.Store().Set("t", `{{> loop}}`)
	got := e.Render("t", nil)
	if !strings.Contains(got, "include depth exceeded") {
		t.Errorf("expected a depth cap diagnostic, got %q", got)
	}
	if len(got) > 4096 {
		t.Errorf("runaway partial recursion produced %d bytes", len(got))
	}
}

func TestRender_StrayMarkersDropped(t *testing.T) {
	got := renderBody(t, `a{{/each}}b{{else}}c{{/if}}d`, nil)
	if got != "abcd" {
		t.Errorf("stray close tags should be dropped, got %q", got)
	}
}

func TestRender_UnterminatedDirectiveStaysLiteral(t *testing.T) {
	got := renderBody(t, `a{{#each items}}no close`, map[string]any{"items": []any{1}})
	if !strings.Contains(got, "{{#each items}}") {
		t.Errorf("an unclosed directive should stay literal, got %q", got)
	}
}

func BenchmarkRender_CachedLoop(b *testing.B) {
	e := newTestEngine(b)
	e.Store().Set("bench", `{{#each items}}<li>{{name | upper}}</li>{{/each}}`)
	items := make([]any, 50)
	for i := range items {
		items[i] = map[string]any{"name": fmt.Sprintf("item-%d", i)}
	}
	data := map[string]any{"items": items}
	e.Render("bench", data)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Render("bench", data)
	}
}
