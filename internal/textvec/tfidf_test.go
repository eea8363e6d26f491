package textvec

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
func near(a, b float64) bool  { return math.Abs(a-b) < 1e-9 }

func testParams() Params {
	return Params{
		Type: "tfidf",
		Vocabulary: map[string]int{
			"breaking": 0,
			"news":     1,
			"shocking": 2,
			"senate":   3,
		},
		IDF: []float64{1, 1, 2, 1.5},
	}
}

func TestWordTokensMatchesSklearnDefault(t *testing.T) {
	got := wordTokens("A U.S. senator's vote: 52-48, über_cool café")
	want := []string{"senator", "vote", "52", "48", "über_cool", "café"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestTransformSingleDocument(t *testing.T) {
	vec, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if vec.Dim() != 4 {
		t.Fatalf("expected dim 4, got %d", vec.Dim())
	}

	out, err := vec.Transform([]string{"Breaking NEWS: shocking news from nowhere"})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one vector, got %d", len(out))
	}
	v := out[0]
	if !reflect.DeepEqual(v.Indices, []int{0, 1, 2}) {
		t.Fatalf("unexpected indices %v", v.Indices)
	}

	// raw weights: breaking=1*1, news=2*1, shocking=1*2 → l2 norm = 3
	want := []float64{1.0 / 3, 2.0 / 3, 2.0 / 3}
	for i := range want {
		if !near(v.Values[i], want[i]) {
			t.Fatalf("value %d: expected %v, got %v", i, want[i], v.Values[i])
		}
	}
}

func TestTransformUnknownTermsGiveZeroVector(t *testing.T) {
	vec, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := vec.Transform([]string{"nothing in the vocabulary here"})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if out[0].NNZ() != 0 || out[0].Dim != 4 {
		t.Fatalf("expected empty vector of dim 4, got %+v", out[0])
	}
}

func TestTransformIsDeterministic(t *testing.T) {
	vec, err := New(testParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	doc := "senate passes shocking breaking news bill"
	a, _ := vec.Transform([]string{doc})
	b, _ := vec.Transform([]string{doc})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical vectors, got %+v and %+v", a, b)
	}
}

func TestNgramsAndStopWords(t *testing.T) {
	p := Params{
		Vocabulary:  map[string]int{"fake": 0, "news": 1, "fake news": 2, "the": 3},
		NgramRange:  []int{1, 2},
		StopWords:   []string{"THE"},
		UseIDF:      boolPtr(false),
		Norm:        strPtr("none"),
		SublinearTF: true,
	}
	vec, err := New(p)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := vec.Transform([]string{"The fake news, the FAKE news"})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	v := out[0]
	if !reflect.DeepEqual(v.Indices, []int{0, 1, 2}) {
		t.Fatalf("expected stop word dropped, got indices %v", v.Indices)
	}
	// every term appears twice; sublinear tf = 1 + ln 2
	for i, got := range v.Values {
		if !near(got, 1+math.Log(2)) {
			t.Fatalf("value %d: expected %v, got %v", i, 1+math.Log(2), got)
		}
	}
}

func TestCustomTokenPattern(t *testing.T) {
	p := testParams()
	p.TokenPattern = `(?u)[a-z]+`
	vec, err := New(p)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, _ := vec.Transform([]string{"news123news"})
	if out[0].NNZ() != 1 || out[0].Indices[0] != 1 {
		t.Fatalf("expected only news to match, got %+v", out[0])
	}
}

func TestNewRejectsCorruptParams(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
		want   string
	}{
		{"empty vocabulary", func(p *Params) { p.Vocabulary = nil }, "vocabulary"},
		{"index out of range", func(p *Params) { p.Vocabulary["extra"] = 9 }, "out of range"},
		{"duplicate index", func(p *Params) { p.Vocabulary["senate"] = 0 }, "more than one"},
		{"idf length", func(p *Params) { p.IDF = p.IDF[:2] }, "idf"},
		{"negative idf", func(p *Params) { p.IDF[1] = -1 }, "invalid"},
		{"bad ngram", func(p *Params) { p.NgramRange = []int{2, 1} }, "ngram_range"},
		{"bad norm", func(p *Params) { p.Norm = strPtr("max") }, "norm"},
		{"bad type", func(p *Params) { p.Type = "word2vec" }, "unsupported"},
		{"bad pattern", func(p *Params) { p.TokenPattern = "([" }, "token_pattern"},
		{"not boundary", func(p *Params) { p.TokenPattern = `\Bnews` }, "token_pattern"},
		{"inner boundary", func(p *Params) { p.TokenPattern = `\w+\b\w+` }, "token_pattern"},
		{"boundary with alternation", func(p *Params) { p.TokenPattern = `\bnews|fake\b` }, "token_pattern"},
		{"negated class in class", func(p *Params) { p.TokenPattern = `[\W]+` }, "token_pattern"},
		{"bad analyzer", func(p *Params) { p.Analyzer = "ngram" }, "analyzer"},
		{"bad strip_accents", func(p *Params) { p.StripAccents = strPtr("latin") }, "strip_accents"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := testParams()
			tc.mutate(&p)
			_, err := New(p)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", err.Error(), tc.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectorizer.json")
	body := `{"type":"tfidf","vocabulary":{"news":0,"fake":1},"idf":[1.2,2.5],"norm":"l2"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	vec, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if vec.Dim() != 2 {
		t.Fatalf("expected dim 2, got %d", vec.Dim())
	}

	if err := os.WriteFile(path, []byte(`{"vocabulary":`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected decode error for truncated artifact")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing artifact")
	}
}

func TestVectorHelpers(t *testing.T) {
	v := Vector{Dim: 4, Indices: []int{1, 3}, Values: []float64{0.5, 2}}
	if got := v.Dense(); !reflect.DeepEqual(got, []float64{0, 0.5, 0, 2}) {
		t.Fatalf("unexpected dense %v", got)
	}
	dot, err := v.Dot([]float64{1, 2, 3, 4})
	if err != nil || !near(dot, 9) {
		t.Fatalf("expected dot 9, got %v (err %v)", dot, err)
	}
	if _, err := v.Dot([]float64{1}); err == nil {
		t.Fatalf("expected dimension error")
	}
	buf := []float32{9, 9, 9, 9}
	if err := v.DenseFloat32(buf); err != nil {
		t.Fatalf("dense32: %v", err)
	}
	if !reflect.DeepEqual(buf, []float32{0, 0.5, 0, 2}) {
		t.Fatalf("unexpected dense32 %v", buf)
	}
}

func TestCustomTokenPatternIsUnicodeAware(t *testing.T) {
	cases := []struct {
		pattern string
		doc     string
		want    []string
	}{
		{`(?u)\b\w+\b`, "café über", []string{"café", "über"}},
		{`(?u)\b\w\w+\b`, "a naïve 42", []string{"naïve", "42"}},
		{`\b[a-z]+\b`, "news café x", []string{"news", "x"}},
		{`(?u)\d+`, "٣٤ and 12", []string{"٣٤", "12"}},
		{`[^\s]+`, "one\u00a0two\x1cthree", []string{"one", "two", "three"}},
		{`(?u)\S+`, "fake\u2003news", []string{"fake", "news"}},
	}
	for _, tc := range cases {
		t.Run(tc.pattern, func(t *testing.T) {
			p := testParams()
			p.TokenPattern = tc.pattern
			vec, err := New(p)
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if got := vec.terms(tc.doc); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectorizer.json")
	body := `{"vocabulary":{"news":0},"idf":[1],"max_features":5000}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "max_features") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestLoadNullNormSkipsNormalization(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectorizer.json")
	body := `{"vocabulary":{"news":0,"fake":1},"idf":[1,2],"norm":null}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	vec, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out, _ := vec.Transform([]string{"fake fake news"})
	// raw weights: news=1*1, fake=2*2
	if want := []float64{1, 4}; !reflect.DeepEqual(out[0].Values, want) {
		t.Fatalf("expected unnormalized %v, got %v", want, out[0].Values)
	}
}

func TestBinaryTermFrequency(t *testing.T) {
	p := testParams()
	p.Binary = true
	p.UseIDF = boolPtr(false)
	p.Norm = strPtr("none")
	vec, err := New(p)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, _ := vec.Transform([]string{"news news news breaking"})
	if want := []float64{1, 1}; !reflect.DeepEqual(out[0].Values, want) {
		t.Fatalf("expected binary weights %v, got %v", want, out[0].Values)
	}
}

func TestStripAccents(t *testing.T) {
	for _, mode := range []string{"unicode", "ascii"} {
		t.Run(mode, func(t *testing.T) {
			vec, err := New(Params{
				Vocabulary:   map[string]int{"cafe": 0, "uber": 1},
				StripAccents: strPtr(mode),
				UseIDF:       boolPtr(false),
				Norm:         strPtr("none"),
			})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if got, want := vec.terms("Café Über"), []string{"cafe", "uber"}; !reflect.DeepEqual(got, want) {
				t.Fatalf("expected %q, got %q", want, got)
			}
		})
	}
	if got := stripAccentsASCII("ﬁ naïve 東京"); got != "fi naive " {
		t.Fatalf("expected non-ASCII runes dropped, got %q", got)
	}
}

func TestCharAnalyzers(t *testing.T) {
	char, err := New(Params{Vocabulary: map[string]int{"ab": 0}, Analyzer: "char", NgramRange: []int{2, 2}, UseIDF: boolPtr(false)})
	if err != nil {
		t.Fatalf("new char: %v", err)
	}
	if got, want := char.terms("Ab  c"), []string{"ab", "b ", " c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("char: expected %q, got %q", want, got)
	}

	wb, err := New(Params{Vocabulary: map[string]int{"ab": 0}, Analyzer: "char_wb", NgramRange: []int{2, 3}, UseIDF: boolPtr(false)})
	if err != nil {
		t.Fatalf("new char_wb: %v", err)
	}
	if got, want := wb.terms("ab"), []string{" a", "ab", "b ", " ab", "ab "}; !reflect.DeepEqual(got, want) {
		t.Fatalf("char_wb: expected %q, got %q", want, got)
	}

	short, err := New(Params{Vocabulary: map[string]int{" a ": 0}, Analyzer: "char_wb", NgramRange: []int{3, 4}, UseIDF: boolPtr(false)})
	if err != nil {
		t.Fatalf("new short char_wb: %v", err)
	}
	if got, want := short.terms("a"), []string{" a "}; !reflect.DeepEqual(got, want) {
		t.Fatalf("char_wb short word: expected %q, got %q", want, got)
	}
}

func TestLoadHonoursAnalyzerOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectorizer.json")
	body := `{"binary":true,"strip_accents":"unicode","analyzer":"char_wb","ngram_range":[4,4],` +
		`"norm":null,"use_idf":false,"vocabulary":{"cafe":0,"news":1}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	vec, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out, _ := vec.Transform([]string{"Café café NEWS"})
	if !reflect.DeepEqual(out[0].Indices, []int{0, 1}) || !reflect.DeepEqual(out[0].Values, []float64{1, 1}) {
		t.Fatalf("expected binary unnormalized hits on both terms, got %+v", out[0])
	}
}

func TestIsSpaceCoversSeparators(t *testing.T) {
	for _, r := range []rune{' ', '\t', '\v', 0x1c, 0x1d, 0x1e, 0x1f, 0x85, 0xa0, 0x2003} {
		if !IsSpace(r) {
			t.Fatalf("expected %U to be whitespace", r)
		}
	}
	if IsSpace('x') || IsSpace(0x200b) {
		t.Fatalf("expected letters and zero width space not to be whitespace")
	}
}
