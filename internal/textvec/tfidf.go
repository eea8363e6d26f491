package textvec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// sklearnTokenPattern is the default token pattern of scikit-learn text vectorizers.
// It is served by the built-in word tokenizer instead of a regexp.
const sklearnTokenPattern = `(?u)\b\w\w+\b`

const (
	analyzerWord   = "word"
	analyzerChar   = "char"
	analyzerCharWB = "char_wb"
)

// Vectorizer turns documents into fixed-dimension feature vectors.
type Vectorizer interface {
	Transform(docs []string) ([]Vector, error)
	Dim() int
}

// Params mirrors vectorizer.json. Unknown keys are rejected by Load.
// A JSON null norm disables normalization, like norm=None in scikit-learn.
type Params struct {
	Type         string         `json:"type"`
	Analyzer     string         `json:"analyzer,omitempty"`
	Lowercase    *bool          `json:"lowercase,omitempty"`
	StripAccents *string        `json:"strip_accents,omitempty"`
	TokenPattern string         `json:"token_pattern,omitempty"`
	NgramRange   []int          `json:"ngram_range,omitempty"`
	StopWords    []string       `json:"stop_words,omitempty"`
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf,omitempty"`
	UseIDF       *bool          `json:"use_idf,omitempty"`
	SmoothIDF    *bool          `json:"smooth_idf,omitempty"`
	SublinearTF  bool           `json:"sublinear_tf,omitempty"`
	Binary       bool           `json:"binary,omitempty"`
	Norm         *string        `json:"norm,omitempty"`
}

// TFIDF is a fitted term-frequency / inverse-document-frequency vectorizer.
// It is immutable after construction and safe for concurrent use.
type TFIDF struct {
	analyzer    string
	lowercase   bool
	accents     func(string) string // nil keeps accents
	pattern     *tokenPattern       // nil selects the built-in word tokenizer
	minN, maxN  int
	stopWords   map[string]struct{}
	vocab       map[string]int
	idf         []float64
	useIDF      bool
	sublinearTF bool
	binary      bool
	norm        string
	dim         int
}

// Load reads a TF-IDF vectorizer from a JSON artifact.
func Load(path string) (*TFIDF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vectorizer: %w", err)
	}
	var p Params
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode vectorizer: %w", err)
	}

	// A null norm decodes to nil, which would otherwise select the l2 default.
	var raw struct {
		Norm json.RawMessage `json:"norm"`
	}
	if err := json.Unmarshal(data, &raw); err == nil && string(bytes.TrimSpace(raw.Norm)) == "null" {
		none := "none"
		p.Norm = &none
	}
	return New(p)
}

// New validates params and builds the vectorizer.
func New(p Params) (*TFIDF, error) {
	if t := strings.ToLower(strings.TrimSpace(p.Type)); t != "" && t != "tfidf" {
		return nil, fmt.Errorf("unsupported vectorizer type %q", p.Type)
	}
	if len(p.Vocabulary) == 0 {
		return nil, errors.New("vectorizer vocabulary is empty")
	}

	dim := len(p.Vocabulary)
	seen := make([]bool, dim)
	vocab := make(map[string]int, dim)
	for term, idx := range p.Vocabulary {
		if idx < 0 || idx >= dim {
			return nil, fmt.Errorf("vocabulary index %d for %q out of range [0,%d)", idx, term, dim)
		}
		if seen[idx] {
			return nil, fmt.Errorf("vocabulary index %d assigned to more than one term", idx)
		}
		seen[idx] = true
		vocab[term] = idx
	}

	useIDF := p.UseIDF == nil || *p.UseIDF
	var idf []float64
	if useIDF {
		if len(p.IDF) != dim {
			return nil, fmt.Errorf("idf has %d weights, vocabulary has %d terms", len(p.IDF), dim)
		}
		for i, w := range p.IDF {
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				return nil, fmt.Errorf("idf weight %d is invalid: %v", i, w)
			}
		}
		idf = append([]float64(nil), p.IDF...)
	}

	minN, maxN := 1, 1
	if len(p.NgramRange) > 0 {
		if len(p.NgramRange) != 2 {
			return nil, fmt.Errorf("ngram_range must have two values, got %d", len(p.NgramRange))
		}
		minN, maxN = p.NgramRange[0], p.NgramRange[1]
		if minN < 1 || maxN < minN {
			return nil, fmt.Errorf("invalid ngram_range [%d,%d]", minN, maxN)
		}
	}

	normName := "l2"
	if p.Norm != nil {
		normName = strings.ToLower(strings.TrimSpace(*p.Norm))
	}
	switch normName {
	case "l1", "l2", "", "none":
	default:
		return nil, fmt.Errorf("unsupported norm %q", normName)
	}
	if normName == "none" {
		normName = ""
	}

	analyzer := strings.ToLower(strings.TrimSpace(p.Analyzer))
	switch analyzer {
	case "":
		analyzer = analyzerWord
	case analyzerWord, analyzerChar, analyzerCharWB:
	default:
		return nil, fmt.Errorf("unsupported analyzer %q", p.Analyzer)
	}

	var accents func(string) string
	if p.StripAccents != nil {
		switch strings.ToLower(strings.TrimSpace(*p.StripAccents)) {
		case "unicode":
			accents = stripAccentsUnicode
		case "ascii":
			accents = stripAccentsASCII
		default:
			return nil, fmt.Errorf("unsupported strip_accents %q", *p.StripAccents)
		}
	}

	var pattern *tokenPattern
	if tp := strings.TrimSpace(p.TokenPattern); analyzer == analyzerWord && tp != "" && tp != sklearnTokenPattern {
		tok, err := compileTokenPattern(tp)
		if err != nil {
			return nil, fmt.Errorf("compile token_pattern: %w", err)
		}
		pattern = tok
	}

	lowercase := p.Lowercase == nil || *p.Lowercase
	stop := make(map[string]struct{}, len(p.StopWords))
	for _, w := range p.StopWords {
		if lowercase {
			w = strings.ToLower(w)
		}
		stop[w] = struct{}{}
	}

	return &TFIDF{
		analyzer:    analyzer,
		lowercase:   lowercase,
		accents:     accents,
		pattern:     pattern,
		minN:        minN,
		maxN:        maxN,
		stopWords:   stop,
		vocab:       vocab,
		idf:         idf,
		useIDF:      useIDF,
		sublinearTF: p.SublinearTF,
		binary:      p.Binary,
		norm:        normName,
		dim:         dim,
	}, nil
}

// Dim is the vocabulary size, i.e. the length of every produced vector.
func (t *TFIDF) Dim() int {
	if t == nil {
		return 0
	}
	return t.dim
}

// Transform vectorizes each document. The result has one vector per input, in order.
func (t *TFIDF) Transform(docs []string) ([]Vector, error) {
	if t == nil || t.vocab == nil {
		return nil, errors.New("vectorizer not initialized")
	}
	out := make([]Vector, 0, len(docs))
	for _, doc := range docs {
		out = append(out, t.transformOne(doc))
	}
	return out, nil
}

func (t *TFIDF) transformOne(doc string) Vector {
	counts := make(map[int]float64)
	for _, term := range t.terms(doc) {
		if idx, ok := t.vocab[term]; ok {
			counts[idx]++
		}
	}

	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	for i, idx := range indices {
		tf := counts[idx]
		if t.binary {
			tf = 1
		}
		if t.sublinearTF {
			tf = 1 + math.Log(tf)
		}
		if t.useIDF {
			tf *= t.idf[idx]
		}
		values[i] = tf
	}

	normalize(values, t.norm)
	return Vector{Dim: t.dim, Indices: indices, Values: values}
}

// terms produces the analyzed term sequence. The word analyzer drops stop words
// before building n-grams; the char analyzers ignore stop words and token_pattern.
func (t *TFIDF) terms(doc string) []string {
	if t.lowercase {
		doc = strings.ToLower(doc)
	}
	if t.accents != nil {
		doc = t.accents(doc)
	}

	switch t.analyzer {
	case analyzerChar:
		return charNgrams(doc, t.minN, t.maxN)
	case analyzerCharWB:
		return charWBNgrams(doc, t.minN, t.maxN)
	}

	var tokens []string
	if t.pattern != nil {
		tokens = t.pattern.findAll(doc)
	} else {
		tokens = wordTokens(doc)
	}

	if len(t.stopWords) > 0 {
		kept := tokens[:0]
		for _, tok := range tokens {
			if _, stop := t.stopWords[tok]; !stop {
				kept = append(kept, tok)
			}
		}
		tokens = kept
	}

	if t.minN == 1 && t.maxN == 1 {
		return tokens
	}

	var terms []string
	if t.minN == 1 {
		terms = append(terms, tokens...)
	}
	start := t.minN
	if start < 2 {
		start = 2
	}
	for n := start; n <= t.maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// wordTokens returns runs of two or more word characters (letters, numbers, underscore).
func wordTokens(s string) []string {
	var tokens []string
	start := -1
	runes := 0
	for i, r := range s {
		if isWordRune(r) {
			if start < 0 {
				start = i
				runes = 0
			}
			runes++
			continue
		}
		if start >= 0 && runes >= 2 {
			tokens = append(tokens, s[start:i])
		}
		start = -1
	}
	if start >= 0 && runes >= 2 {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

func normalize(values []float64, norm string) {
	var total float64
	switch norm {
	case "l2":
		for _, v := range values {
			total += v * v
		}
		total = math.Sqrt(total)
	case "l1":
		for _, v := range values {
			total += math.Abs(v)
		}
	default:
		return
	}
	if total == 0 {
		return
	}
	for i := range values {
		values[i] /= total
	}
}
