package keywords

import (
	"strings"
	"sync/atomic"

	"github.com/jdkato/prose/v2"
	"github.com/rotisserie/eris"
)

// TaggedWord pairs a token with its Penn Treebank part-of-speech tag.
type TaggedWord struct {
	Word string
	Tag  string
}

// Tagger splits text into tokens and assigns part-of-speech tags.
type Tagger interface {
	Tokenize(text string) ([]string, error)
	Tag(words []string) ([]TaggedWord, error)
}

// ProseTagger tokenizes and tags with prose's averaged perceptron model.
// The model is loaded by the first Tag call and shared by every later call.
type ProseTagger struct {
	model atomic.Pointer[prose.Model]
}

var _ Tagger = (*ProseTagger)(nil)

// NewProseTagger returns a tagger whose model is loaded lazily.
func NewProseTagger() *ProseTagger {
	return &ProseTagger{}
}

func (t *ProseTagger) Tokenize(text string) ([]string, error) {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, eris.Wrap(err, "tokenizing text")
	}

	tokens := doc.Tokens()
	words := make([]string, 0, len(tokens))
	for _, token := range tokens {
		words = append(words, token.Text)
	}
	return words, nil
}

// Tag tags the words as one sequence so that neighbouring words inform each tag.
func (t *ProseTagger) Tag(words []string) ([]TaggedWord, error) {
	if len(words) == 0 {
		return nil, nil
	}

	opts := []prose.DocOpt{
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	}
	if model := t.model.Load(); model != nil {
		opts = append(opts, prose.UsingModel(model))
	}

	doc, err := prose.NewDocument(strings.Join(words, " "), opts...)
	if err != nil {
		return nil, eris.Wrap(err, "tagging words")
	}
	if doc.Model != nil {
		t.model.CompareAndSwap(nil, doc.Model)
	}

	tokens := doc.Tokens()
	tagged := make([]TaggedWord, 0, len(tokens))
	for _, token := range tokens {
		tagged = append(tagged, TaggedWord{Word: token.Text, Tag: token.Tag})
	}
	return tagged, nil
}
