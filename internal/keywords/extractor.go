package keywords

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// Options configures an Extractor.
type Options struct {
	Tagger  Tagger
	Workers int
	Logger  *logrus.Logger
}

// Extractor keeps the nouns, adjectives and numerals of short texts such as wishlist items.
type Extractor struct {
	tagger    Tagger
	stopWords map[string]struct{}
	workers   int
	logger    *logrus.Logger
}

// NewExtractor builds an Extractor, defaulting to the prose tagger.
func NewExtractor(opts Options) (*Extractor, error) {
	tagger := opts.Tagger
	if tagger == nil {
		tagger = NewProseTagger()
	}

	workers := opts.Workers
	if workers < 0 {
		return nil, eris.Errorf("workers must not be negative, got %d", workers)
	}
	if workers == 0 {
		workers = defaultWorkers
	}

	return &Extractor{
		tagger:    tagger,
		stopWords: stopWordSet(englishStopWords),
		workers:   workers,
		logger:    opts.Logger,
	}, nil
}

// Extract returns the keywords of one sentence in their original order.
// The result is never nil so that it encodes as an empty JSON array.
func (e *Extractor) Extract(sentence string) ([]string, error) {
	tokens, err := e.tagger.Tokenize(strings.ToLower(sentence))
	if err != nil {
		return nil, err
	}

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !isAlphanumeric(token) {
			continue
		}
		if _, stop := e.stopWords[token]; stop {
			continue
		}
		filtered = append(filtered, token)
	}

	keywords := make([]string, 0, len(filtered))
	if len(filtered) == 0 {
		return keywords, nil
	}

	tagged, err := e.tagger.Tag(filtered)
	if err != nil {
		return nil, err
	}

	for _, word := range tagged {
		if isKeywordTag(word.Tag) {
			keywords = append(keywords, word.Word)
		}
	}

	return keywords, nil
}

// ExtractAll runs Extract for every item on a bounded pool of workers and
// returns the keywords keyed by item. Repeated items share one entry.
func (e *Extractor) ExtractAll(ctx context.Context, items []string) (map[string][]string, error) {
	results := make([][]string, len(items))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)

	for idx, item := range items {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			keywords, err := e.Extract(item)
			if err != nil {
				e.logWarn(logrus.Fields{"item": item}, err, "extracting keywords")
				return eris.Wrapf(err, "extracting keywords for item %d", idx)
			}

			results[idx] = keywords
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	keywords := make(map[string][]string, len(items))
	for idx, item := range items {
		keywords[item] = results[idx]
	}

	return keywords, nil
}

func (e *Extractor) logWarn(fields logrus.Fields, err error, message string) {
	if e.logger == nil {
		return
	}

	e.logger.WithField("error", err.Error()).WithFields(fields).Warn(message)
}

func isAlphanumeric(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}

func isKeywordTag(tag string) bool {
	return strings.HasPrefix(tag, "NN") || strings.HasPrefix(tag, "JJ") || tag == "CD"
}
