package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/mbeckett/TuneVault/pkg/logger"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/genai"
)

var log = logger.Get("Tagger")

const promptTemplate = `You are a music catalog assistant. Classify the song titled "%s".
Respond with ONLY a JSON object, no prose, using exactly these keys:
{"artist": string, "language": string, "genre": [string], "mood": [string], "occasion": [string], "era": [string], "vocal_instrument": [string]}

Every array value MUST be chosen from the following sets, verbatim:
genre: %s
mood: %s
occasion: %s
era: %s
vocal_instrument: %s
language MUST be one of: %s

Leave an array empty if no value applies. Do not invent values.`

type (
	Config struct {
		ApiKey string
		Model  string
	}

	// Result holds the classification for a single song title. The
	// per-category values are already normalized against the vocabulary.
	Result struct {
		Artist          string
		Language        string
		Genre           []string
		Mood            []string
		Occasion        []string
		Era             []string
		VocalInstrument []string
	}

	// responsePayload mirrors the JSON shape the model is instructed to emit.
	responsePayload struct {
		Artist          string   `mapstructure:"artist"`
		Language        string   `mapstructure:"language"`
		Genre           []string `mapstructure:"genre"`
		Mood            []string `mapstructure:"mood"`
		Occasion        []string `mapstructure:"occasion"`
		Era             []string `mapstructure:"era"`
		VocalInstrument []string `mapstructure:"vocal_instrument"`
	}

	// generator abstracts the model transport so the parsing/normalization
	// logic can be exercised against fixtures.
	generator interface {
		Generate(ctx context.Context, prompt string) (string, error)
	}

	geminiGenerator struct {
		config Config
	}

	tagger struct {
		generator generator
	}
)

// Tags flattens the per-category values in CategoryOrder. The result's
// Language field is intentionally not part of the sequence.
func (result *Result) Tags() []string {
	byCategory := map[Category][]string{
		Genre:           result.Genre,
		Mood:            result.Mood,
		Occasion:        result.Occasion,
		Era:             result.Era,
		VocalInstrument: result.VocalInstrument,
	}

	tags := make([]string, 0)
	for _, category := range CategoryOrder {
		tags = append(tags, byCategory[category]...)
	}

	return tags
}

func NewTagger(config Config) *tagger {
	return &tagger{generator: &geminiGenerator{config}}
}

// newTaggerWithGenerator exists for tests which substitute the model transport.
func newTaggerWithGenerator(gen generator) *tagger {
	return &tagger{generator: gen}
}

// TagTitle asks the model to classify the title provided, then parses and
// normalizes the response. The model's output is best-effort structured
// text; any payload which cannot be coerced in to the expected shape is
// rejected with a MalformedResponseError rather than partially applied.
func (t *tagger) TagTitle(ctx context.Context, title string) (*Result, error) {
	text, err := t.generator.Generate(ctx, buildPrompt(title))
	if err != nil {
		return nil, &GenerationError{err}
	}

	payload, err := parseResponse(text)
	if err != nil {
		return nil, err
	}

	language, ok := normalizeValue(Language, payload.Language)
	if !ok {
		// An off-vocabulary language is kept verbatim (lowercased) rather
		// than rejected; the language field is informational, unlike the
		// tag arrays which feed search.
		language = strings.ToLower(strings.TrimSpace(payload.Language))
	}

	result := &Result{
		Artist:          strings.TrimSpace(payload.Artist),
		Language:        language,
		Genre:           normalizeValues(Genre, payload.Genre),
		Mood:            normalizeValues(Mood, payload.Mood),
		Occasion:        normalizeValues(Occasion, payload.Occasion),
		Era:             normalizeValues(Era, payload.Era),
		VocalInstrument: normalizeValues(VocalInstrument, payload.VocalInstrument),
	}

	if result.Artist == "" {
		return nil, &MalformedResponseError{"payload is missing required 'artist' key"}
	}

	log.Debugf("Tagged %q as artist=%q language=%q tags=%v\n", title, result.Artist, result.Language, result.Tags())
	return result, nil
}

// parseResponse coerces the model's freeform response in to the expected
// payload. Markdown fencing and surrounding prose are stripped, and a
// repair pass is attempted before the payload is rejected outright.
func parseResponse(text string) (*responsePayload, error) {
	carved, err := carveJsonObject(text)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if jsonErr := json.Unmarshal([]byte(carved), &raw); jsonErr != nil {
		repaired, repairErr := jsonrepair.JSONRepair(carved)
		if repairErr != nil {
			return nil, &MalformedResponseError{fmt.Sprintf("not valid JSON (%s) and repair failed (%s)", jsonErr, repairErr)}
		}

		if jsonErr := json.Unmarshal([]byte(repaired), &raw); jsonErr != nil {
			return nil, &MalformedResponseError{fmt.Sprintf("repaired payload is still not valid JSON: %s", jsonErr)}
		}
	}

	var payload responsePayload
	if err := mapstructure.Decode(raw, &payload); err != nil {
		return nil, &MalformedResponseError{fmt.Sprintf("payload shape mismatch: %s", err)}
	}

	return &payload, nil
}

// carveJsonObject extracts the outermost JSON object from a response that
// may be wrapped in markdown fences or surrounded by prose.
func carveJsonObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", &MalformedResponseError{"response contains no JSON object"}
	}

	return text[start : end+1], nil
}

func buildPrompt(title string) string {
	return fmt.Sprintf(promptTemplate,
		title,
		strings.Join(Values(Genre), ", "),
		strings.Join(Values(Mood), ", "),
		strings.Join(Values(Occasion), ", "),
		strings.Join(Values(Era), ", "),
		strings.Join(Values(VocalInstrument), ", "),
		strings.Join(Values(Language), ", "),
	)
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: g.config.ApiKey})
	if err != nil {
		return "", err
	}

	response, err := client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}

	text := response.Text()
	if text == "" {
		return "", fmt.Errorf("no content returned from model %s", g.config.Model)
	}

	return text, nil
}
