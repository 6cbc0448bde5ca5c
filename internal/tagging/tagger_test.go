package tagging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	response string
	err      error
	prompt   string
}

func (stub *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	stub.prompt = prompt
	return stub.response, stub.err
}

func tagWith(t *testing.T, response string) (*Result, error) {
	t.Helper()
	return newTaggerWithGenerator(&stubGenerator{response: response}).TagTitle(context.Background(), "Test Song")
}

func Test_TagTitle_ParsesWellFormedResponse(t *testing.T) {
	result, err := tagWith(t, `{"artist": "X", "language": "english", "genre": ["pop"], "mood": ["happy"], "occasion": [], "era": [], "vocal_instrument": []}`)
	require.NoError(t, err)

	assert.Equal(t, "X", result.Artist)
	assert.Equal(t, "english", result.Language)
	assert.Equal(t, []string{"pop", "happy"}, result.Tags())
}

func Test_TagTitle_StripsMarkdownFences(t *testing.T) {
	result, err := tagWith(t, "```json\n{\"artist\": \"X\", \"language\": \"hindi\", \"genre\": [\"rock\"], \"mood\": [], \"occasion\": [], \"era\": [], \"vocal_instrument\": []}\n```")
	require.NoError(t, err)

	assert.Equal(t, "hindi", result.Language)
	assert.Equal(t, []string{"rock"}, result.Tags())
}

func Test_TagTitle_CarvesObjectFromSurroundingProse(t *testing.T) {
	result, err := tagWith(t, `Sure! Here is the classification you asked for:
{"artist": "X", "language": "english", "genre": ["jazz"], "mood": [], "occasion": [], "era": [], "vocal_instrument": []}
Let me know if you need anything else.`)
	require.NoError(t, err)

	assert.Equal(t, []string{"jazz"}, result.Tags())
}

func Test_TagTitle_RepairsSlightlyBrokenJson(t *testing.T) {
	// Trailing comma; invalid JSON, but models emit it regardless.
	result, err := tagWith(t, `{"artist": "X", "language": "english", "genre": ["pop",], "mood": [], "occasion": [], "era": [], "vocal_instrument": []}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"pop"}, result.Tags())
}

func Test_TagTitle_FlattensTagsInCategoryOrder(t *testing.T) {
	result, err := tagWith(t, `{
		"artist": "X", "language": "english",
		"vocal_instrument": ["female vocals"],
		"era": ["1990s"],
		"occasion": ["party"],
		"mood": ["happy", "energetic"],
		"genre": ["pop", "dance"]
	}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"pop", "dance", "happy", "energetic", "party", "1990s", "female vocals"}, result.Tags())
}

func Test_TagTitle_LanguageIsNotATag(t *testing.T) {
	result, err := tagWith(t, `{"artist": "X", "language": "english", "genre": ["pop"], "mood": [], "occasion": [], "era": [], "vocal_instrument": []}`)
	require.NoError(t, err)

	assert.NotContains(t, result.Tags(), "english")
}

func Test_TagTitle_NormalizesNearMissValues(t *testing.T) {
	result, err := tagWith(t, `{"artist": "X", "language": "English", "genre": ["Pop"], "mood": ["Happy "], "occasion": [], "era": [], "vocal_instrument": []}`)
	require.NoError(t, err)

	assert.Equal(t, "english", result.Language)
	assert.Equal(t, []string{"pop", "happy"}, result.Tags())
}

func Test_TagTitle_DropsOffVocabularyTags(t *testing.T) {
	result, err := tagWith(t, `{"artist": "X", "language": "english", "genre": ["pop", "vaporwave-polka"], "mood": [], "occasion": [], "era": [], "vocal_instrument": []}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"pop"}, result.Tags())
}

func Test_TagTitle_KeepsOffVocabularyLanguageVerbatim(t *testing.T) {
	result, err := tagWith(t, `{"artist": "X", "language": "Swahili", "genre": [], "mood": [], "occasion": [], "era": [], "vocal_instrument": []}`)
	require.NoError(t, err)

	assert.Equal(t, "swahili", result.Language)
}

func Test_TagTitle_RejectsNonJsonResponse(t *testing.T) {
	_, err := tagWith(t, "I am sorry, I cannot classify this song.")
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func Test_TagTitle_RejectsMissingArtist(t *testing.T) {
	_, err := tagWith(t, `{"language": "english", "genre": ["pop"], "mood": [], "occasion": [], "era": [], "vocal_instrument": []}`)
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func Test_TagTitle_WrapsGenerationFailure(t *testing.T) {
	tagger := newTaggerWithGenerator(&stubGenerator{err: errors.New("model unavailable")})
	_, err := tagger.TagTitle(context.Background(), "Test Song")

	var genErr *GenerationError
	assert.ErrorAs(t, err, &genErr)
}

func Test_TagTitle_PromptCarriesTitleAndVocabulary(t *testing.T) {
	stub := &stubGenerator{response: `{"artist": "X", "language": "english", "genre": [], "mood": [], "occasion": [], "era": [], "vocal_instrument": []}`}
	_, err := newTaggerWithGenerator(stub).TagTitle(context.Background(), "Bohemian Rhapsody")
	require.NoError(t, err)

	assert.Contains(t, stub.prompt, "Bohemian Rhapsody")
	for _, category := range CategoryOrder {
		for _, value := range Values(category) {
			assert.Contains(t, stub.prompt, value)
		}
	}
}
