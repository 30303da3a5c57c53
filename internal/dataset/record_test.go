package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	records := []Record{NewRecord("first"), NewRecord("line one\nline two <b>")}

	require.NoError(t, WriteJSONL(&buf, records))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"section_title":"RAG Post","content":"first"}`, lines[0])
	assert.Equal(t, `{"section_title":"RAG Post","content":"line one\nline two <b>"}`, lines[1])
}

func TestBundleFiles(t *testing.T) {
	bundle := Bundle{Test: []Record{NewRecord("only")}}

	splits := bundle.Splits()
	assert.NotNil(t, splits[SplitTrain])
	assert.Empty(t, splits[SplitTrain])
	assert.Len(t, splits[SplitTest], 1)
	assert.False(t, bundle.Empty())

	files, err := bundle.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "data/train.jsonl", files[0].Path)
	assert.Empty(t, files[0].Content)
	assert.Equal(t, "data/test.jsonl", files[1].Path)
	assert.Equal(t, "{\"section_title\":\"RAG Post\",\"content\":\"only\"}\n", string(files[1].Content))
}

func TestBuildCard(t *testing.T) {
	bundle := Bundle{
		Train: []Record{NewRecord("a"), NewRecord("b")},
		Test:  []Record{NewRecord("c")},
	}

	card, err := BuildCard("owner/rag", bundle)
	require.NoError(t, err)

	readme := card.String()
	assert.True(t, strings.HasPrefix(readme, "---\nconfigs:\n"))
	assert.Contains(t, readme, "path: data/train.jsonl")
	assert.Contains(t, readme, "path: data/test.jsonl")
	assert.Contains(t, readme, "num_examples: 2")
	assert.Contains(t, readme, "num_examples: 1")
	assert.Contains(t, readme, "# owner/rag")

	html := RenderCardHTML(card)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "owner/rag")
	assert.Contains(t, html, "<table>")
}

func TestValidateRepoID(t *testing.T) {
	valid := []string{"owner/rag", "Falah/rag", "my-org/data.set_v2"}
	for _, id := range valid {
		assert.NoError(t, ValidateRepoID(id), id)
	}

	invalid := []string{"", "rag", "owner/", "/rag", "a/b/c", "owner/ra g", "owner/-rag", "own..er/rag"}
	for _, id := range invalid {
		assert.ErrorIs(t, ValidateRepoID(id), ErrInvalidRepoID, id)
	}

	owner, name := SplitRepoID("owner/rag")
	assert.Equal(t, "owner", owner)
	assert.Equal(t, "rag", name)
}

func TestRegisterValidations(t *testing.T) {
	type target struct {
		Repo string `validate:"required,repoid"`
	}

	v := validator.New()
	require.NoError(t, RegisterValidations(v))

	assert.NoError(t, v.Struct(target{Repo: "owner/rag"}))
	assert.Error(t, v.Struct(target{Repo: "not-a-repo"}))
	assert.Error(t, NewValidator().Struct(target{}))
}
