package prompt

import (
	"fmt"
	"strings"
)

const (
	// PriorityStatement is included verbatim in every prompt.
	PriorityStatement = "A prioridade das informações são: query=1, chunks=2, historico=3."

	// InsufficientKnowledgeInstruction tells the model to admit missing
	// knowledge instead of inventing an answer.
	InsufficientKnowledgeInstruction = "Se por acaso o conhecimento não for suficiente para responder a query, " +
		"responda apenas que não temos conhecimento suficiente para responder a Pergunta."

	// ChunkHeader opens the chunks section.
	ChunkHeader = "Conhecimento\n------------------------\n\n"

	// ChunkSeparator sits between consecutive chunks.
	ChunkSeparator = "\n\n------------------------\n\n"

	// NoChunksText stands in for an empty retrieval.
	NoChunksText = "Nenhum conhecimento recuperado."
)

// Template fixes the response language and format requested from the model.
type Template struct {
	// Language is the response language, e.g. "pt-br".
	Language string `yaml:"language" toml:"language"`
	// Format is the response format, e.g. "markdown".
	Format string `yaml:"format" toml:"format"`
}

// DefaultTemplate asks for Brazilian Portuguese markdown.
var DefaultTemplate = Template{Language: "pt-br", Format: "markdown"}

// Validate rejects a template with blank fields.
func (t Template) Validate() error {
	if strings.TrimSpace(t.Language) == "" {
		return fmt.Errorf("prompt: language must not be empty")
	}
	if strings.TrimSpace(t.Format) == "" {
		return fmt.Errorf("prompt: format must not be empty")
	}
	return nil
}

// Compose assembles the preamble, the chunks, the query and the rendered
// history into one prompt. historyText is normally the output of
// BuildWindow; an empty string renders NoHistoryText.
func (t Template) Compose(query string, chunks []string, historyText string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Responda em %s e em %s, a query do usuário delimitada por <query>\n", t.Language, t.Format)
	b.WriteString("usando apenas o conhecimento dos chunks delimitados por <chunks>\n")
	b.WriteString("e tenha em mente o historico das conversas anteriores delimitado por <historico>.\n")
	b.WriteString("Combine as informações para responder a query de forma unificada.\n")
	b.WriteString(PriorityStatement)
	b.WriteString("\n\n")
	b.WriteString(InsufficientKnowledgeInstruction)
	b.WriteString("\n\n")

	b.WriteString("<chunks>\n")
	b.WriteString(ChunkHeader)
	if len(chunks) == 0 {
		b.WriteString(NoChunksText)
	} else {
		b.WriteString(strings.Join(chunks, ChunkSeparator))
	}
	b.WriteString("\n</chunks>\n\n")

	b.WriteString("<query>")
	b.WriteString(query)
	b.WriteString("</query>\n\n")

	if strings.TrimSpace(historyText) == "" {
		historyText = NoHistoryText
	}
	b.WriteString("<historico>\n")
	b.WriteString(historyText)
	b.WriteString("\n</historico>\n")

	return b.String()
}

// Compose renders with DefaultTemplate.
func Compose(query string, chunks []string, historyText string) string {
	return DefaultTemplate.Compose(query, chunks, historyText)
}
