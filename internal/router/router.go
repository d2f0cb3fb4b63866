// Package router picks the dataset a query should be answered from by asking
// a chat model for a JSON decision.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/raglab-go/internal/logging"
)

const systemPrompt = "Você é um especialista em recuperação de informação e agente RAG. " +
	"Sua função é interpretar a solicitação e determinar de forma precisa qual " +
	"dataset de conhecimento deve ser consultado."

const taskTemplate = `Com base na solicitação do usuário "%s" e na lista de datasets abaixo, escolha o mais apropriado.

Datasets disponíveis:
%s
Eu quero como saída um JSON com as seguintes informações do dataset escolhido:
- dataset_name: O nome exato do dataset
- locale: O locale do dataset (en ou pt-br)
- query: A query original, traduzida para o locale do dataset se necessário

Exemplo de saída:
{"dataset_name": "direito_constitucional", "locale": "pt-br", "query": "O que é direito constitucional fala do abandono afetivo?"}

É IMPERATIVO:
- Retorne APENAS o objeto JSON, sem nenhum texto adicional, explicação ou formatação markdown
- Não adicione ` + "```json ou ```" + ` envolvendo a resposta
- Não adicione caracteres especiais ou caracteres de escape
- Não escreva nada além do JSON de resposta
`

// Router asks a chat model to choose a dataset from its catalog.
type Router struct {
	model    model.BaseChatModel
	datasets []Dataset
}

// New returns a Router over cfg's catalog.
func New(m model.BaseChatModel, cfg Config) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Router{model: m, datasets: cfg.Datasets}, nil
}

// Datasets returns the routing catalog.
func (r *Router) Datasets() []Dataset {
	out := make([]Dataset, len(r.datasets))
	copy(out, r.datasets)
	return out
}

// Messages returns the conversation sent to the model for query.
func (r *Router) Messages(query string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf(taskTemplate, query, describe(r.datasets))),
	}
}

// Route returns the model's decision for query. On model failure or
// unusable output the decision is nil and the error says why; a nil
// decision means "route not determined".
func (r *Router) Route(ctx context.Context, query string) (*RouteDecision, error) {
	log := logging.FromContext(ctx)

	out, err := r.model.Generate(ctx, r.Messages(query))
	if err != nil {
		log.Error("router: model call failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("router: generate: %w", err)
	}

	decision, err := parseDecision(out.Content, r.datasets)
	if err != nil {
		log.Warn("router: could not parse decision",
			slog.String("raw", clip(out.Content, maxLoggedRunes)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	log.Info("router: dataset selected",
		slog.String("dataset", decision.Dataset),
		slog.String("locale", decision.Locale),
	)
	return decision, nil
}
