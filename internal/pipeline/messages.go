package pipeline

import (
	"fmt"
	"time"
)

// User-facing texts. They are shown in place of an answer, so they carry no
// stack or wrapped error detail; Result.Err keeps that.
const (
	msgEmptyQuery         = "Erro: a pergunta não pode ser vazia."
	msgEmptyConversation  = "Erro: o identificador da conversa não pode ser vazio."
	msgGenerationFailed   = "Erro: não foi possível gerar a resposta. Tente novamente em instantes."
	msgRoutingFailed      = "Erro: O agente não conseguiu rotear a query."
	msgRouterUnconfigured = "Erro: o roteamento de datasets não está configurado."
	msgTimeoutFormat      = "Erro: a operação excedeu o tempo limite de %s."
	msgCanceled           = "Erro: a operação foi cancelada."
)

func timeoutMessage(d time.Duration) string {
	if d <= 0 {
		return fmt.Sprintf(msgTimeoutFormat, "execução")
	}
	return fmt.Sprintf(msgTimeoutFormat, d)
}

func emptyRetrievalWarning(collection string) string {
	return fmt.Sprintf("Nenhum chunk recuperado de '%s'. Verifique se a coleção existe e contém documentos. "+
		"Usando chunks de exemplo para demonstração.", collection)
}

func failedRetrievalWarning(collection string, err error) string {
	return fmt.Sprintf("Falha ao recuperar chunks de '%s' (%v). Usando chunks de exemplo para demonstração.", collection, err)
}

func persistWarning() string {
	return "A resposta foi gerada, mas não foi possível salvar a conversa no histórico."
}
