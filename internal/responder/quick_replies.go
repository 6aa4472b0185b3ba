package responder

import (
	"slices"

	"github.com/ashureev/lovecleanup/internal/domain"
)

var quickReplies = map[domain.ResponseType][]string{
	domain.ResponseEmotional: {
		"Obrigado(a) pelo apoio 💜",
		"Como posso me sentir melhor?",
		"Conte mais sobre isso",
		"Preciso de mais motivação",
	},
	domain.ResponseTechnical: {
		"Entendi, obrigado(a)",
		"Explique mais detalhes",
		"Como usar essa função?",
		"Outras funcionalidades",
	},
	domain.ResponseMotivational: {
		"Isso me motiva! ✨",
		"Quero ver meu progresso",
		"Próximos passos?",
		"Celebrar conquistas 🎉",
	},
	domain.ResponseGreeting: {
		"Estou bem, obrigado(a)",
		"Preciso de ajuda",
		"Vamos conversar",
		"Como você funciona?",
	},
	domain.ResponseGeneral: {
		"Interessante",
		"Conte mais",
		"Entendi",
		"E depois?",
	},
	domain.ResponseFallback: {
		"Tentar novamente",
		"Estou bem",
		"Vamos conversar",
		"Mudemos de assunto",
	},
}

// QuickReplies returns the suggestions for a response type.
// Unknown types get the general list. The returned slice is a copy.
func QuickReplies(t domain.ResponseType) []string {
	replies, ok := quickReplies[t]
	if !ok {
		replies = quickReplies[domain.ResponseGeneral]
	}
	return slices.Clone(replies)
}
