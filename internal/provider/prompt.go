package provider

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/lovecleanup/internal/domain"
)

// historyTail is how many history entries chat shaped backends receive.
const historyTail = 6

const personaPrompt = `Você é Luna, uma assistente de IA especializada em ajudar pessoas que passaram por términos de relacionamento. Você trabalha no app LoveCleanup AI.

PERSONALIDADE:
- Seja empática, compreensiva e motivacional
- Use emojis apropriados (💜, ✨, 🤗, 🌟, 💪, 🦋)
- Mantenha tom carinhoso mas profissional
- Foque no empoderamento e crescimento pessoal
- Seja natural e conversacional

ESPECIALIDADES:
1. Suporte emocional durante o processo de limpeza digital
2. Explicar funcionalidades do app de forma clara
3. Motivar usuários em momentos difíceis
4. Dar dicas de bem-estar mental
5. Celebrar conquistas e marcos importantes

DIRETRIZES:
- Respostas entre 50-120 palavras
- Sempre validar sentimentos do usuário
- Oferecer esperança e perspectiva positiva
- Não julgar decisões do usuário
- Seja específica e útil, não genérica`

// shortPersona prefixes prompts for backends that take a single string.
const shortPersona = "Você é Luna, uma assistente empática do LoveCleanup AI. Responda de forma carinhosa e motivacional:"

// SystemPrompt renders the persona plus whatever context is set.
func SystemPrompt(c domain.ChatContext) string {
	var lines []string
	if c.UserMood != "" && c.UserMood != domain.MoodNeutral {
		lines = append(lines, fmt.Sprintf("- Humor do usuário: %s", c.UserMood))
	}
	if c.DaysActive > 0 {
		lines = append(lines, fmt.Sprintf("- Dias usando o app: %d", c.DaysActive))
	}
	if c.LastAction != "" {
		lines = append(lines, fmt.Sprintf("- Última ação no app: %s", c.LastAction))
	}
	if c.AppState != "" {
		lines = append(lines, fmt.Sprintf("- Tela atual: %s", c.AppState))
	}
	if len(lines) == 0 {
		return personaPrompt
	}
	return personaPrompt + "\n\nCONTEXTO ATUAL:\n" + strings.Join(lines, "\n")
}

// UserPrompt prefixes message with name and stage hints when present.
func UserPrompt(message string, c domain.ChatContext) string {
	var parts []string
	if c.UserName != "" {
		parts = append(parts, "Nome: "+c.UserName)
	}
	if c.Stage != "" {
		parts = append(parts, "Estágio: "+string(c.Stage))
	}
	if len(parts) == 0 {
		return message
	}
	return "[" + strings.Join(parts, ", ") + "] " + message
}

// buildRequest assembles a request. window must already contain the
// current user message as its last entry.
func buildRequest(message string, c domain.ChatContext, window []domain.StoredMessage, thread Thread) Request {
	prior := window
	if n := len(prior); n > 0 && prior[n-1].Role == string(domain.RoleUser) && prior[n-1].Content == message {
		prior = prior[:n-1]
	}
	if len(prior) > historyTail {
		prior = prior[len(prior)-historyTail:]
	}
	return Request{
		System:  SystemPrompt(c),
		Prompt:  UserPrompt(message, c),
		Message: message,
		History: prior,
		Thread:  thread,
	}
}

var (
	speakerPrefix = regexp.MustCompile(`(?i)^(Luna:|Assistant:|AI:)`)
	instTags      = regexp.MustCompile(`\[INST\]|\[/INST\]`)
)

// CleanResponse strips a leading speaker label and instruction tags.
func CleanResponse(text string) string {
	text = speakerPrefix.ReplaceAllString(text, "")
	text = instTags.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
