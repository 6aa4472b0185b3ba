package classifier

import "github.com/ashureev/lovecleanup/internal/domain"

type moodRule struct {
	mood     domain.Mood
	keywords []string
}

type intentRule struct {
	intent   domain.Intent
	keywords []string
}

type responseRule struct {
	kind     domain.ResponseType
	keywords []string
}

// Order matters: the first rule with a matching keyword wins.
var moodRules = []moodRule{
	{domain.MoodSad, []string{"triste", "deprimido", "sozinho", "perdido", "mal", "choro", "dor", "sofrendo", "machucado", "devastado"}},
	{domain.MoodAnxious, []string{"ansioso", "nervoso", "preocupado", "medo", "assustado", "pânico", "estresse", "tenso", "inquieto"}},
	{domain.MoodAngry, []string{"raiva", "bravo", "irritado", "ódio", "furioso", "revoltado", "injusto", "indignado"}},
	{domain.MoodHopeful, []string{"esperança", "melhor", "futuro", "recomeço", "otimista", "confiante", "positivo", "bem", "animado"}},
	{domain.MoodConfused, []string{"confuso", "não sei", "dúvida", "perdido", "como", "por que", "entender", "incerto"}},
}

var intentRules = []intentRule{
	{domain.IntentGreeting, []string{"oi", "olá", "bom dia", "boa tarde", "boa noite", "como você está"}},
	{domain.IntentGratitude, []string{"obrigado", "obrigada", "valeu", "agradeço"}},
	{domain.IntentEmotional, emotionalKeywords},
	{domain.IntentTechnical, []string{"como funciona", "app", "scanner", "deletar", "configurar", "usar", "funcionalidade"}},
	{domain.IntentMotivational, []string{"motivação", "força", "conseguir", "desistir", "difícil", "impossível"}},
}

var emotionalKeywords = []string{"triste", "deprimido", "sozinho", "perdido", "mal", "ansioso", "nervoso", "preocupado", "medo", "raiva", "bravo"}

// responseRules is kept apart from intentRules; both evolve separately.
var responseRules = []responseRule{
	{domain.ResponseGreeting, []string{"oi", "olá", "como você está", "bom dia", "boa tarde"}},
	{domain.ResponseEmotional, []string{"triste", "deprimido", "sozinho", "perdido", "mal", "ansioso", "nervoso", "preocupado", "medo", "raiva", "bravo"}},
	{domain.ResponseTechnical, []string{"como", "funciona", "scanner", "deletar", "app", "configurar", "usar"}},
	{domain.ResponseMotivational, []string{"progresso", "conquista", "dias", "futuro", "motivação", "força"}},
}

var (
	intensityWords    = []string{"muito", "extremamente", "completamente", "totalmente"}
	timeWords         = []string{"sempre", "nunca", "hoje", "ontem", "amanhã"}
	relationshipWords = []string{"ex", "relacionamento", "amor", "parceiro", "namorado", "namorada"}
)
