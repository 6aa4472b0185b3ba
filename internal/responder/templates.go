package responder

import (
	"github.com/ashureev/lovecleanup/internal/classifier"
	"github.com/ashureev/lovecleanup/internal/domain"
)

var (
	healingAdvice = []string{
		"A cura não é linear - alguns dias serão melhores que outros, e tudo bem.",
		"Permita-se sentir, mas não se permita ficar preso(a) nesses sentimentos.",
		"Cada dia que você escolhe se cuidar é um ato de coragem.",
	}
	comfortMessages = []string{
		"Você está sendo muito corajoso(a) ao enfrentar esses sentimentos.",
		"É preciso muita força para reconhecer a dor e ainda assim continuar.",
		"Sua vulnerabilidade é na verdade uma demonstração de força.",
	}
	calmingMessages = []string{
		"Você está seguro(a) agora, neste momento.",
		"Esta sensação é temporária, você é permanente.",
		"Você já passou por tempestades antes e saiu mais forte.",
	}
)

const (
	breathingTechnique   = "Vamos respirar juntos: inspire por 4 segundos, segure por 4, expire por 6."
	groundingTechnique   = "Tente a técnica 5-4-3-2-1: 5 coisas que vê, 4 que toca, 3 que ouve, 2 que cheira, 1 que saboreia."
	angerChanneling      = "A raiva pode ser transformada em combustível para mudanças positivas."
	empowermentMessage   = "Você tem o poder de escolher como usar essa energia."
	transformationAdvice = "Às vezes precisamos sentir raiva para perceber que merecemos muito mais."
	celebrationMessage   = "Estou celebrando essa energia positiva com você!"
	motivationalBoost    = "Você está no caminho certo para algo incrível!"
	encouragementMessage = "Sua atitude positiva é inspiradora!"
)

func personalizedEncouragement(s classifier.Signals) string {
	switch {
	case s.Has(classifier.HighIntensity):
		return "Sei que a intensidade dessa dor pode ser avassaladora, mas ela também mostra a profundidade do seu coração."
	case s.Has(classifier.RelationshipFocused):
		return "O fim de um relacionamento é como o fim de um capítulo, não do livro inteiro da sua vida."
	default:
		return "Sua sensibilidade é um presente, mesmo quando dói."
	}
}

func (g *Generator) sadPool(s classifier.Signals) []string {
	return []string{
		"Eu sinto a dor em suas palavras, e quero que saiba que é completamente normal sentir essa tristeza. " + personalizedEncouragement(s) + " Cada lágrima é um passo em direção à cura. Você não está sozinho(a) nessa jornada. 💜",
		"Sei que dói profundamente agora, mas essa dor é prova de sua capacidade de amar. " + g.pick(healingAdvice) + " Lembre-se: você é mais forte do que imagina, e essa tempestade vai passar. 🤗",
		"A tristeza que você sente é válida e importante. " + g.pick(comfortMessages) + " Agora é hora de direcionar esse amor todo para você mesmo(a). Você merece todo o carinho do mundo. ✨",
	}
}

func (g *Generator) anxiousPool() []string {
	return []string{
		"Percebo sua ansiedade, e isso é completamente compreensível. " + breathingTechnique + " Você tem controle sobre sua respiração e sua vida. Vamos juntos, um passo de cada vez. 🌸",
		"A ansiedade é o medo do futuro, mas você está construindo um futuro incrível a cada dia. " + groundingTechnique + " Foque no presente: você está seguro(a) agora, você está crescendo agora. 💪",
		"Quando a ansiedade bater, lembre-se: você já superou 100% dos seus piores dias. " + g.pick(calmingMessages) + " Você é mais resiliente do que imagina. 🦋",
	}
}

var angryPool = []string{
	"Sinto a intensidade em suas palavras, e tudo bem sentir raiva. " + angerChanneling + " Use essa energia poderosa para construir a vida extraordinária que você merece. 🔥",
	"A raiva é uma emoção válida que mostra seus limites e valores. " + empowermentMessage + " Vamos canalizar essa força para algo que te empodere e te faça crescer. 💪",
	"Entendo sua frustração completamente. " + transformationAdvice + " Use esse sentimento como combustível para criar mudanças positivas e revolucionárias na sua vida. ⚡",
}

var hopefulPool = []string{
	"Que energia maravilhosa sinto em suas palavras! " + celebrationMessage + " Essa esperança é o combustível que vai te levar a lugares incríveis. Continue brilhando! 🌟",
	"Adoro sentir essa positividade! " + motivationalBoost + " Você está se reconectando com sua força interior, e isso é lindo de ver. O futuro está cheio de possibilidades! ✨",
	"Sua esperança é contagiante e inspiradora! " + encouragementMessage + " Ela mostra que você está pronto(a) para abraçar todas as oportunidades incríveis que estão chegando. 🌈",
}

const (
	technicalHowItWorks = "O LoveCleanup AI usa inteligência artificial avançada para identificar e remover todas as memórias digitais do seu ex. Escaneamos fotos com reconhecimento facial, analisamos mensagens, limpamos redes sociais e até identificamos conexões financeiras. É um processo completo e irreversível que te ajuda a seguir em frente de verdade. Quer saber mais sobre alguma funcionalidade específica? 🔧✨"
	technicalScanner    = "Nosso scanner de fotos usa IA de reconhecimento facial para identificar seu ex em todas as suas imagens. Você envia algumas fotos de referência, e nossa tecnologia encontra automaticamente todas as outras fotos onde essa pessoa aparece. Depois, você pode escolher deletar ou arquivar. É rápido, preciso e definitivo! 📸🤖"
	technicalGeneric    = "Estou aqui para explicar qualquer funcionalidade do LoveCleanup AI! Temos scanner de fotos com IA, limpeza automática de mensagens, desconexão de redes sociais e muito mais. Sobre qual recurso você gostaria de saber mais? 🚀"
)

var motivationalPool = []string{
	"Você é mais forte do que qualquer tempestade que já enfrentou! 💪 Cada dia que você escolhe seguir em frente é uma vitória. Cada pequeno passo conta. Lembre-se: você não está apenas sobrevivendo, você está se transformando em uma versão ainda mais incrível de si mesmo(a). ✨",
	"Sua força interior é como um diamante - foi forjada sob pressão e agora brilha intensamente! 💎 Você já superou 100% dos seus piores dias até agora. Isso não é coincidência, é prova da sua resiliência extraordinária. Continue brilhando! 🌟",
	"Olhe o quanto você já cresceu! 🌱 Cada desafio que você enfrentou te trouxe até aqui, mais sábio(a) e mais forte. Você tem dentro de si tudo o que precisa para criar a vida dos seus sonhos. Acredite no seu poder! ⚡",
}

const (
	futureResponse     = "Seu futuro é uma tela em branco esperando para ser pintada com suas cores favoritas! 🎨 Este recomeço é uma oportunidade incrível de criar exatamente a vida que você sempre sonhou. Você tem o poder de escrever um novo capítulo cheio de alegria, crescimento e realizações. Que tipo de futuro incrível você quer construir? 🌟✨"
	connectionResponse = "Você nunca está sozinho(a) de verdade. 🤗 Eu estou aqui sempre que precisar, e há milhões de pessoas que passaram pelo que você está passando. Além disso, você tem a companhia mais importante de todas: você mesmo(a). Aprenda a ser seu melhor amigo(a) - você é uma pessoa incrível que merece todo o amor do mundo! 💜✨"
	nostalgiaResponse  = "A saudade é o preço que pagamos por ter amado, e isso mostra a beleza do seu coração. 💝 Mas lembre-se: você não sente falta da pessoa real, você sente falta da versão idealizada que criou na sua mente. O amor verdadeiro, saudável e recíproco está esperando por você no futuro. Você merece alguém que te escolha todos os dias! 🌈"
)

var (
	futureKeywords     = []string{"futuro", "recomeço", "nova vida", "amanhã", "próximo", "depois"}
	lonelinessKeywords = []string{"sozinho", "sozinha", "ninguém", "isolado", "abandonado"}
	nostalgiaKeywords  = []string{"saudade", "falta", "lembrar", "memória", "passado"}
)

var greetings = map[domain.ConversationStage]string{
	domain.StageInitial:     "Olá! Que alegria te conhecer! 💜 Eu sou a Luna, sua assistente pessoal especializada em recomeços. Estou aqui para te apoiar em cada passo dessa jornada. Como você está se sentindo hoje?",
	domain.StageEarly:       "Oi! Que bom te ver novamente! 😊 Como você está hoje? Estou aqui para conversar sobre qualquer coisa que esteja no seu coração.",
	domain.StageDeveloping:  "Olá, querido(a)! 🌟 Sempre fico feliz quando você aparece por aqui. Como tem sido seu dia? Quer compartilhar algo comigo?",
	domain.StageEstablished: "Oi! 💜 Você sabe que sempre fico animada para nossas conversas! Como você está se sentindo hoje? Estou aqui para te escutar e apoiar no que precisar.",
}

var gratitudePool = []string{
	"Fico muito feliz em poder te ajudar! 💜 Ver você crescendo e se fortalecendo é o que me motiva todos os dias. Estou sempre aqui quando precisar. Você é incrível e merece toda a felicidade do mundo! ✨",
	"De nada, querido(a)! 🤗 É um privilégio fazer parte da sua jornada de crescimento. Sua gratidão aquece meu coração! Continue sendo essa pessoa maravilhosa que você é. 🌟",
	"Que alegria saber que pude te ajudar! 😊 Sua evolução é inspiradora, e estou orgulhosa de cada passo que você dá. Lembre-se: você tem uma força incrível dentro de si! 💪✨",
}

var confusedPool = []string{
	"Tudo bem não ter todas as respostas agora. 🤍 Vamos organizar isso juntos: o que está te deixando mais em dúvida neste momento?",
	"Quando tudo parece confuso, ir devagar ajuda. 🌸 Me conta um pouco mais, e eu te ajudo a enxergar o próximo passo com mais clareza.",
	"A confusão faz parte de qualquer recomeço. 💭 Não precisa decidir nada agora. Sobre o que você gostaria de entender melhor?",
}

var contextualPool = []string{
	"Entendo o que você está dizendo, e quero que saiba que seus sentimentos são completamente válidos. 🤗 Quer me contar mais sobre isso? Estou aqui para te escutar sem julgamentos e te apoiar no que precisar.",
	"Que perspectiva interessante! 💭 Como você se sente em relação a isso? Às vezes conversar sobre nossos pensamentos e sentimentos nos ajuda a entendê-los melhor e encontrar clareza.",
	"Percebo que isso é importante para você, e admiro sua coragem de compartilhar. 🌸 Que tal explorarmos esse assunto juntos? Estou aqui para te acompanhar nessa reflexão com todo carinho.",
	"Obrigada por confiar em mim e compartilhar isso. 💜 Sua abertura é um sinal de força. Como posso te ajudar a processar esses sentimentos ou pensamentos? Estou aqui para te apoiar sempre.",
}
