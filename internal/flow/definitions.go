package flow

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	phonePattern = regexp.MustCompile(`[\d\s+\-()]{9,}`)
)

func notEmpty(input string) (bool, string) {
	return strings.TrimSpace(input) != "", ""
}

func matches(re *regexp.Regexp, msg string) Validator {
	return func(input string) (bool, string) {
		if re.MatchString(input) {
			return true, ""
		}
		return false, msg
	}
}

const invalidPhone = "Por favor, forneça um número de telefone válido"

func PropertySearch() Definition {
	return Definition{
		ID:            "property_search",
		Name:          "Property Search",
		Description:   "Help user find suitable properties based on their preferences",
		CanInterrupt:  true,
		ResumeMessage: "Vamos continuar a procurar a propriedade ideal para si.",
		InitialStep:   "budget",
		Steps: map[string]Step{
			"budget": {
				ID:       "budget",
				Type:     StepQuestion,
				Message:  "Para lhe mostrar as melhores opções, qual é o seu orçamento aproximado?",
				Options:  []string{"Até 300.000€", "Entre 300.000€ - 400.000€", "Acima de 400.000€", "Prefiro não dizer"},
				Validate: notEmpty,
				Next:     Static("property_type"),
			},
			"property_type": {
				ID:       "property_type",
				Type:     StepQuestion,
				Message:  "Que tipo de propriedade procura?",
				Options:  []string{"T1", "T2", "T3", "T3 Duplex", "Qualquer tipologia"},
				Validate: notEmpty,
				Next:     Static("timeline"),
			},
			"timeline": {
				ID:       "timeline",
				Type:     StepQuestion,
				Message:  "Quando pretende fazer a compra?",
				Options:  []string{"Imediatamente", "Nos próximos 3 meses", "Nos próximos 6 meses", "Só estou a ver opções"},
				Validate: notEmpty,
				Next:     Static("completion"),
			},
			"completion": {
				ID:      "completion",
				Type:    StepCompletion,
				Message: "Perfeito! Com base nas suas preferências, vou mostrar-lhe as melhores opções disponíveis.",
			},
		},
	}
}

// LeadQualification collects contact details and the BANT answers.
func LeadQualification() Definition {
	return Definition{
		ID:            "lead_qualification",
		Name:          "Lead Qualification",
		Description:   "Qualify potential leads through BANT methodology with complete contact capture",
		CanInterrupt:  true,
		ResumeMessage: "Vamos continuar a recolher algumas informações para melhor o ajudar.",
		InitialStep:   "contact_collection",
		Steps: map[string]Step{
			"contact_collection": {
				ID:       "contact_collection",
				Type:     StepQuestion,
				Message:  "Para lhe oferecer o melhor atendimento, preciso do seu nome e email:",
				Options:  []string{"Exemplo: Maria Silva - maria@email.com"},
				Validate: matches(emailPattern, "Por favor, forneça nome e email válido (ex: Maria Silva - maria@email.com)"),
				Next:     Static("phone_collection"),
			},
			"phone_collection": {
				ID:       "phone_collection",
				Type:     StepQuestion,
				Message:  "Qual é o seu número de telefone para contacto?",
				Options:  []string{"Exemplo: +351 912 345 678"},
				Validate: matches(phonePattern, invalidPhone),
				Next:     Static("budget_qualification"),
			},
			"budget_qualification": {
				ID:       "budget_qualification",
				Type:     StepQuestion,
				Message:  "Para lhe dar as melhores recomendações, qual é o seu orçamento para este investimento?",
				Options:  []string{"Até 200.000€", "200.000€ - 300.000€", "300.000€ - 400.000€", "Acima de 400.000€"},
				Validate: notEmpty,
				Next:     Static("authority"),
			},
			"authority": {
				ID:       "authority",
				Type:     StepQuestion,
				Message:  "É o decisor principal desta compra ou há outras pessoas envolvidas na decisão?",
				Options:  []string{"Sou eu que decido", "Decido com o meu cônjuge/parceiro", "Há outras pessoas envolvidas"},
				Validate: notEmpty,
				Next:     Static("need"),
			},
			"need": {
				ID:       "need",
				Type:     StepQuestion,
				Message:  "Esta propriedade é para habitação própria ou investimento?",
				Options:  []string{"Habitação própria", "Investimento para arrendar", "Segunda habitação", "Outro"},
				Validate: notEmpty,
				Next:     Static("timeline_qualification"),
			},
			"timeline_qualification": {
				ID:       "timeline_qualification",
				Type:     StepQuestion,
				Message:  "Qual é o seu prazo ideal para concretizar esta compra?",
				Options:  []string{"Imediatamente", "Nos próximos 3 meses", "Até ao final do ano", "Sem pressa específica"},
				Validate: notEmpty,
				Next:     Static("qualification_scoring"),
			},
			"qualification_scoring": {
				ID:      "qualification_scoring",
				Type:    StepAction,
				Message: "A processar a sua qualificação...",
				Next:    Static("agent_handoff"),
			},
			"agent_handoff": {
				ID:      "agent_handoff",
				Type:    StepCompletion,
				Message: "Excelente! Com base no seu perfil, vou conectá-lo com um dos nossos especialistas que entrará em contacto consigo nas próximas 24 horas. Também vai receber um email com informações personalizadas.",
			},
		},
	}
}

// VisitScheduling books a visit. It cannot be interrupted.
func VisitScheduling() Definition {
	return Definition{
		ID:           "visit_scheduling",
		Name:         "Visit Scheduling",
		Description:  "Schedule property visits with calendar integration",
		CanInterrupt: false,
		InitialStep:  "visit_type",
		Steps: map[string]Step{
			"visit_type": {
				ID:       "visit_type",
				Type:     StepQuestion,
				Message:  "Que tipo de visita prefere?",
				Options:  []string{"Visita presencial", "Visita virtual", "Ambas as opções me interessam"},
				Validate: notEmpty,
				Next:     Static("contact_info"),
			},
			"contact_info": {
				ID:       "contact_info",
				Type:     StepQuestion,
				Message:  "Para agendar a visita, preciso do seu nome e email:",
				Options:  []string{"Exemplo: João Silva - joao@email.com"},
				Validate: matches(emailPattern, "Por favor, forneça nome e email válido (ex: João Silva - joao@email.com)"),
				Next:     Static("phone_number"),
			},
			"phone_number": {
				ID:       "phone_number",
				Type:     StepQuestion,
				Message:  "Qual é o seu número de telefone?",
				Options:  []string{"Exemplo: +351 912 345 678"},
				Validate: matches(phonePattern, invalidPhone),
				Next:     Static("preferred_date"),
			},
			"preferred_date": {
				ID:       "preferred_date",
				Type:     StepQuestion,
				Message:  "Quando prefere fazer a visita?",
				Options:  []string{"Amanhã", "Esta semana", "Próxima semana", "Tenho flexibilidade"},
				Validate: notEmpty,
				Next:     Static("preferred_time"),
			},
			"preferred_time": {
				ID:       "preferred_time",
				Type:     StepQuestion,
				Message:  "Que período do dia prefere?",
				Options:  []string{"Manhã (9h-12h)", "Tarde (14h-17h)", "Final do dia (17h-19h)", "Qualquer horário"},
				Validate: notEmpty,
				Next:     Static("completion"),
			},
			"completion": {
				ID:      "completion",
				Type:    StepCompletion,
				Message: "Excelente! A sua visita foi agendada. Vai receber um email de confirmação com os detalhes e um convite para adicionar ao seu calendário.",
			},
		},
	}
}
