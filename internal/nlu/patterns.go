package nlu

import "estate-assistant/internal/domain"

type intentRule struct {
	intent   domain.Intent
	keywords []string
	patterns []string
	boosts   []domain.EntityType
}

type entityRule struct {
	entity   domain.EntityType
	patterns []string
}

// intentRules is evaluated in order; on equal scores the earlier intent wins.
var intentRules = []intentRule{
	{
		intent: domain.IntentProjectInfo,
		keywords: []string{
			"tell me about", "fale-me sobre", "informação sobre", "detalhes sobre",
			"evergreen pure", "evergreen", "projeto", "empreendimento",
			"desenvolvimento", "what is", "o que é",
		},
		patterns: []string{
			`tell me about (.+)`,
			`fale[-\s]me sobre (.+)`,
			`informação sobre (.+)`,
			`detalhes sobre (.+)`,
			`o que é (.+)`,
			`what is (.+)`,
		},
		boosts: []domain.EntityType{domain.EntityProjectName},
	},
	{
		intent: domain.IntentPaymentPlans,
		keywords: []string{
			"payment plans", "planos de pagamento", "financiamento", "financing",
			"preço", "price", "custo", "cost", "valor", "value",
			"como pagar", "how to pay", "opções de pagamento", "payment options",
			"prestações", "installments", "crédito", "credit", "empréstimo", "loan",
		},
		patterns: []string{
			`what are the payment plans`,
			`quais são os planos de pagamento`,
			`opções de financiamento`,
			`financing options`,
			`como posso pagar`,
			`how can i pay`,
		},
		boosts: []domain.EntityType{domain.EntityBudgetRange},
	},
	{
		intent: domain.IntentRegisterInterest,
		keywords: []string{
			"register interest", "registar interesse", "interessado", "interested",
			"quero comprar", "want to buy", "gostaria de", "would like",
			"contacto", "contact", "agendar", "schedule", "visita", "visit",
			"mais informações", "more information", "lead form", "formulário",
		},
		patterns: []string{
			`i want to register interest`,
			`quero registar interesse`,
			`estou interessado`,
			`i am interested`,
			`gostaria de mais informações`,
			`would like more information`,
			`quero agendar`,
			`want to schedule`,
		},
	},
	{
		intent: domain.IntentApartmentInquiry,
		keywords: []string{
			"apartamento", "apartment", "flat", "unit", "imóvel", "property",
			"disponível", "available", "tipologia", "typology", "área", "area",
			"quartos", "bedrooms", "rooms", "T1", "T2", "T3", "duplex",
		},
		patterns: []string{
			`apartamento ([A-H]\d*)`,
			`apartment ([A-H]\d*)`,
			`flat ([A-H]\d*)`,
			`tipologia (T\d+)`,
			`typology (T\d+)`,
		},
		boosts: []domain.EntityType{domain.EntityApartmentID, domain.EntityUnitType},
	},
	{
		intent: domain.IntentGreeting,
		keywords: []string{
			"olá", "hello", "hi", "oi", "bom dia", "good morning",
			"boa tarde", "good afternoon", "boa noite", "good evening",
		},
		patterns: []string{
			`^(olá|hello|hi|oi)`,
			`^(bom dia|good morning)`,
			`^(boa tarde|good afternoon)`,
		},
	},
}

var entityRules = []entityRule{
	{
		entity: domain.EntityProjectName,
		patterns: []string{
			`evergreen\s*pure`,
			`evergreen`,
		},
	},
	{
		entity: domain.EntityApartmentID,
		patterns: []string{
			`apartamento\s*([A-H]\d*)`,
			`apartment\s*([A-H]\d*)`,
			`flat\s*([A-H]\d*)`,
			`([A-H]\d+)`,
		},
	},
	{
		entity: domain.EntityUnitType,
		patterns: []string{
			`(T[0-4])`,
			`(duplex)`,
			`(\d+\s*bedroom)`,
			`(\d+\s*quarto)`,
			`(penthouse)`,
		},
	},
	{
		entity: domain.EntityBudgetRange,
		patterns: []string{
			`(\d+k?)\s*[-–]\s*(\d+k?)`,
			`(até|up to|under|abaixo de)\s*(\d+(?:\.\d+)?[km]?)`,
			`(acima de|above|over)\s*(\d+(?:\.\d+)?[km]?)`,
			`(\d+(?:\.\d+)?)\s*(mil|thousand|k|million|milhão|m)`,
			`€\s*(\d+(?:\.\d+)?[km]?)`,
			`(\d+(?:\.\d+)?[km]?)\s*€`,
		},
	},
	{
		entity: domain.EntityLocation,
		patterns: []string{
			`(santa joana)`,
			`(aveiro)`,
			`(portugal)`,
			`(parque|park)`,
		},
	},
	{
		entity: domain.EntityTimeline,
		patterns: []string{
			`(imediatamente|immediately|agora|now)`,
			`(brevemente|soon|em breve)`,
			`(este ano|this year)`,
			`(próximo ano|next year)`,
			`(\d+)\s*(meses|months)`,
			`(\d+)\s*(anos|years)`,
		},
	},
}

// relevantEntities lists the entity types kept for each winning intent.
// Intents absent from the table keep none.
var relevantEntities = map[domain.Intent][]domain.EntityType{
	domain.IntentProjectInfo:      {domain.EntityProjectName, domain.EntityLocation},
	domain.IntentPaymentPlans:     {domain.EntityBudgetRange, domain.EntityProjectName},
	domain.IntentRegisterInterest: {domain.EntityProjectName, domain.EntityApartmentID, domain.EntityUnitType, domain.EntityTimeline},
	domain.IntentApartmentInquiry: {domain.EntityApartmentID, domain.EntityUnitType, domain.EntityBudgetRange, domain.EntityLocation},
	domain.IntentGeneralInquiry:   domain.EntityTypes,
}
