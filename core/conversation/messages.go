package conversation

// Messages holds every user-facing text the engine produces. UnknownStyle
// takes the rejected label and Done the chosen style label as %s. The
// Expect* texts restate the input the current step waits for.
type Messages struct {
	Greeting          string
	GreetingFixed     string
	AskPhoto          string
	UnknownTechnology string
	AskStyle          string
	UnknownStyle      string
	BadPhoto          string
	Done              string
	Failure           string
	Farewell          string
	IdleHint          string
	Unexpected        string
	ExpectTechnology  string
	ExpectPhoto       string
	ExpectStyle       string
	Contacts          string
	HelpFooter        string
	TooFast           string
}

// DefaultMessages returns the built-in Russian texts.
func DefaultMessages() Messages {
	return Messages{
		Greeting:          "Привет! Умею украшать твои фотографии! Что бы ты хотел сделать? Введи /help, чтобы показать подсказку!",
		GreetingFixed:     "Привет! Умею украшать твои фотографии! Пришли исходную фотографию!",
		AskPhoto:          "Пришли исходную фотографию!",
		UnknownTechnology: "Я не знаю таких технологий. Выбери из тех, что снизу.",
		AskStyle:          "Теперь выбери стиль!",
		UnknownStyle:      "Стиля \"%s\" у меня нету. Выбери стиль.",
		BadPhoto:          "Не получилось открыть эту фотографию. Пришли другую!",
		Done:              "Готово! Твой стиль: %s.\nВведи /start, чтобы попробовать снова.",
		Failure:           "Не получилось обработать фотографию, сервис стилизации недоступен. Введи /start, чтобы попробовать снова.",
		Farewell:          "До свидания! Введи /start, чтобы снова начать!",
		IdleHint:          "Введи /start, чтобы начать!",
		Unexpected:        "Сейчас я жду другое.",
		ExpectTechnology:  "Выбери технологию из тех, что снизу.",
		ExpectPhoto:       "Пришли исходную фотографию!",
		ExpectStyle:       "Выбери стиль из тех, что снизу.",
		Contacts:          "Наши контакты:\n\tVK: vk.com/megetler\n\tInstagram: instagram.com/monsu.egetler",
		HelpFooter:        "Введи /start, чтобы начать, или /cancel, чтобы прервать.",
		TooFast:           "Слишком быстро! Подожди немного и повтори последнее сообщение.",
	}
}

// withDefaults fills empty fields of m from DefaultMessages.
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.Greeting, d.Greeting)
	fill(&m.GreetingFixed, d.GreetingFixed)
	fill(&m.AskPhoto, d.AskPhoto)
	fill(&m.UnknownTechnology, d.UnknownTechnology)
	fill(&m.AskStyle, d.AskStyle)
	fill(&m.UnknownStyle, d.UnknownStyle)
	fill(&m.BadPhoto, d.BadPhoto)
	fill(&m.Done, d.Done)
	fill(&m.Failure, d.Failure)
	fill(&m.Farewell, d.Farewell)
	fill(&m.IdleHint, d.IdleHint)
	fill(&m.Unexpected, d.Unexpected)
	fill(&m.ExpectTechnology, d.ExpectTechnology)
	fill(&m.ExpectPhoto, d.ExpectPhoto)
	fill(&m.ExpectStyle, d.ExpectStyle)
	fill(&m.Contacts, d.Contacts)
	fill(&m.HelpFooter, d.HelpFooter)
	fill(&m.TooFast, d.TooFast)
	return m
}
