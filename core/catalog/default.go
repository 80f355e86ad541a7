package catalog

// DefaultTechnologies returns the built-in technology set.
func DefaultTechnologies() []Technology {
	return []Technology{
		{
			Key:         "cyclegan",
			Label:       "CycleGAN",
			Description: "CycleGAN - технология из 2017 года, позволяющая делать необычные переносы стиля, начиная от переноса стиля художника на фотографию и заканчивая превращением зебр в лошадей или летних фотографий в зимние.",
			Family:      FamilyTranslate,
			ModelSuffix: "_pretrained_pepilica_dls",
			Styles: []Style{
				{Label: "Из зимы в лето", Key: "winter2summer_yosemite"},
				{Label: "Из лета в зиму", Key: "summer2winter_yosemite"},
			},
		},
		{
			Key:         "nst",
			Label:       "NST",
			Description: "NST (Neural Style Transfer) - технология из 2015 года, позволяющая быстро переносить обученный стиль рисования на фотографию.",
			Family:      FamilyStylize,
			ModelSuffix: "_pepilica_nst_project",
			Styles: []Style{
				{Label: "Мозайка", Key: "mosaic"},
				{Label: "Ван Гог", Key: "van_gogh"},
				{Label: "Попова", Key: "popova"},
				{Label: "Кандинский", Key: "kandinsky"},
			},
		},
	}
}

// Default builds the catalog from DefaultTechnologies. It panics on invalid
// built-in data, which would be a programming error.
func Default() *Catalog {
	c, err := New(DefaultTechnologies())
	if err != nil {
		panic(err)
	}
	return c
}
