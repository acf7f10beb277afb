package domain

// Geocoder resolves free text to a gazetteer location.
type Geocoder interface {
	// ExtractLocation returns the first place named in text, or false when none matches.
	ExtractLocation(text string) (Location, bool)
}

// Classifier assigns a category and a 1-5 severity to free text.
type Classifier interface {
	Classify(text string) Category
	EstimateSeverity(text string) int
}
