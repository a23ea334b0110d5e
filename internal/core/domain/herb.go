package domain

// Herb is static reference data for prescription autocomplete.
type Herb struct {
	Name    string `json:"name"`
	Benefit string `json:"benefit"`
}

// Herbs is the reference remedy table, in suggestion order.
var Herbs = []Herb{
	{Name: "Ashwagandha", Benefit: "Stress relief"},
	{Name: "Triphala", Benefit: "Digestion"},
	{Name: "Brahmi", Benefit: "Memory"},
	{Name: "Turmeric", Benefit: "Inflammation"},
	{Name: "Tulsi", Benefit: "Respiratory"},
	{Name: "Shatavari", Benefit: "Reproductive health"},
	{Name: "Guggul", Benefit: "Cholesterol"},
	{Name: "Neem", Benefit: "Skin detox"},
}
