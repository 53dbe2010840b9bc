package topics

// CatalogEntry is one challenge prompt the rotation job can mint.
type CatalogEntry struct {
	Title       string
	Description string
	Keywords    []string
}

// DefaultCatalog lists the built-in challenge prompts used when no external
// prompt source is configured.
var DefaultCatalog = []CatalogEntry{
	{
		Title:       "Red and Round",
		Description: "Find something that is both red and round in your environment",
		Keywords:    []string{"red", "round", "circle", "circular", "crimson", "scarlet", "sphere", "ball"},
	},
	{
		Title:       "Nature's Patterns",
		Description: "Capture natural patterns - leaves, tree bark, water ripples, or clouds",
		Keywords:    []string{"pattern", "nature", "leaf", "bark", "water", "cloud", "texture", "natural"},
	},
	{
		Title:       "Light and Shadow",
		Description: "Play with contrast between light and dark areas",
		Keywords:    []string{"light", "shadow", "contrast", "bright", "dark", "illumination", "silhouette"},
	},
	{
		Title:       "Urban Architecture",
		Description: "Focus on buildings, structures, or architectural details in the city",
		Keywords:    []string{"building", "architecture", "urban", "structure", "city", "construction", "facade"},
	},
	{
		Title:       "Food Colors",
		Description: "Showcase colorful food items or ingredients",
		Keywords:    []string{"food", "colorful", "meal", "ingredient", "cooking", "fruit", "vegetable", "dish"},
	},
	{
		Title:       "Transportation",
		Description: "Capture vehicles, bikes, boats, or any form of transportation",
		Keywords:    []string{"car", "bike", "boat", "train", "vehicle", "transportation", "travel", "wheel"},
	},
	{
		Title:       "Reflections",
		Description: "Find interesting reflections in windows, water, or mirrors",
		Keywords:    []string{"reflection", "mirror", "water", "window", "glass", "surface", "reflect"},
	},
	{
		Title:       "Street Art",
		Description: "Document graffiti, murals, or other forms of street art",
		Keywords:    []string{"graffiti", "mural", "street art", "art", "wall", "spray paint", "urban art"},
	},
	{
		Title:       "Animals in Motion",
		Description: "Capture pets, wildlife, or any animals in action",
		Keywords:    []string{"animal", "pet", "wildlife", "motion", "action", "dog", "cat", "bird", "movement"},
	},
	{
		Title:       "Minimalist Composition",
		Description: "Create a simple, clean image with minimal elements",
		Keywords:    []string{"minimal", "simple", "clean", "composition", "space", "empty", "geometric"},
	},
	{
		Title:       "Weather Phenomena",
		Description: "Document current weather conditions - rain, sun, clouds, or snow",
		Keywords:    []string{"weather", "rain", "sun", "cloud", "snow", "storm", "sky", "atmosphere"},
	},
	{
		Title:       "Vintage or Retro",
		Description: "Find objects or scenes that have a vintage or retro aesthetic",
		Keywords:    []string{"vintage", "retro", "old", "classic", "antique", "nostalgic", "aged"},
	},
}
