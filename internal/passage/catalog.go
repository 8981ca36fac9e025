package passage

import "github.com/voxread/voxread/internal/shared"

// Passage is one built-in reading from the gallery. The catalog is read-only.
type Passage struct {
	ID    string
	Title string
	Text  string
}

var gallery = []Passage{
	{
		ID:    "harbor-notes",
		Title: "Harbor Notes",
		Text: "The library ship arrived without fanfare, a low whistle and the smell of salt. " +
			"People lined up with unread letters and left with borrowed weather.",
	},
	{
		ID:    "harbor-notes-extended",
		Title: "Harbor Notes (Extended)",
		Text: "The library ship arrived without fanfare, a low whistle and the smell of salt. " +
			"People lined up with unread letters and left with borrowed weather. " +
			"Inside, the shelves hummed. Every book carried a tide mark, and every chair faced " +
			"the sea. The librarian kept a log of storms that never made landfall. " +
			"She would lend you a story and ask for a memory in return. " +
			"By dusk the deck lights flickered, and readers clustered near the rails, " +
			"listening for pages turning across the water. " +
			"At dawn the gangway lifted. The harbor kept the echo of pages long after " +
			"the horizon swallowed the ship.",
	},
	{
		ID:    "glass-map",
		Title: "Glass Map",
		Text: "Nera traced the old avenues with a graphite finger, watching the city shift. " +
			"Every night the map remembered a different dream.",
	},
	{
		ID:    "glass-map-extended",
		Title: "Glass Map (Extended)",
		Text: "Nera traced the old avenues with a graphite finger, watching the city shift. " +
			"Every night the map remembered a different dream. " +
			"By dusk the plaza had become a river. Lanterns floated like small moons, each " +
			"reflecting a route only they could see. " +
			"She sketched quickly, promising to meet the alleys before morning erased them. " +
			"A hinge pressed into the paper, a doorway that opened with a sigh. " +
			"Beyond it was a street that never moved, anchored to a memory she did not own. " +
			"She walked it anyway, listening for the city to say her name.",
	},
	{
		ID:    "small-machines",
		Title: "Small Machines",
		Text: "The kettle-bot woke the neighborhood with soft clicks, pouring warmth into cups " +
			"left on windowsills.",
	},
	{
		ID:    "small-machines-extended",
		Title: "Small Machines (Extended)",
		Text: "The kettle-bot woke the neighborhood with soft clicks, pouring warmth into cups " +
			"left on windowsills. Streetlight engines climbed the poles at dusk, polishing " +
			"glass with care. In winter, the machines nested in the boiler room, listening " +
			"for spring. When the first thaw arrived, they carried hot stones to the doorways " +
			"and left without a word. The town said thank you by keeping oil tins full.",
	},
	{
		ID:    "night-plaza",
		Title: "Night Plaza",
		Text: "By dusk the plaza had become a river. Lanterns floated like small moons, " +
			"each reflecting a route only they could see.",
	},
	{
		ID:    "night-plaza-extended",
		Title: "Night Plaza (Extended)",
		Text: "By dusk the plaza had become a river. Lanterns floated like small moons, " +
			"each reflecting a route only they could see. " +
			"Neighbors crossed in silence, trading maps drawn on the backs of receipts. " +
			"A violinist played beneath the arcade, her notes drifting downstream. " +
			"When the bells rang midnight, the water fell away, and the stones kept the memory " +
			"of the current for another night.",
	},
}

type Catalog struct {
	passages []Passage
	byID     map[string]Passage
}

func NewCatalog() *Catalog {
	c := &Catalog{
		passages: gallery,
		byID:     make(map[string]Passage, len(gallery)),
	}
	for _, p := range gallery {
		c.byID[p.ID] = p
	}
	return c
}

// List returns the passages in gallery order.
func (c *Catalog) List() []Passage {
	out := make([]Passage, len(c.passages))
	copy(out, c.passages)
	return out
}

func (c *Catalog) Get(id string) (Passage, error) {
	p, ok := c.byID[id]
	if !ok {
		return Passage{}, shared.ErrNotFound
	}
	return p, nil
}
