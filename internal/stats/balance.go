package stats

// Polarity classifies an emotion label.
type Polarity int

const (
	// Neutral labels count toward neither side of the balance.
	Neutral Polarity = iota
	Positive
	Negative
)

// polarities is the fixed emotion → polarity table. Labels not listed here
// are Neutral.
var polarities = map[string]Polarity{
	"happy":     Positive,
	"energetic": Positive,
	"relaxed":   Positive,
	"sad":       Negative,
	"angry":     Negative,
}

// PolarityOf returns the polarity of an emotion label.
func PolarityOf(emotion string) Polarity {
	return polarities[emotion]
}

// PolarityBalance sums events per polarity.
func PolarityBalance(events []Event) Balance {
	var b Balance
	for _, e := range events {
		switch PolarityOf(e.Emotion) {
		case Positive:
			b.Positive++
		case Negative:
			b.Negative++
		}
	}
	return b
}
