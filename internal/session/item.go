package session

type ItemKind int

const (
	ItemStarted ItemKind = iota
	ItemAudio
	ItemCompleted
	ItemFailed
	ItemCancelled
)

func (k ItemKind) String() string {
	switch k {
	case ItemStarted:
		return "started"
	case ItemAudio:
		return "audio"
	case ItemCompleted:
		return "completed"
	case ItemFailed:
		return "failed"
	case ItemCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Item is one hand-off unit from a session to the polling side. Audio items
// carry a complete WAV container; failed items carry a human-readable cause.
type Item struct {
	Seq      int
	Kind     ItemKind
	Audio    []byte
	MimeType string
	Cause    string
}
