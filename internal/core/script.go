package core

// Speaker roles understood by the voice resolver.
const (
	SpeakerTeacher = "teacher"
	SpeakerStudent = "student"
)

// DefaultLanguage is used whenever a request does not name a language.
const DefaultLanguage = "en"

// DialogueTurn is one utterance of the conversation.
// Speaker is kept verbatim; roles other than teacher/student are resolved to
// the teacher voice later rather than rejected here.
type DialogueTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Script is the structured dialogue produced by the language model.
type Script struct {
	Title        string         `json:"title"`
	Summary      string         `json:"summary"`
	Conversation []DialogueTurn `json:"conversation"`
}

// AudioClip is the synthesized audio for exactly one turn.
type AudioClip struct {
	Data   []byte
	Format string
}
