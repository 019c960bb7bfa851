package gateway

// Operation identifies one of the gateway entry points.
type Operation string

const (
	OpDebug     Operation = "debug"
	OpTranslate Operation = "translate"
	OpExplain   Operation = "explain"
	OpChat      Operation = "chat"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role accepted in a transcript.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// CodeRequest is the input of the debug and explain operations.
type CodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// TranslationRequest is the input of the translate operation.
type TranslationRequest struct {
	Code         string `json:"code"`
	FromLanguage string `json:"fromLanguage"`
	ToLanguage   string `json:"toLanguage"`
}

// DebugResult is the outcome of AnalyzeCode. Issues is never nil.
type DebugResult struct {
	Issues        []string `json:"issues"`
	Explanation   string   `json:"explanation"`
	CorrectedCode string   `json:"correctedCode"`
}

// TranslationResult is the outcome of TranslateCode.
type TranslationResult struct {
	TranslatedCode string `json:"translatedCode"`
	Explanation    string `json:"explanation"`
}

// ExplanationResult is the outcome of ExplainCode. KeyComponents is never nil.
type ExplanationResult struct {
	Overview            string   `json:"overview"`
	DetailedExplanation string   `json:"detailedExplanation"`
	KeyComponents       []string `json:"keyComponents"`
}

// ChatMessage is a single transcript entry.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
