package domain

// DirectiveKind names a secondary action embedded in a backend reply.
type DirectiveKind string

const (
	DirectiveDeepthink     DirectiveKind = "deepthink"
	DirectiveImageGenerate DirectiveKind = "imageGenerate"
	DirectiveCodeSimple    DirectiveKind = "codeSimple"
)

// DirectiveKinds is the order in which kinds are dispatched.
var DirectiveKinds = []DirectiveKind{DirectiveDeepthink, DirectiveImageGenerate, DirectiveCodeSimple}

// Directive is one marker found in a reply. Start and End are byte offsets
// of the whole marker in the scanned text.
type Directive struct {
	Kind    DirectiveKind
	Param   string
	Payload string
	Start   int
	End     int
}
