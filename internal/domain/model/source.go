package model

// Question is one question of a sign-in artifact. Tabular question ids are
// decimal column indexes; form question ids come from the form provider.
type Question struct {
	ID    string
	Title string
}

// Response is one submitted form response keyed by question id.
type Response struct {
	ID      string
	Answers map[string]string
}
