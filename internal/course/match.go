package course

// Match is a course row returned by the vector search, carrying the
// similarity score assigned by the remote ranking call.
type Match struct {
	Record
	Similarity float64 `json:"similarity"`
}
