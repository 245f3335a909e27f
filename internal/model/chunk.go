package model

import "strings"

// Classification is the label assigned to an incoming query. It is
// produced fresh for every turn, never cached across turns.
type Classification string

const (
	ClassIrrelevant Classification = "irrelevant"
	ClassGeneric    Classification = "generic"
	ClassSpecific   Classification = "specific"
)

// ParseClassification validates a raw model response against the label
// set. Anything outside the set is rejected, not defaulted.
func ParseClassification(raw string) (Classification, bool) {
	switch Classification(strings.ToLower(strings.TrimSpace(raw))) {
	case ClassIrrelevant:
		return ClassIrrelevant, true
	case ClassGeneric:
		return ClassGeneric, true
	case ClassSpecific:
		return ClassSpecific, true
	}
	return "", false
}

// SparseVector is the plain index/value pair shape exchanged between the
// sparse embedder and the vector index.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// PatentChunk is one metadata row in the local store.
type PatentChunk struct {
	VectorID        string `json:"vector_id"`
	PatentNumber    string `json:"patent_number"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Abstract        string `json:"abstract,omitempty"`
	ClaimsText      string `json:"claims_text,omitempty"`
	DetailedSummary string `json:"detailed_summary"`
}

// RetrievedChunk is the join of a retrieval hit with its metadata row.
// Immutable once produced within a turn.
type RetrievedChunk struct {
	VectorID        string  `json:"vector_id"`
	PatentNumber    string  `json:"patent_number"`
	Title           string  `json:"title"`
	DetailedSummary string  `json:"detailed_summary"`
	Score           float32 `json:"score"`
}

// SearchResult is the terminal output of one conversation turn.
type SearchResult struct {
	Results       []RetrievedChunk `json:"results"`
	Message       string           `json:"message,omitempty"`
	GenericAnswer string           `json:"generic_answer,omitempty"`
	LiveSummary   string           `json:"live_summary,omitempty"`
	Related       *bool            `json:"related,omitempty"`
}
