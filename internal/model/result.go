package model

// Outcome classifies how one input item finished.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeNotFound Outcome = "not_found"
	OutcomeFailed   Outcome = "failed"
)

// ReasonCancelled is recorded for items interrupted by batch cancellation.
const ReasonCancelled = "cancelled"

// ParcelResult is the outcome for one input image. Index is the position of
// the image in the batch; downstream numbering depends on it.
type ParcelResult struct {
	Index      int              `json:"index"`
	Identifier IdentifierRecord `json:"identifier"`
	Boundary   *BoundaryRecord  `json:"boundary,omitempty"`
	Outcome    Outcome          `json:"outcome"`
	Reason     string           `json:"reason,omitempty"`
	Artifacts  []string         `json:"artifacts,omitempty"`
}

// Succeeded builds a success result. The boundary must carry geometry.
func Succeeded(index int, id IdentifierRecord, b *BoundaryRecord, artifacts []string) ParcelResult {
	return ParcelResult{
		Index:      index,
		Identifier: id,
		Boundary:   b,
		Outcome:    OutcomeSuccess,
		Artifacts:  artifacts,
	}
}

// NotFound builds a result for an item the registry had no match for.
func NotFound(index int, id IdentifierRecord) ParcelResult {
	return ParcelResult{
		Index:      index,
		Identifier: id,
		Outcome:    OutcomeNotFound,
	}
}

// Failed builds a failure result. b may be nil.
func Failed(index int, id IdentifierRecord, b *BoundaryRecord, reason string) ParcelResult {
	return ParcelResult{
		Index:      index,
		Identifier: id,
		Boundary:   b,
		Outcome:    OutcomeFailed,
		Reason:     reason,
	}
}

// Summary tallies outcomes across a batch.
type Summary struct {
	Total    int `json:"total"`
	Success  int `json:"success"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
}

// Summarize counts outcomes in results.
func Summarize(results []ParcelResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSuccess:
			s.Success++
		case OutcomeNotFound:
			s.NotFound++
		case OutcomeFailed:
			s.Failed++
		}
	}
	return s
}
