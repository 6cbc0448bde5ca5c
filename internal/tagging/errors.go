package tagging

import "fmt"

type (
	// MalformedResponseError indicates that the tagging model's response
	// could not be coerced in to the expected JSON shape. The pipeline
	// treats this as a terminal tagging failure; no retry is attempted.
	MalformedResponseError struct {
		Reason string
	}

	// GenerationError indicates the request to the tagging model itself failed.
	GenerationError struct {
		Err error
	}
)

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("tagging response is malformed: %s", e.Reason)
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("tagging generation failed: %s", e.Err.Error())
}

func (e *GenerationError) Unwrap() error { return e.Err }
