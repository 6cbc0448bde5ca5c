package pipeline

import (
	"fmt"

	"github.com/mbeckett/TuneVault/internal/storage"
	"github.com/mbeckett/TuneVault/internal/tagging"
)

type (
	TroubleType int

	// Trouble wraps an error raised during an upload with the pipeline
	// stage it was raised in. Each stage's failures are surfaced to API
	// consumers verbatim, so the underlying error message matters.
	Trouble struct {
		error
		tType TroubleType
	}
)

const (
	FETCH_FAILURE TroubleType = iota
	UPLOAD_FAILURE
	TAG_FAILURE
	PERSIST_FAILURE
	GENERIC_FAILURE
)

func newTrouble(err error) Trouble {
	switch err.(type) {
	case *storage.ProviderError:
		return Trouble{error: err, tType: UPLOAD_FAILURE}
	case *tagging.MalformedResponseError:
		return Trouble{error: err, tType: TAG_FAILURE}
	case *tagging.GenerationError:
		return Trouble{error: err, tType: TAG_FAILURE}
	}

	return Trouble{error: err, tType: GENERIC_FAILURE}
}

func newTroubleOfType(err error, tType TroubleType) Trouble {
	return Trouble{error: err, tType: tType}
}

func (t Trouble) Type() TroubleType { return t.tType }

func (t Trouble) Unwrap() error { return t.error }

func (t TroubleType) String() string {
	switch t {
	case FETCH_FAILURE:
		return fmt.Sprintf("FETCH_FAILURE[%d]", t)
	case UPLOAD_FAILURE:
		return fmt.Sprintf("UPLOAD_FAILURE[%d]", t)
	case TAG_FAILURE:
		return fmt.Sprintf("TAG_FAILURE[%d]", t)
	case PERSIST_FAILURE:
		return fmt.Sprintf("PERSIST_FAILURE[%d]", t)
	case GENERIC_FAILURE:
		return fmt.Sprintf("GENERIC_FAILURE[%d]", t)
	default:
		return fmt.Sprintf("UNKNOWN[%d]", t)
	}
}
