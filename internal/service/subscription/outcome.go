package subscription

import (
	"errors"

	"github.com/incosense/incosense/internal/domain"
	"github.com/incosense/incosense/internal/strictform"
)

// Outcome names the single result of one Subscribe call. The values are
// stable and used as metric labels.
type Outcome string

const (
	OutcomeCreated                Outcome = "created"
	OutcomeReadBody               Outcome = "read_body"
	OutcomePayloadTooLarge        Outcome = "payload_too_large"
	OutcomeInvalidPercentEncoding Outcome = "invalid_percent_encoding"
	OutcomeInvalidUTF8            Outcome = "invalid_utf8"
	OutcomeTooManyFields          Outcome = "too_many_fields"
	OutcomeInvalidFormStructure   Outcome = "invalid_form_structure"
	OutcomeInvalidField           Outcome = "invalid_field"
	OutcomeConflict               Outcome = "conflict"
	OutcomeReferential            Outcome = "referential"
	OutcomeStorage                Outcome = "storage"
)

// Outcomes lists every outcome in pipeline order.
var Outcomes = []Outcome{
	OutcomeCreated,
	OutcomeReadBody,
	OutcomePayloadTooLarge,
	OutcomeInvalidPercentEncoding,
	OutcomeInvalidUTF8,
	OutcomeTooManyFields,
	OutcomeInvalidFormStructure,
	OutcomeInvalidField,
	OutcomeConflict,
	OutcomeReferential,
	OutcomeStorage,
}

var kindOutcomes = map[strictform.Kind]Outcome{
	strictform.KindReadBody:               OutcomeReadBody,
	strictform.KindPayloadTooLarge:        OutcomePayloadTooLarge,
	strictform.KindInvalidPercentEncoding: OutcomeInvalidPercentEncoding,
	strictform.KindInvalidUTF8:            OutcomeInvalidUTF8,
	strictform.KindTooManyFields:          OutcomeTooManyFields,
	strictform.KindInvalidFormStructure:   OutcomeInvalidFormStructure,
}

// Classify maps an error returned by Subscribe to its Outcome. A nil error
// is OutcomeCreated; anything unrecognised is a storage failure.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeCreated
	}

	var rej *strictform.Rejection
	if errors.As(err, &rej) {
		if o, ok := kindOutcomes[rej.Kind]; ok {
			return o
		}
		return OutcomeInvalidFormStructure
	}

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return OutcomeInvalidField
	case errors.Is(err, ErrDuplicate):
		return OutcomeConflict
	case errors.Is(err, ErrReferential):
		return OutcomeReferential
	}
	return OutcomeStorage
}
