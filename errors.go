package ngramfst

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrValidation is returned by Build when the input acceptor is not a
	// backoff language model.
	ErrValidation = errors.New("ngramfst: invalid input acceptor")

	// ErrCorruptModel is returned when a serialized model fails a
	// structural check.
	ErrCorruptModel = errors.New("ngramfst: corrupt model")

	// ErrUnsupportedVersion is returned for a container whose format
	// version is older than MinFileVersion. It is also an ErrCorruptModel.
	ErrUnsupportedVersion = errors.Mark(
		errors.New("ngramfst: unsupported format version"), ErrCorruptModel)

	// ErrStructure reports inconsistent tallies after construction.
	ErrStructure = errors.New("ngramfst: structure problems detected during construction")
)

func validationErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

func corruptf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorruptModel, format, args...)
}
