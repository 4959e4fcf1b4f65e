package domain

import "errors"

var (
	ErrNoOptionSelected = errors.New("select an option before continuing")
	ErrUnknownOption    = errors.New("option not offered by the current item")
	ErrBusy             = errors.New("a request is already in flight")
	ErrNoSession        = errors.New("no active session")
	ErrSessionFinished  = errors.New("session already finished")
	ErrNotFinished      = errors.New("session not finished yet")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrSecretNotFound   = errors.New("secret not found")
)

// IsInputError reports whether err was caused by a command the session
// could not accept in its current state. Input errors never reach the network.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrNoOptionSelected,
		ErrUnknownOption,
		ErrBusy,
		ErrNoSession,
		ErrSessionFinished,
		ErrNotFinished,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
