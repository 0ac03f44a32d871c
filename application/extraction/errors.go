package extraction

import (
	pkgerrors "brain2-extractor/pkg/errors"
)

// Engine errors. They are AppErrors so transports can map them to status codes.
var (
	ErrSessionNotActive = pkgerrors.NewSessionStateError("session is not active").WithCode("SESSION_NOT_ACTIVE")
	ErrSessionIDEmpty   = pkgerrors.NewValidationError("session ID cannot be empty").WithCode("SESSION_ID_EMPTY")
)
