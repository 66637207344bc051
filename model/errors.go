package model

import "errors"

var (
	ErrMissingField     = errors.New("missing required field")
	ErrUnknownMode      = errors.New("unknown entry mode")
	ErrNoSession        = errors.New("no active session")
	ErrUnknownTemplate  = errors.New("unknown template index")
	ErrTemplateInactive = errors.New("template is not active")
	ErrAlreadyDecided   = errors.New("suggestion already decided")
	ErrNotReviewer      = errors.New("user is not a reviewer")
	ErrChannelUnbound   = errors.New("no channel bound for publication")
)
