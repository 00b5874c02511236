package web

import "errors"

var (
	ErrTooLarge      = errors.New("request body is too large")
	ErrMalformed     = errors.New("malformed value")
	ErrPathMismatch  = errors.New("path does not match the pattern")
	ErrPipeClosed    = errors.New("pipe is closed")
	ErrFirewall      = errors.New("rejected by firewall rule")
	ErrRequestFailed = errors.New("request failed")
)
