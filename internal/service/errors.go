package service

import "errors"

var (
	ErrInvalid     = errors.New("invalid input")
	ErrEmptyResult = errors.New("empty result")
)
