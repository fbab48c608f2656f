package worktype

import "errors"

var (
	ErrWorkTypeNotFound = errors.New("work type not found")
	ErrWorkTypeExists   = errors.New("work type with this name already exists")
)
