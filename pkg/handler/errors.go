package handler

import "errors"

var (
	ErrCompileFailed = errors.New("vectorflow/handler: compile failed")
	ErrHandlerThrew  = errors.New("vectorflow/handler: handler threw")
	ErrNoEdges       = errors.New("vectorflow/handler: edges not available for write")
	ErrNoRequire     = errors.New("vectorflow/handler: no require shim configured")
)
