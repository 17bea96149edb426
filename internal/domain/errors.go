package domain

import "errors"

var (
	// ErrMalformedFile marks a file that could not be parsed as a table.
	ErrMalformedFile = errors.New("malformed file")
	// ErrUnmappableSchema marks a file whose header lacks a required column.
	ErrUnmappableSchema = errors.New("unmappable schema")
	// ErrNoUsableRows marks a file where no row carries both pressures.
	ErrNoUsableRows = errors.New("no usable pressure rows")
	// ErrEmptyResult is returned when no input file was accepted.
	ErrEmptyResult = errors.New("no usable data in any input file")

	ErrUnknownField      = errors.New("unknown canonical field")
	ErrInvalidGroupBy    = errors.New("invalid group by")
	ErrInvalidAliasTable = errors.New("invalid alias table")
)
