package domain

import "errors"

var (
	ErrNoSnapshotFound  = errors.New("no snapshot found")
	ErrNoUsableFiles    = errors.New("no usable files in load batch")
	ErrWrongSchema      = errors.New("file does not match the batch layout")
	ErrCatalogNotFound  = errors.New("catalog not found")
	ErrInvalidCatalog   = errors.New("invalid catalog name")
	ErrStoreUnavailable = errors.New("relational store unavailable")
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrProductNotFound  = errors.New("product not found")
)
