package persistence

import "github.com/vinodvk00/one-box-sub001/core/port/out"

// Sentinels are defined on the port so services can match them without
// importing this package.
var (
	ErrNotFound  = out.ErrNotFound
	ErrDuplicate = out.ErrDuplicate
)
