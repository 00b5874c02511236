package act

import (
	"errors"
)

var (
	ErrPoolEmpty = errors.New("no worker process in the pool")
)
