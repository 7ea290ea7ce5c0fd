package datastore

import (
	"github.com/tphakala/speechscope/internal/errors"
)

// ComponentDataStore identifies datastore errors
const ComponentDataStore = "datastore"

// ErrTxnEnded is the panic value when a transaction guard is used after End.
var ErrTxnEnded = errors.New(errors.NewStd("datastore: transaction used after End")).
	Component(ComponentDataStore).
	Category(errors.CategoryState).
	Build()
