package health

import "errors"

var errDatabaseNotInitialized = errors.New("database not initialized")
