package matching

import "errors"

var errNoLookup = errors.New("no hms mapping lookup configured")
