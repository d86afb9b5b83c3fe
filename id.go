package lockup

import "github.com/xraph/lockup/id"

// ID is the primary identifier type for all lockup records.
type ID = id.ID

// Prefix identifies the record kind encoded in a TypeID.
type Prefix = id.Prefix
