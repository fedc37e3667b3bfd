package slasher

import (
	slashertypes "github.com/dualcheck/surveil/slasher/types"
)

// Database is the store capability set this package consumes. Defined in
// the types package so the concrete store can implement it without
// importing this package back; aliased here so the engine's own code can
// keep referring to it unqualified.
type Database = slashertypes.Database
