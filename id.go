package docsync

import "github.com/xraph/docsync/id"

// ID identifies sync jobs and worker pools.
type ID = id.ID
