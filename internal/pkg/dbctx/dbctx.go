package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the request context plus an optional open transaction.
// Repos fall back to their root *gorm.DB when Tx is nil.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
