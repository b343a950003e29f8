package database

import "gorm.io/gorm"

type ConditionFunc func(*Condition) *Condition

type Condition struct {
	limit *int
}

// WithLimit caps the number of rows returned. A negative value is treated as no limit.
func WithLimit(limit int) ConditionFunc {
	return func(c *Condition) *Condition {
		if limit >= 0 {
			c.limit = &limit
		}
		return c
	}
}

func newCondition(conditions ...ConditionFunc) *Condition {
	c := &Condition{}
	for _, f := range conditions {
		c = f(c)
	}
	return c
}

// empty reports whether the condition can only ever match zero rows.
func (c *Condition) empty() bool {
	return c.limit != nil && *c.limit == 0
}

func (c *Condition) scope(db *gorm.DB) *gorm.DB {
	if c.limit != nil {
		db = db.Limit(*c.limit)
	}
	return db
}
