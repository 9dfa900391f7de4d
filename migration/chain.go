package migration

// Chain is an ordered sequence of migrations connecting two versions of one
// schema. For an Up chain the migrations are in ascending order and their
// forward transforms are applied; for a Down chain they are in descending
// order and their backward transforms are applied.
type Chain struct {
	Name       string
	From       int
	To         int
	Direction  Direction
	Migrations []*Migration
}

// Len returns the number of steps.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Migrations)
}

// Empty reports whether the chain has no steps (From == To).
func (c *Chain) Empty() bool { return c.Len() == 0 }

// Keys returns the edge keys in traversal order.
func (c *Chain) Keys() []Key {
	keys := make([]Key, len(c.Migrations))
	for i, m := range c.Migrations {
		keys[i] = m.Key()
	}
	return keys
}

// Reverse returns the chain that undoes c: same migrations in the opposite
// order, traversed in the opposite direction.
func (c *Chain) Reverse() *Chain {
	migrations := make([]*Migration, len(c.Migrations))
	for i, m := range c.Migrations {
		migrations[len(c.Migrations)-1-i] = m
	}
	return &Chain{
		Name:       c.Name,
		From:       c.To,
		To:         c.From,
		Direction:  c.Direction.Reverse(),
		Migrations: migrations,
	}
}

// Reversible reports whether every step of the chain can be undone.
func (c *Chain) Reversible() bool {
	for _, m := range c.Migrations {
		if !m.Reversible() {
			return false
		}
	}
	return true
}

// clone copies the slice so cached chains cannot be modified by callers.
func (c *Chain) clone() *Chain {
	cp := *c
	cp.Migrations = append([]*Migration(nil), c.Migrations...)
	return &cp
}
