// README: Entity identifiers (database-assigned, positive).
package types

import "strconv"

type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id ID) Valid() bool {
	return id > 0
}

// ParseID parses a decimal id; zero or negative values are rejected.
func ParseID(s string) (ID, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return ID(n), true
}

// IDPtr is a small helper for optional references.
func IDPtr(id ID) *ID {
	return &id
}
