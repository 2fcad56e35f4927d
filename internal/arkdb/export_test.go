package arkdb

import "fmt"

func (s *Store) SetSchemaVersionForTest(v int) error {
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v))
	return err
}
