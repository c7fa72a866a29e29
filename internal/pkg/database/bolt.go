package database

import (
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/rs/zerolog/log"
)

// OpenBolt opens the embedded database used by single-node depots.
// A second process holding the file lock makes Open fail after the timeout.
func OpenBolt(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Msg("Opened Bolt database")
	return db, nil
}

// CloseBolt closes the embedded database
func CloseBolt(db *bolt.DB) {
	if db != nil {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Bolt database")
		}
	}
}
