package models

import (
	"encoding/gob"
	"time"
)

func init() {
	// Register the interface-held shapes that reach BadgerDB through
	// Params, Payload, Geometry and Input maps, for gob serialization
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
	gob.Register([]string{})
	gob.Register([]map[string]interface{}{})
	gob.Register(time.Time{})
}
